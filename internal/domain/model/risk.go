package model

// MatchStrategy 表示应用与数据集条目的关联方式。
type MatchStrategy string

const (
	// MatchExact 包名命中（名称索引或包名别名）。
	MatchExact MatchStrategy = "exact"
	// MatchNormalizedExact 展示名规范化后完全相等。
	MatchNormalizedExact MatchStrategy = "normalized_exact"
	// MatchFallbackFuzzy 展示名模糊匹配，且唯一最佳候选超过阈值。
	MatchFallbackFuzzy MatchStrategy = "fallback_fuzzy"
	// MatchNone 未命中。
	MatchNone MatchStrategy = "none"
)

// MatchResult 是一次匹配的结果；Strategy=none 时 Entry 为 nil。
type MatchResult struct {
	Entry      *DatasetEntry `json:"entry,omitempty"`
	Strategy   MatchStrategy `json:"strategy"`
	MatchedOn  string        `json:"matched_on,omitempty"`
	Similarity float64       `json:"similarity,omitempty"`
}

// Found 表示是否命中了数据集条目。
func (m MatchResult) Found() bool {
	return m.Entry != nil && m.Strategy != MatchNone
}

// RiskLevel 是风险分级。
type RiskLevel string

const (
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
	RiskNotFound RiskLevel = "NOT_FOUND"
)

// RiskLevels 按报告展示顺序列出全部等级。
var RiskLevels = []RiskLevel{RiskHigh, RiskMedium, RiskLow, RiskNotFound}

// RiskAssessment 是单个应用的风险评估结果。
// 不变式：Level=NOT_FOUND 时 Score 恒为 0。
type RiskAssessment struct {
	Level   RiskLevel `json:"level"`
	Score   float64   `json:"score"`
	Factors []string  `json:"factors"`
}

// CategorizedPermissions 是单个应用的权限分类结果。
//
// 每个权限（requested ∪ granted ∪ denied 去重后）恰好落入 Categories 的一个分类或 Other。
type CategorizedPermissions struct {
	Categories             map[string][]string `json:"categories"`
	Other                  []string            `json:"other"`
	PrivacyCritical        []string            `json:"privacy_critical"`
	PrivacyCriticalGranted []string            `json:"privacy_critical_granted"`
	TotalRequested         int                 `json:"total_requested"`
	TotalGranted           int                 `json:"total_granted"`
	TotalDenied            int                 `json:"total_denied"`
}

// AppResult 把一个应用的匹配、权限和风险放在一起。
type AppResult struct {
	App         InstalledApp           `json:"app"`
	Match       MatchResult            `json:"match"`
	Permissions CategorizedPermissions `json:"permissions"`
	Risk        RiskAssessment         `json:"risk"`
}

// RiskSummary 是按等级统计的应用数。
type RiskSummary struct {
	TotalApps int `json:"total_apps"`
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Low       int `json:"low"`
	NotFound  int `json:"not_found"`
}

// Add 把一个等级计入统计。
func (s *RiskSummary) Add(level RiskLevel) {
	s.TotalApps++
	switch level {
	case RiskHigh:
		s.High++
	case RiskMedium:
		s.Medium++
	case RiskLow:
		s.Low++
	default:
		s.NotFound++
	}
}

// PermissionAggregate 是全设备维度的权限统计。
type PermissionAggregate struct {
	AppsPerCategory            map[string]int `json:"apps_per_category"`
	AppsWithOther              int            `json:"apps_with_other"`
	AppsWithPrivacyCritical    int            `json:"apps_with_privacy_critical"`
	AppsPrivacyCriticalGranted int            `json:"apps_privacy_critical_granted"`
	TotalRequested             int            `json:"total_requested"`
	TotalGranted               int            `json:"total_granted"`
	TotalDenied                int            `json:"total_denied"`
}

// DatasetProvenance 记录本次扫描所用数据集的来源。
type DatasetProvenance struct {
	Sources  []SourceDigest `json:"sources"`
	Entries  int            `json:"entries"`
	Skipped  int            `json:"skipped"`
	Replaced int            `json:"replaced"`
}

// ScanReport 是一次扫描的完整结果，Apps 保持采集顺序。
type ScanReport struct {
	ScanID              string              `json:"scan_id"`
	GeneratedAt         int64               `json:"generated_at"`
	ScannerVersion      string              `json:"scanner_version"`
	DeviceInfo          DeviceInfo          `json:"device_info"`
	Apps                []AppResult         `json:"apps"`
	Summary             RiskSummary         `json:"summary"`
	PermissionAggregate PermissionAggregate `json:"permission_aggregate"`
	Dataset             DatasetProvenance   `json:"dataset"`
}
