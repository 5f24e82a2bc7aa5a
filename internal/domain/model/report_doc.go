package model

// ReportDocument 是写入 report_<device>.json 的文档结构，字段名即对外格式。
type ReportDocument struct {
	ScanInfo   ScanInfoDoc `json:"scan_info"`
	DeviceInfo DeviceInfo  `json:"device_info"`
	Summary    SummaryDoc  `json:"summary"`
	Apps       []AppDoc    `json:"apps"`
}

// ScanInfoDoc 是报告头部的扫描元信息。
type ScanInfoDoc struct {
	ScanID         string         `json:"scan_id"`
	GeneratedAt    string         `json:"generated_at"`
	ScannerVersion string         `json:"scanner_version"`
	PrivacyMode    string         `json:"privacy_mode"`
	DatasetSources []SourceDigest `json:"dataset_sources"`
}

// SummaryDoc 是报告汇总段。
type SummaryDoc struct {
	TotalApps          int                 `json:"total_apps"`
	RiskLevels         RiskLevelsDoc       `json:"risk_levels"`
	PermissionsSummary PermissionAggregate `json:"permissions_summary"`
}

// RiskLevelsDoc 是按等级的计数，键名固定为小写。
type RiskLevelsDoc struct {
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	NotFound int `json:"not_found"`
}

// AppDoc 是报告中的单个应用。
type AppDoc struct {
	AppInfo        AppInfoDoc        `json:"app_info"`
	RiskAssessment RiskAssessment    `json:"risk_assessment"`
	Permissions    PermissionsDoc    `json:"permissions"`
	DataCollection DataCollectionDoc `json:"data_collection"`
}

// AppInfoDoc 是应用基础信息；可选字段缺失时输出 null。
type AppInfoDoc struct {
	Name             string  `json:"name"`
	PackageID        string  `json:"package_id"`
	InstallSource    *string `json:"install_source"`
	FirstInstallTime *string `json:"first_install_time"`
	LastUpdateTime   *string `json:"last_update_time"`
}

// PermissionsDoc 是应用权限段。
type PermissionsDoc struct {
	Categorized CategorizedDoc       `json:"categorized"`
	Summary     PermissionCountsDoc  `json:"summary"`
	Details     PermissionDetailsDoc `json:"details"`
}

// CategorizedDoc 是分类后的权限。
type CategorizedDoc struct {
	Categories      map[string][]string `json:"categories"`
	PrivacyCritical []string            `json:"privacy_critical"`
	Other           []string            `json:"other"`
}

// PermissionCountsDoc 是权限计数。
type PermissionCountsDoc struct {
	TotalRequested         int `json:"total_requested"`
	TotalGranted           int `json:"total_granted"`
	TotalDenied            int `json:"total_denied"`
	PrivacyCriticalGranted int `json:"privacy_critical_granted"`
}

// PermissionDetailsDoc 是原始权限列表。
type PermissionDetailsDoc struct {
	Requested []string `json:"requested"`
	Granted   []string `json:"granted"`
	Denied    []string `json:"denied"`
}

// DataCollectionDoc 是数据集提供的采集画像；未命中时频次为 0、列表为空。
type DataCollectionDoc struct {
	Frequency      int           `json:"frequency"`
	Types          []string      `json:"types"`
	KnownBehaviors []string      `json:"known_behaviors"`
	MatchStrategy  MatchStrategy `json:"match_strategy"`
	MatchedOn      string        `json:"matched_on,omitempty"`
	DatasetSource  string        `json:"dataset_source,omitempty"`
}
