package model

// ScanInfo 是扫描列表/详情使用的轻量结构（不含完整报告 JSON）。
type ScanInfo struct {
	ScanID          string `json:"scan_id"`
	OS              string `json:"os"`
	DeviceLabel     string `json:"device_label"`
	Source          string `json:"source"`
	Status          string `json:"status"`
	PrivacyMode     string `json:"privacy_mode"`
	TotalApps       int    `json:"total_apps"`
	HighCount       int    `json:"high_count"`
	MediumCount     int    `json:"medium_count"`
	LowCount        int    `json:"low_count"`
	NotFoundCount   int    `json:"not_found_count"`
	DatasetBundleID string `json:"dataset_bundle_id,omitempty"`
	ReportDir       string `json:"report_dir,omitempty"`
	StartedAt       int64  `json:"started_at"`
	FinishedAt      int64  `json:"finished_at"`
}

// ScanAppRow 是 scan_apps 表中的一行。
type ScanAppRow struct {
	ScanID          string   `json:"scan_id"`
	Ordinal         int      `json:"ordinal"`
	PackageID       string   `json:"package_id"`
	Name            string   `json:"name"`
	RiskLevel       string   `json:"risk_level"`
	Score           float64  `json:"score"`
	MatchStrategy   string   `json:"match_strategy"`
	MatchedOn       string   `json:"matched_on,omitempty"`
	Frequency       int      `json:"frequency"`
	DataTypes       []string `json:"data_types"`
	GrantedCritical []string `json:"privacy_critical_granted"`
}

// ReportFile 表示一个已生成的报告文件（report_files 表）。
type ReportFile struct {
	ScanID      string `json:"scan_id"`
	Kind        string `json:"kind"`
	FilePath    string `json:"file_path"`
	SHA256      string `json:"sha256"`
	SizeBytes   int64  `json:"size_bytes"`
	GeneratedAt int64  `json:"generated_at"`
}

// DatasetBundle 是一次数据集加载的登记记录（dataset_bundles 表）。
// BundleID 由各源文件 sha256 派生，同一组文件重复加载得到同一个 ID。
type DatasetBundle struct {
	BundleID string         `json:"bundle_id"`
	SHA256   string         `json:"sha256"`
	Sources  []SourceDigest `json:"sources"`
	Entries  int            `json:"entries"`
	RowsRead int            `json:"rows_read"`
	Skipped  int            `json:"skipped"`
	Replaced int            `json:"replaced"`
	LoadedAt int64          `json:"loaded_at"`
}

// ScanRecord 是一次扫描落库所需的全部数据，由 Store.SaveScan 在一个事务里写入。
type ScanRecord struct {
	Info       ScanInfo
	Apps       []ScanAppRow
	Files      []ReportFile
	Prechecks  []PrecheckResult
	Warnings   []string
	ReportJSON []byte
}
