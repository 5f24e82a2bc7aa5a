package model

// DatasetEntry 是数据集里的一条应用画像。
//
// NormalizedName 是索引主键；Frequency 为 0 且 FrequencyDefined=false 表示源数据里该列为空。
type DatasetEntry struct {
	RawName          string   `json:"raw_name"`
	NormalizedName   string   `json:"normalized_name"`
	PackageID        string   `json:"package_id,omitempty"`
	Frequency        int      `json:"frequency"`
	FrequencyDefined bool     `json:"frequency_defined"`
	DataTypes        []string `json:"data_types"`
	KnownBehaviors   []string `json:"known_behaviors"`
	SourceName       string   `json:"source_name"`
	SourcePriority   int      `json:"source_priority"`
	Row              int      `json:"row"`
}

// DatasetSource 描述一个数据集文件及其在去重冲突中的优先级。
type DatasetSource struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// SourceDigest 记录一个已加载文件的指纹，便于报告溯源。
type SourceDigest struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Rows      int    `json:"rows"`
}

// RowWarning 是加载过程中被跳过或被替换的行。
type RowWarning struct {
	Source string `json:"source"`
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// LoadSummary 汇总一次数据集加载的结果。
type LoadSummary struct {
	Sources  []SourceDigest `json:"sources"`
	RowsRead int            `json:"rows_read"`
	Retained int            `json:"retained"`
	Skipped  int            `json:"skipped"`
	Replaced int            `json:"replaced"`
	Warnings []RowWarning   `json:"warnings"`
}
