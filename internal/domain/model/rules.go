package model

// PermissionRuleBundle 是权限分类表文件的顶层结构。
type PermissionRuleBundle struct {
	Version     string                   `yaml:"version" json:"version"`
	BundleType  string                   `yaml:"bundle_type" json:"bundle_type"`
	Maintainer  string                   `yaml:"maintainer" json:"maintainer,omitempty"`
	Description string                   `yaml:"description" json:"description,omitempty"`
	Categories  []PermissionCategoryRule `yaml:"categories" json:"categories"`
	// PrivacyCritical 列出隐私关键分类名，必须都在 Categories 中出现。
	PrivacyCritical []string `yaml:"privacy_critical" json:"privacy_critical"`
}

// PermissionCategoryRule 定义一个权限分类，Permissions 使用完整权限名（android.permission.*）。
type PermissionCategoryRule struct {
	Name        string   `yaml:"name" json:"name"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}
