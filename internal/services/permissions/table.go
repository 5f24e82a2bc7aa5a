// Package permissions 按固定分类表给 Android 权限归类，并标记隐私关键权限。
package permissions

import (
	"fmt"
	"sort"
	"strings"

	"privacy-inspector/internal/adapters/rules"
	"privacy-inspector/internal/domain/model"
)

// OtherBucket 是未归入任何分类的权限所在的桶名。
const OtherBucket = "other"

const androidPrefix = "android.permission."

// Table 是不可变的分类表。
type Table struct {
	version      string
	order        []string
	byPermission map[string]string
	critical     map[string]struct{}
}

// NewTable 校验并冻结一份分类表。
func NewTable(bundle model.PermissionRuleBundle) (*Table, error) {
	if err := rules.Validate(bundle); err != nil {
		return nil, err
	}
	t := &Table{
		version:      bundle.Version,
		byPermission: map[string]string{},
		critical:     map[string]struct{}{},
	}
	for _, c := range bundle.Categories {
		name := strings.TrimSpace(c.Name)
		t.order = append(t.order, name)
		for _, p := range c.Permissions {
			t.byPermission[strings.TrimSpace(p)] = name
		}
	}
	for _, pc := range bundle.PrivacyCritical {
		t.critical[strings.TrimSpace(pc)] = struct{}{}
	}
	return t, nil
}

// Default 返回内置分类表。
func Default() *Table {
	t, err := NewTable(DefaultBundle())
	if err != nil {
		panic(fmt.Sprintf("built-in permission table is invalid: %v", err))
	}
	return t
}

// Version 返回分类表版本。
func (t *Table) Version() string { return t.version }

// Categories 按表内顺序返回分类名。
func (t *Table) Categories() []string {
	return append([]string(nil), t.order...)
}

// CriticalCategories 返回隐私关键分类名（升序）。
func (t *Table) CriticalCategories() []string {
	out := make([]string, 0, len(t.critical))
	for c := range t.critical {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CategoryOf 返回权限所属分类。短名（ACCESS_FINE_LOCATION）按 android.permission.* 解析。
func (t *Table) CategoryOf(perm string) (string, bool) {
	perm = strings.TrimSpace(perm)
	if c, ok := t.byPermission[perm]; ok {
		return c, true
	}
	if perm != "" && !strings.Contains(perm, ".") {
		c, ok := t.byPermission[androidPrefix+perm]
		return c, ok
	}
	return "", false
}

// IsPrivacyCritical 判断权限是否属于隐私关键分类。
func (t *Table) IsPrivacyCritical(perm string) bool {
	c, ok := t.CategoryOf(perm)
	if !ok {
		return false
	}
	_, crit := t.critical[c]
	return crit
}

// Categorize 对 requested ∪ granted ∪ denied 去重后逐个归类。
// 每个权限恰好进入一个分类或 other；桶里保留原始字符串。
func (t *Table) Categorize(app model.InstalledApp) model.CategorizedPermissions {
	requested := model.DedupeExact(app.PermissionsRequested)
	granted := model.DedupeExact(app.PermissionsGranted)
	denied := model.DedupeExact(app.PermissionsDenied)

	all := make([]string, 0, len(requested)+len(granted)+len(denied))
	all = append(all, requested...)
	all = append(all, granted...)
	all = append(all, denied...)

	out := model.CategorizedPermissions{
		Categories:             map[string][]string{},
		Other:                  []string{},
		PrivacyCritical:        []string{},
		PrivacyCriticalGranted: t.PrivacyCriticalGranted(app),
		TotalRequested:         len(requested),
		TotalGranted:           len(granted),
		TotalDenied:            len(denied),
	}
	for _, p := range model.DedupeExact(all) {
		c, ok := t.CategoryOf(p)
		if !ok {
			out.Other = append(out.Other, p)
			continue
		}
		out.Categories[c] = append(out.Categories[c], p)
		if _, crit := t.critical[c]; crit {
			out.PrivacyCritical = append(out.PrivacyCritical, p)
		}
	}
	return out
}

// PrivacyCriticalGranted 返回已授予且属于隐私关键分类的权限（保持原顺序）。
func (t *Table) PrivacyCriticalGranted(app model.InstalledApp) []string {
	out := []string{}
	for _, p := range model.DedupeExact(app.PermissionsGranted) {
		if t.IsPrivacyCritical(p) {
			out = append(out, p)
		}
	}
	return out
}
