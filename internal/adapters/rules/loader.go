package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/hash"
)

// BundleTypePermissions 是权限分类表文件的 bundle_type。
const BundleTypePermissions = "permission_categories"

// Loader 负责从磁盘读取并校验权限分类表。
type Loader struct {
	PermissionFile string
}

// LoadedRules 是加载后的分类表和文件哈希，用于报告溯源。
type LoadedRules struct {
	Permissions       model.PermissionRuleBundle
	PermissionsSHA256 string
	Source            string
}

func NewLoader(permissionFile string) *Loader {
	return &Loader{PermissionFile: permissionFile}
}

// Load 读取、解析并校验分类表文件。
func (l *Loader) Load(ctx context.Context) (*LoadedRules, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(l.PermissionFile)
	if err != nil {
		return nil, fmt.Errorf("read permission rules: %w", err)
	}
	bundle, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &LoadedRules{
		Permissions:       bundle,
		PermissionsSHA256: hash.Bytes(raw),
		Source:            l.PermissionFile,
	}, nil
}

// Parse 解析 YAML 并执行结构校验。
func Parse(raw []byte) (model.PermissionRuleBundle, error) {
	var bundle model.PermissionRuleBundle
	if err := yaml.Unmarshal(raw, &bundle); err != nil {
		return bundle, fmt.Errorf("parse permission rules: %w", err)
	}
	if err := Validate(bundle); err != nil {
		return bundle, err
	}
	return bundle, nil
}

// Validate 检查分类表的完整性：版本非空、分类名唯一、
// 同一权限不能出现在两个分类里、隐私关键分类必须存在。
func Validate(bundle model.PermissionRuleBundle) error {
	if strings.TrimSpace(bundle.Version) == "" {
		return errors.New("permission rules: version is required")
	}
	if bt := strings.TrimSpace(bundle.BundleType); bt != "" && bt != BundleTypePermissions {
		return fmt.Errorf("permission rules: unexpected bundle_type: %s", bt)
	}
	if len(bundle.Categories) == 0 {
		return errors.New("permission rules: categories is empty")
	}

	categories := make(map[string]struct{}, len(bundle.Categories))
	owner := map[string]string{}
	for _, c := range bundle.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return errors.New("permission rules: category name is required")
		}
		if name == "other" {
			return errors.New("permission rules: category name \"other\" is reserved")
		}
		if _, ok := categories[name]; ok {
			return fmt.Errorf("permission rules: duplicate category: %s", name)
		}
		categories[name] = struct{}{}

		for _, p := range c.Permissions {
			p = strings.TrimSpace(p)
			if p == "" {
				return fmt.Errorf("permission rules: empty permission in category: %s", name)
			}
			if prev, ok := owner[p]; ok && prev != name {
				return fmt.Errorf("permission rules: %s listed in both %s and %s", p, prev, name)
			}
			owner[p] = name
		}
	}

	for _, pc := range bundle.PrivacyCritical {
		if _, ok := categories[strings.TrimSpace(pc)]; !ok {
			return fmt.Errorf("permission rules: unknown privacy-critical category: %s", pc)
		}
	}
	return nil
}
