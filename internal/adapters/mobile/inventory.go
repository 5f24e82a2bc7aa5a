package mobile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"privacy-inspector/internal/domain/model"
)

// InventoryCollector 从 collect 命令写出的清单文件读取采集结果，用于离线扫描。
type InventoryCollector struct {
	Path string
}

// Collect 读取清单文件。
func (c InventoryCollector) Collect(ctx context.Context) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	col, err := ReadInventory(c.Path)
	if err != nil {
		return nil, err
	}
	col.Prechecks = append(col.Prechecks, model.PrecheckResult{
		CheckCode: "device_connection",
		CheckName: "device connection",
		Status:    model.PrecheckSkipped,
		Message:   "offline inventory " + filepath.Base(c.Path),
		CheckedAt: col.CollectedAt,
	})
	return col, nil
}

// ReadInventory 读取并规整清单：权限列表去重，缺失的列表补成空。
func ReadInventory(path string) (*Collection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	var col Collection
	if err := json.Unmarshal(raw, &col); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	if col.Source == "" {
		col.Source = "inventory"
	}
	if col.DeviceInfo.Identifiers.IPAddresses == nil {
		col.DeviceInfo.Identifiers.IPAddresses = []string{}
	}
	apps := make([]model.InstalledApp, 0, len(col.Apps))
	for i, a := range col.Apps {
		if a.PackageID == "" {
			return nil, fmt.Errorf("parse inventory: app %d has no package_id", i)
		}
		a.PermissionsRequested = model.Dedupe(a.PermissionsRequested)
		a.PermissionsGranted = model.Dedupe(a.PermissionsGranted)
		a.PermissionsDenied = model.Dedupe(a.PermissionsDenied)
		if a.OS == "" {
			a.OS = col.DeviceInfo.OS
		}
		apps = append(apps, a)
	}
	col.Apps = apps
	return &col, nil
}

// WriteInventory 把采集结果写成带缩进的 JSON。
func WriteInventory(path string, col *Collection) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create inventory dir: %w", err)
		}
	}
	raw, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	return nil
}
