package model

import "strings"

// OSType 表示被扫描设备的操作系统类型。
type OSType string

const (
	// OSAndroid 表示 Android 设备。
	OSAndroid OSType = "android"
	// OSIOS 表示 iOS 设备。
	OSIOS OSType = "ios"
)

// DeviceIdentifiers 是设备上可被第三方用于关联用户的标识。
// 所有字段都是可选的：采集不到时保持 nil / 空切片，不做猜测。
type DeviceIdentifiers struct {
	AndroidID    *string  `json:"android_id"`
	Serial       *string  `json:"serial"`
	MACBluetooth *string  `json:"mac_bluetooth"`
	IPAddresses  []string `json:"ip_addresses"`
}

// DeviceInfo 是扫描开始时采集的设备快照，采集完成后不再修改。
type DeviceInfo struct {
	OS             OSType            `json:"os"`
	Manufacturer   *string           `json:"manufacturer"`
	Model          *string           `json:"model"`
	Brand          *string           `json:"brand"`
	Device         *string           `json:"device"`
	AndroidVersion *string           `json:"android_version"`
	SecurityPatch  *string           `json:"security_patch"`
	Identifiers    DeviceIdentifiers `json:"identifiers"`
}

// InstalledApp 是一条已安装应用记录（采集器产出，评估阶段只读）。
//
// 三个权限列表各自去重；同一权限可能同时出现在 requested 和 granted 中。
type InstalledApp struct {
	PackageID            string   `json:"package_id"`
	DisplayName          *string  `json:"display_name"`
	OS                   OSType   `json:"os,omitempty"`
	PermissionsRequested []string `json:"permissions_requested"`
	PermissionsGranted   []string `json:"permissions_granted"`
	PermissionsDenied    []string `json:"permissions_denied"`
	InstallSource        *string  `json:"install_source"`
	FirstInstallTime     *string  `json:"first_install_time"`
	LastUpdateTime       *string  `json:"last_update_time"`
}

// Name 返回应用的展示名；没有展示名时回退到包名。
func (a InstalledApp) Name() string {
	if a.DisplayName != nil && strings.TrimSpace(*a.DisplayName) != "" {
		return *a.DisplayName
	}
	return a.PackageID
}

// Optional 把空白字符串转成 nil，其余返回去掉首尾空白后的指针。
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref 返回指针指向的值，nil 时返回 def。
func Deref(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

// Dedupe 保持首次出现顺序去重，并丢弃空白项。
func Dedupe(items []string) []string {
	if len(items) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// DedupeExact 按原始字符串去重并保持首次出现顺序，不裁剪也不丢弃空串。
func DedupeExact(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
