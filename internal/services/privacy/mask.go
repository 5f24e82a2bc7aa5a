package privacy

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"

	"privacy-inspector/internal/domain/model"
)

// Mode 是报告的隐私展示模式。
type Mode string

const (
	// ModeOff 原样展示设备标识。
	ModeOff Mode = "off"
	// ModeMasked 对外分享时隐藏设备标识，只影响渲染结果，不改扫描数据。
	ModeMasked Mode = "masked"
)

var reMAC = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)

// ParseMode 解析配置里的 privacy_mode；空串视为 off。
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeOff:
		return ModeOff, nil
	case ModeMasked:
		return ModeMasked, nil
	default:
		return "", fmt.Errorf("unknown privacy mode: %q", s)
	}
}

// MaskDeviceInfo 返回脱敏后的设备信息副本（android_id、序列号、MAC、IP）。
func MaskDeviceInfo(d model.DeviceInfo) model.DeviceInfo {
	out := d
	out.Identifiers = model.DeviceIdentifiers{
		AndroidID:    maskPtr(d.Identifiers.AndroidID, MaskIdentifier),
		Serial:       maskPtr(d.Identifiers.Serial, MaskIdentifier),
		MACBluetooth: maskPtr(d.Identifiers.MACBluetooth, MaskMAC),
		IPAddresses:  make([]string, 0, len(d.Identifiers.IPAddresses)),
	}
	for _, ip := range d.Identifiers.IPAddresses {
		out.Identifiers.IPAddresses = append(out.Identifiers.IPAddresses, MaskIP(ip))
	}
	return out
}

func maskPtr(p *string, fn func(string) string) *string {
	if p == nil {
		return nil
	}
	v := fn(*p)
	return &v
}

// MaskIdentifier 保留头尾各少量字符，隐藏中间；太短的整体隐藏。
func MaskIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "<masked>"
	}
	return s[:2] + "..." + s[len(s)-4:]
}

// MaskMAC 只保留厂商前缀（OUI），形如 AA:BB:CC:**:**:**。
func MaskMAC(s string) string {
	s = strings.TrimSpace(s)
	if !reMAC.MatchString(s) {
		return "<masked>"
	}
	sep := s[2:3]
	parts := strings.Split(s, sep)
	return strings.Join(append(parts[:3], "**", "**", "**"), sep)
}

// MaskIP 对 IPv4 隐藏后两段，其他格式整体隐藏。
func MaskIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil || ip.To4() == nil {
		return "<masked>"
	}
	v4 := ip.To4()
	return fmt.Sprintf("%d.%d.*.*", v4[0], v4[1])
}

// MaskSnapshotPath 把绝对路径压缩为文件名，避免在对外材料中暴露用户名/目录结构。
func MaskSnapshotPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Base(p)
}
