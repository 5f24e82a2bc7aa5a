package render

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/services/privacy"
)

var reUnsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DeviceName 返回 <manufacturer>_<model>_<android_id 后 5 位>。
// 缺少厂商/型号时分别用 unknown / device；masked 模式下不带 android_id 后缀。
func DeviceName(d model.DeviceInfo, mode privacy.Mode) string {
	manufacturer := sanitize(model.Deref(d.Manufacturer, ""), "unknown")
	mdl := sanitize(model.Deref(d.Model, ""), "device")

	suffix := ""
	if mode != privacy.ModeMasked {
		aid := strings.TrimSpace(model.Deref(d.Identifiers.AndroidID, ""))
		if len(aid) > 5 {
			aid = aid[len(aid)-5:]
		}
		suffix = sanitize(aid, "")
	}
	return manufacturer + "_" + mdl + "_" + suffix
}

// Dir 返回本次报告的输出目录：<reportsDir>/<YYYY-MM-DD>_<DeviceName>。
func Dir(reportsDir string, d model.DeviceInfo, mode privacy.Mode, now time.Time) string {
	return filepath.Join(reportsDir, now.Format("2006-01-02")+"_"+DeviceName(d, mode))
}

func sanitize(s, def string) string {
	s = strings.TrimSpace(s)
	s = reUnsafeName.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return def
	}
	return s
}
