// Package render 把扫描结果落盘为 JSON / HTML / PDF 报告。
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/hash"
	"privacy-inspector/internal/platform/logger"
	"privacy-inspector/internal/services/privacy"
	"privacy-inspector/internal/services/report"
)

// Format 是报告文件格式。
type Format string

const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// DefaultFormats 与命令行默认值一致：JSON + HTML。
var DefaultFormats = []Format{FormatJSON, FormatHTML}

// ParseFormats 解析格式列表（大小写不敏感、去重）；空列表返回默认格式。
func ParseFormats(list []string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, raw := range list {
		for _, part := range strings.Split(raw, ",") {
			f := Format(strings.ToLower(strings.TrimSpace(part)))
			if f == "" {
				continue
			}
			switch f {
			case FormatJSON, FormatHTML, FormatPDF:
			default:
				return nil, fmt.Errorf("unknown report format: %q", part)
			}
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return append([]Format(nil), DefaultFormats...), nil
	}
	return out, nil
}

// Options 控制报告输出。
type Options struct {
	ReportsDir string
	Formats    []Format
	Mode       privacy.Mode
	Now        func() time.Time
}

// Result 是一次渲染的产物。
type Result struct {
	Dir      string             `json:"dir"`
	Files    []model.ReportFile `json:"files"`
	Warnings []string           `json:"warnings"`
}

// Writer 负责报告目录与文件的生成。
type Writer struct {
	opts Options
	log  *logger.Logger
}

// NewWriter 创建报告写入器。
func NewWriter(opts Options, log *logger.Logger) *Writer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.Formats) == 0 {
		opts.Formats = append([]Format(nil), DefaultFormats...)
	}
	if opts.Mode == "" {
		opts.Mode = privacy.ModeOff
	}
	if strings.TrimSpace(opts.ReportsDir) == "" {
		opts.ReportsDir = "reports"
	}
	return &Writer{opts: opts, log: log.OrNop().WithComponent("render")}
}

// Write 在 <reports_dir>/<date>_<device> 下生成 report_<device>.<ext>，并返回每个文件的 sha256。
func (w *Writer) Write(ctx context.Context, r *model.ScanReport) (*Result, error) {
	if r == nil {
		return nil, fmt.Errorf("nil scan report")
	}
	now := w.opts.Now()
	name := DeviceName(r.DeviceInfo, w.opts.Mode)
	dir := Dir(w.opts.ReportsDir, r.DeviceInfo, w.opts.Mode, now)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir report dir: %w", err)
	}
	w.log.Info().Str("dir", dir).Msg("writing reports")

	doc := report.BuildDocument(r, w.opts.Mode)
	res := &Result{Dir: dir, Files: []model.ReportFile{}, Warnings: []string{}}

	for _, f := range w.opts.Formats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, "report_"+name+"."+string(f))

		var err error
		switch f {
		case FormatJSON:
			err = writeJSON(path, r, w.opts.Mode)
		case FormatHTML:
			err = writeHTML(path, doc)
		case FormatPDF:
			var utf8OK bool
			utf8OK, err = writePDF(path, doc)
			if err == nil && !utf8OK {
				res.Warnings = append(res.Warnings, "pdf utf8 font not available; non-ascii text may be replaced with '?'")
			}
		default:
			err = fmt.Errorf("unknown report format: %q", f)
		}
		if err != nil {
			return nil, fmt.Errorf("write %s report: %w", f, err)
		}

		sum, size, err := hash.File(path)
		if err != nil {
			return nil, fmt.Errorf("sha256 %s report: %w", f, err)
		}
		res.Files = append(res.Files, model.ReportFile{
			ScanID:      r.ScanID,
			Kind:        string(f),
			FilePath:    path,
			SHA256:      sum,
			SizeBytes:   size,
			GeneratedAt: now.Unix(),
		})
		w.log.Debug().Str("format", string(f)).Str("path", path).Str("sha256", sum).Msg("report written")
	}
	return res, nil
}

func writeJSON(path string, r *model.ScanReport, mode privacy.Mode) error {
	raw, err := report.ToJSON(r, mode)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}
