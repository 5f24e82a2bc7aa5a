package render

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/phpdave11/gofpdf"

	"privacy-inspector/internal/domain/model"
)

// FontEnv 指定 PDF 使用的 TrueType 字体路径，优先于系统字体探测。
const FontEnv = "PRIVACY_INSPECTOR_PDF_FONT"

func writePDF(path string, doc model.ReportDocument) (bool, error) {
	pdf, utf8OK := buildPDF(doc)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return utf8OK, fmt.Errorf("write pdf: %w", err)
	}
	return utf8OK, nil
}

func buildPDF(doc model.ReportDocument) (*gofpdf.Fpdf, bool) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("Privacy Inspector - App Risk Report", false)

	fontFamily, utf8OK := initPDFUnicodeFont(pdf)

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 9, "Privacy Inspector - App Risk Report", "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, fmt.Sprintf("Scan ID: %s", safeText(doc.ScanInfo.ScanID, utf8OK)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated at: %s", safeText(doc.ScanInfo.GeneratedAt, utf8OK)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Scanner version: %s | privacy mode: %s", safeText(doc.ScanInfo.ScannerVersion, utf8OK), doc.ScanInfo.PrivacyMode), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	d := doc.DeviceInfo
	sectionTitle(pdf, fontFamily, "1. Device")
	kv(pdf, fontFamily, utf8OK, "OS", string(d.OS))
	kv(pdf, fontFamily, utf8OK, "Manufacturer", model.Deref(d.Manufacturer, ""))
	kv(pdf, fontFamily, utf8OK, "Model", model.Deref(d.Model, ""))
	kv(pdf, fontFamily, utf8OK, "Brand", model.Deref(d.Brand, ""))
	kv(pdf, fontFamily, utf8OK, "Android Version", model.Deref(d.AndroidVersion, ""))
	kv(pdf, fontFamily, utf8OK, "Security Patch", model.Deref(d.SecurityPatch, ""))
	kv(pdf, fontFamily, utf8OK, "Android ID", model.Deref(d.Identifiers.AndroidID, ""))
	kv(pdf, fontFamily, utf8OK, "Serial", model.Deref(d.Identifiers.Serial, ""))
	kv(pdf, fontFamily, utf8OK, "Bluetooth MAC", model.Deref(d.Identifiers.MACBluetooth, ""))
	kv(pdf, fontFamily, utf8OK, "IP Addresses", strings.Join(d.Identifiers.IPAddresses, ", "))
	pdf.Ln(2)

	s := doc.Summary
	sectionTitle(pdf, fontFamily, "2. Summary")
	kv(pdf, fontFamily, utf8OK, "Total Apps", fmt.Sprintf("%d", s.TotalApps))
	kv(pdf, fontFamily, utf8OK, "High", fmt.Sprintf("%d", s.RiskLevels.High))
	kv(pdf, fontFamily, utf8OK, "Medium", fmt.Sprintf("%d", s.RiskLevels.Medium))
	kv(pdf, fontFamily, utf8OK, "Low", fmt.Sprintf("%d", s.RiskLevels.Low))
	kv(pdf, fontFamily, utf8OK, "Not Found", fmt.Sprintf("%d", s.RiskLevels.NotFound))
	kv(pdf, fontFamily, utf8OK, "Critical Granted", fmt.Sprintf("%d apps", s.PermissionsSummary.AppsPrivacyCriticalGranted))
	pdf.Ln(2)

	if len(doc.ScanInfo.DatasetSources) > 0 {
		sectionTitle(pdf, fontFamily, "3. Dataset Sources")
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(40, 40, 40)
		for _, src := range doc.ScanInfo.DatasetSources {
			pdf.MultiCell(0, 4.5, fmt.Sprintf("%s | priority=%d | rows=%d | sha256=%s",
				safeText(src.Name, utf8OK), src.Priority, src.Rows, src.SHA256), "", "L", false)
		}
		pdf.Ln(2)
	}

	sectionTitle(pdf, fontFamily, "4. Apps by Risk Level")
	for _, level := range model.RiskLevels {
		title, _ := groupTitle(level)
		pdf.SetFont(fontFamily, "B", 11)
		pdf.SetTextColor(levelColor(level))
		pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")

		n := 0
		for _, a := range doc.Apps {
			if a.RiskAssessment.Level != level {
				continue
			}
			n++
			pdf.SetFont(fontFamily, "B", 10)
			pdf.SetTextColor(20, 20, 20)
			pdf.MultiCell(0, 5, fmt.Sprintf("%s (%s) | score=%.1f | match=%s",
				safeText(a.AppInfo.Name, utf8OK),
				safeText(a.AppInfo.PackageID, utf8OK),
				a.RiskAssessment.Score,
				a.DataCollection.MatchStrategy,
			), "", "L", false)
			pdf.SetFont(fontFamily, "", 9)
			pdf.SetTextColor(40, 40, 40)
			if a.DataCollection.Frequency > 0 || len(a.DataCollection.Types) > 0 {
				pdf.MultiCell(0, 4.5, fmt.Sprintf("frequency: %d | types: %s",
					a.DataCollection.Frequency, safeText(strings.Join(a.DataCollection.Types, ", "), utf8OK)), "", "L", false)
			}
			if len(a.Permissions.Categorized.PrivacyCritical) > 0 {
				pdf.MultiCell(0, 4.5, fmt.Sprintf("privacy-critical: %s",
					safeText(strings.Join(a.Permissions.Categorized.PrivacyCritical, ", "), utf8OK)), "", "L", false)
			}
			for _, f := range a.RiskAssessment.Factors {
				pdf.MultiCell(0, 4.5, "- "+safeText(f, utf8OK), "", "L", false)
			}
			pdf.Ln(1)
		}
		if n == 0 {
			pdf.SetFont(fontFamily, "", 9)
			pdf.SetTextColor(90, 90, 90)
			pdf.MultiCell(0, 4.5, "(empty)", "", "L", false)
		}
		pdf.Ln(1)
	}

	pdf.Ln(2)
	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, 4.5, "Note: risk levels reflect the collection frequency recorded in the leaked dataset, not observed network traffic.", "", "L", false)

	return pdf, utf8OK
}

func levelColor(level model.RiskLevel) (int, int, int) {
	switch level {
	case model.RiskHigh:
		return 211, 47, 47
	case model.RiskMedium:
		return 245, 124, 0
	case model.RiskLow:
		return 56, 142, 60
	default:
		return 117, 117, 117
	}
}

func sectionTitle(pdf *gofpdf.Fpdf, fontFamily string, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 196, pdf.GetY())
	pdf.Ln(2)
}

func kv(pdf *gofpdf.Fpdf, fontFamily string, utf8OK bool, key string, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(40, 5.2, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, safeText(value, utf8OK), "", "L", false)
}

// safeText 去掉换行/制表符；没有 UTF-8 字体时把非 ASCII 字符替换为 '?'，保证 PDF 一定能生成。
func safeText(s string, utf8OK bool) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	s = strings.TrimSpace(s)
	if utf8OK {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

// initPDFUnicodeFont 尝试加载 UTF-8 字体（TrueType），以支持中文等非 ASCII 应用名。
//
// 顺序：环境变量 PRIVACY_INSPECTOR_PDF_FONT，其次按系统常见字体路径探测；
// 都失败时回退到 Helvetica，由 safeText() 兜底替换非 ASCII 字符。
func initPDFUnicodeFont(pdf *gofpdf.Fpdf) (family string, utf8OK bool) {
	const familyName = "unicode"
	candidates := []string{}

	if v := strings.TrimSpace(os.Getenv(FontEnv)); v != "" {
		candidates = append(candidates, v)
	}

	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates,
			"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
			"/System/Library/Fonts/Supplemental/AppleGothic.ttf",
		)
	case "windows":
		candidates = append(candidates,
			`C:\Windows\Fonts\arialuni.ttf`,
			`C:\Windows\Fonts\simhei.ttf`,
		)
	default:
		candidates = append(candidates,
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf",
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		pdf.AddUTF8Font(familyName, "", p)
		if pdf.Err() {
			pdf.ClearError()
			continue
		}
		// 只有一个字体文件时也注册 B 样式，避免 SetFont(...,"B",...) 报错。
		pdf.AddUTF8Font(familyName, "B", p)
		if pdf.Err() {
			pdf.ClearError()
		}
		return familyName, true
	}

	return "Helvetica", false
}
