package bundle

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/hash"
)

// VerifyItem 是 hashes.sha256 中一行的校验结果。
type VerifyItem struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Status   string `json:"status"` // ok|missing|mismatch|error
	Error    string `json:"error,omitempty"`
}

// VerifyResult 是导出包校验结果。
type VerifyResult struct {
	OK       bool         `json:"ok"`
	Total    int          `json:"total"`
	OKCount  int          `json:"ok_count"`
	Failed   int          `json:"failed"`
	Items    []VerifyItem `json:"items"`
	Manifest *Manifest    `json:"manifest,omitempty"`
	// Inconsistencies 是 manifest 与 scan/report.json 之间对不上的地方。
	Inconsistencies []string `json:"inconsistencies,omitempty"`
}

// Verify 校验导出包：逐项比对 hashes.sha256，并核对 manifest 的扫描摘要与报告 JSON 是否一致。
// 包本身打不开或缺少 hashes.sha256 时返回错误；内容不一致体现在 OK=false。
func Verify(zipPath string) (*VerifyResult, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	hashList, ok := files[HashListName]
	if !ok {
		return nil, fmt.Errorf("%s not found in zip", HashListName)
	}
	raw, err := readZipFileAll(hashList)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", HashListName, err)
	}
	expected, err := ParseHashList(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{Items: make([]VerifyItem, 0, len(expected))}
	for _, e := range expected {
		res.Total++
		item := VerifyItem{Path: e.Path, Expected: e.SHA256}
		f, ok := files[e.Path]
		switch {
		case !ok:
			item.Status = "missing"
		default:
			sum, err := sha256OfZipFile(f)
			switch {
			case err != nil:
				item.Status = "error"
				item.Error = err.Error()
			case strings.EqualFold(sum, e.SHA256):
				item.Status = "ok"
				item.Actual = sum
			default:
				item.Status = "mismatch"
				item.Actual = sum
			}
		}
		if item.Status == "ok" {
			res.OKCount++
		} else {
			res.Failed++
		}
		res.Items = append(res.Items, item)
	}

	if mf, ok := files[ManifestName]; ok {
		if data, err := readZipFileAll(mf); err == nil {
			var m Manifest
			if err := json.Unmarshal(data, &m); err == nil {
				res.Manifest = &m
			} else {
				res.Inconsistencies = append(res.Inconsistencies, "manifest.json is not valid json: "+err.Error())
			}
		}
	} else {
		res.Inconsistencies = append(res.Inconsistencies, "manifest.json missing")
	}
	if rf, ok := files[ReportJSONName]; ok && res.Manifest != nil && res.Manifest.Scan != nil {
		if data, err := readZipFileAll(rf); err == nil {
			res.Inconsistencies = append(res.Inconsistencies, crossCheck(*res.Manifest.Scan, data)...)
		}
	}

	res.OK = res.Failed == 0 && len(res.Inconsistencies) == 0
	return res, nil
}

// HashEntry 是 hashes.sha256 中的一行。
type HashEntry struct {
	SHA256 string
	Path   string
}

// ParseHashList 解析 sha256sum 格式：<sha256><两个空格><path>，忽略空行和 # 注释。
func ParseHashList(r io.Reader) ([]HashEntry, error) {
	var out []HashEntry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		sha := parts[0]
		p := strings.Join(parts[1:], " ")
		// sha256 必须是 64 位 hex，否则不当作校验项。
		if len(sha) != 64 {
			continue
		}
		out = append(out, HashEntry{SHA256: sha, Path: p})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read hash list: %w", err)
	}
	return out, nil
}

func crossCheck(info model.ScanInfo, reportJSON []byte) []string {
	var doc model.ReportDocument
	if err := json.Unmarshal(reportJSON, &doc); err != nil {
		return []string{"scan/report.json is not valid json: " + err.Error()}
	}
	var out []string
	if doc.ScanInfo.ScanID != info.ScanID {
		out = append(out, fmt.Sprintf("scan_id mismatch: manifest=%s report=%s", info.ScanID, doc.ScanInfo.ScanID))
	}
	counts := []struct {
		name        string
		manifest, r int
	}{
		{"total_apps", info.TotalApps, doc.Summary.TotalApps},
		{"high", info.HighCount, doc.Summary.RiskLevels.High},
		{"medium", info.MediumCount, doc.Summary.RiskLevels.Medium},
		{"low", info.LowCount, doc.Summary.RiskLevels.Low},
		{"not_found", info.NotFoundCount, doc.Summary.RiskLevels.NotFound},
	}
	for _, c := range counts {
		if c.manifest != c.r {
			out = append(out, fmt.Sprintf("%s mismatch: manifest=%d report=%d", c.name, c.manifest, c.r))
		}
	}
	if len(doc.Apps) != doc.Summary.TotalApps {
		out = append(out, fmt.Sprintf("report lists %d apps but summary says %d", len(doc.Apps), doc.Summary.TotalApps))
	}
	return out
}

func sha256OfZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	sum, _, err := hash.Reader(rc)
	return sum, err
}

func readZipFileAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
