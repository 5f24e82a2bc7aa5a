// Package bundle 把一次扫描打包成可分享的 ZIP（报告 + 数据集 + manifest + sha256 清单），并提供离线校验。
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"privacy-inspector/internal/app"
	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/hash"
	"privacy-inspector/internal/platform/logger"
)

const (
	ManifestSchemaV1 = "privacy_inspector.scan_bundle_manifest.v1"

	ManifestName   = "manifest.json"
	HashListName   = "hashes.sha256"
	ReportJSONName = "scan/report.json"
)

// Store 是导出所需的只读查询，由 sqlite.Store 实现。
type Store interface {
	GetScan(ctx context.Context, scanID string) (*model.ScanInfo, error)
	GetScanReportJSON(ctx context.Context, scanID string) ([]byte, error)
	GetScanNotes(ctx context.Context, scanID string) ([]model.PrecheckResult, []string, error)
	ListReportFiles(ctx context.Context, scanID string) ([]model.ReportFile, error)
	GetDatasetBundle(ctx context.Context, bundleID string) (*model.DatasetBundle, error)
}

// ExportOptions 定义导出参数。
type ExportOptions struct {
	ScanID    string
	ExportDir string
	// IncludeDatasets 为 true 时把数据集 CSV 原文一并打包。
	IncludeDatasets bool
	// PermissionTable 非空时把权限分类表一并打包。
	PermissionTable string
	Note            string
	Now             func() time.Time
}

// FileHashEntry 是 ZIP 内单个文件的指纹。
type FileHashEntry struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Kind      string `json:"kind"` // report|dataset|rule|scan|manifest
}

// ManifestReport 记录报告文件的落库信息与其在 ZIP 内的位置。
type ManifestReport struct {
	Report  model.ReportFile `json:"report"`
	ZipPath string           `json:"zip_path"`
}

// Manifest 是 manifest.json 的结构。
type Manifest struct {
	Schema      string `json:"schema"`
	GeneratedAt int64  `json:"generated_at"`

	App struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
	} `json:"app"`

	Scan      *model.ScanInfo        `json:"scan"`
	Dataset   *model.DatasetBundle   `json:"dataset,omitempty"`
	Reports   []ManifestReport       `json:"reports"`
	Prechecks []model.PrecheckResult `json:"prechecks"`
	Files     []FileHashEntry        `json:"files"`
	Warnings  []string               `json:"warnings,omitempty"`
	Note      string                 `json:"note,omitempty"`
}

// ExportResult 是一次导出的摘要。
type ExportResult struct {
	ScanID     string   `json:"scan_id"`
	ZipPath    string   `json:"zip_path"`
	ZipSHA256  string   `json:"zip_sha256"`
	FileCount  int      `json:"file_count"`
	Warnings   []string `json:"warnings,omitempty"`
	StartedAt  int64    `json:"started_at"`
	FinishedAt int64    `json:"finished_at"`
}

// Exporter 生成扫描 ZIP。
type Exporter struct {
	store Store
	log   *logger.Logger
}

func NewExporter(store Store, log *logger.Logger) *Exporter {
	return &Exporter{store: store, log: log.OrNop().WithComponent("bundle")}
}

type includeSpec struct {
	SrcPath string
	ZipPath string
	Kind    string
}

// Export 生成 <export_dir>/<scan_id>_bundle_<unix>.zip。
//
// ZIP 内容：
//   - scan/report.json：落库时的报告 JSON
//   - reports/..：渲染出的报告文件
//   - datasets/..、rules/..：可选，本次使用的数据集与权限表
//   - manifest.json、hashes.sha256（sha256sum 兼容格式，不含自身）
//
// 磁盘文件缺失或与落库 sha256 不一致时只记告警，不阻断导出。
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	startedAt := opts.Now().Unix()

	scanID := strings.TrimSpace(opts.ScanID)
	if scanID == "" {
		return nil, fmt.Errorf("scan_id is required")
	}
	exportDir := strings.TrimSpace(opts.ExportDir)
	if exportDir == "" {
		exportDir = app.DefaultConfig().ExportDir
	}
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	info, err := e.store.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("scan not found: %s", scanID)
	}
	reportJSON, err := e.store.GetScanReportJSON(ctx, scanID)
	if err != nil {
		return nil, err
	}
	prechecks, _, err := e.store.GetScanNotes(ctx, scanID)
	if err != nil {
		return nil, err
	}
	files, err := e.store.ListReportFiles(ctx, scanID)
	if err != nil {
		return nil, err
	}
	var ds *model.DatasetBundle
	if info.DatasetBundleID != "" {
		if ds, err = e.store.GetDatasetBundle(ctx, info.DatasetBundleID); err != nil {
			return nil, err
		}
	}

	var (
		warnings []string
		includes []includeSpec
	)

	manifestReports := make([]ManifestReport, 0, len(files))
	for _, f := range files {
		zipPath := path.Join("reports", filepath.Base(f.FilePath))
		if sum, _, err := hash.File(f.FilePath); err == nil && !strings.EqualFold(sum, f.SHA256) {
			warnings = append(warnings, fmt.Sprintf("report %s changed since scan (recorded %s, now %s)", f.Kind, f.SHA256, sum))
		}
		includes = append(includes, includeSpec{SrcPath: f.FilePath, ZipPath: zipPath, Kind: "report"})
		manifestReports = append(manifestReports, ManifestReport{Report: f, ZipPath: zipPath})
	}

	if opts.IncludeDatasets && ds != nil {
		for _, src := range ds.Sources {
			includes = append(includes, includeSpec{
				SrcPath: src.Path,
				ZipPath: path.Join("datasets", filepath.Base(src.Path)),
				Kind:    "dataset",
			})
		}
	}
	if p := strings.TrimSpace(opts.PermissionTable); p != "" {
		includes = append(includes, includeSpec{SrcPath: p, ZipPath: path.Join("rules", filepath.Base(p)), Kind: "rule"})
	}

	zipPath := filepath.Join(exportDir, fmt.Sprintf("%s_bundle_%d.zip", scanID, startedAt))
	f, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	defer func() { _ = zw.Close() }()

	modified := opts.Now()
	var fileHashes []FileHashEntry

	sum, size, err := writeZipFileFromBytes(zw, ReportJSONName, reportJSON, modified)
	if err != nil {
		return nil, fmt.Errorf("write report json to zip: %w", err)
	}
	fileHashes = append(fileHashes, FileHashEntry{Path: ReportJSONName, SHA256: sum, SizeBytes: size, Kind: "scan"})

	seen := map[string]bool{ReportJSONName: true}
	for _, it := range includes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[it.ZipPath] {
			warnings = append(warnings, fmt.Sprintf("skip duplicate zip path %s", it.ZipPath))
			continue
		}
		sum, size, err := writeZipFileFromDisk(zw, it.SrcPath, it.ZipPath)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skip file %s -> %s: %v", it.SrcPath, it.ZipPath, err))
			continue
		}
		seen[it.ZipPath] = true
		fileHashes = append(fileHashes, FileHashEntry{Path: it.ZipPath, SHA256: sum, SizeBytes: size, Kind: it.Kind})
	}

	if prechecks == nil {
		prechecks = []model.PrecheckResult{}
	}
	manifest := Manifest{
		Schema:      ManifestSchemaV1,
		GeneratedAt: startedAt,
		Scan:        info,
		Dataset:     ds,
		Reports:     manifestReports,
		Prechecks:   prechecks,
		Warnings:    warnings,
		Note:        strings.TrimSpace(opts.Note),
	}
	manifest.App.Version = app.Version
	manifest.App.Commit = app.Commit
	manifest.App.BuildTime = app.BuildTime

	sort.Slice(fileHashes, func(i, j int) bool { return fileHashes[i].Path < fileHashes[j].Path })
	manifest.Files = fileHashes

	manifestRaw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestSum, manifestSize, err := writeZipFileFromBytes(zw, ManifestName, manifestRaw, modified)
	if err != nil {
		return nil, fmt.Errorf("write manifest to zip: %w", err)
	}
	fileHashes = append(fileHashes, FileHashEntry{Path: ManifestName, SHA256: manifestSum, SizeBytes: manifestSize, Kind: "manifest"})
	sort.Slice(fileHashes, func(i, j int) bool { return fileHashes[i].Path < fileHashes[j].Path })

	hashLines := []string{
		"# privacy-inspector scan bundle hash list",
		fmt.Sprintf("# scan_id=%s generated_at=%d", scanID, startedAt),
		"# format: <sha256><two spaces><path>",
	}
	for _, fh := range fileHashes {
		hashLines = append(hashLines, fmt.Sprintf("%s  %s", fh.SHA256, fh.Path))
	}
	hashLines = append(hashLines, "")
	if _, _, err := writeZipFileFromBytes(zw, HashListName, []byte(strings.Join(hashLines, "\n")), modified); err != nil {
		return nil, fmt.Errorf("write hashes.sha256 to zip: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close zip file: %w", err)
	}

	zipSum, _, err := hash.File(zipPath)
	if err != nil {
		return nil, fmt.Errorf("hash zip: %w", err)
	}
	e.log.Info().
		Str("scan_id", scanID).
		Str("zip", zipPath).
		Int("files", len(fileHashes)).
		Int("warnings", len(warnings)).
		Msg("scan bundle exported")

	return &ExportResult{
		ScanID:     scanID,
		ZipPath:    zipPath,
		ZipSHA256:  zipSum,
		FileCount:  len(fileHashes),
		Warnings:   warnings,
		StartedAt:  startedAt,
		FinishedAt: opts.Now().Unix(),
	}, nil
}

func writeZipFileFromDisk(zw *zip.Writer, srcPath, zipPath string) (sum string, size int64, err error) {
	fi, err := os.Stat(srcPath)
	if err != nil {
		return "", 0, err
	}
	if fi.IsDir() {
		return "", 0, fmt.Errorf("is a directory")
	}

	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return "", 0, err
	}
	hdr.Name = zipPath
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return "", 0, err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

func writeZipFileFromBytes(zw *zip.Writer, zipPath string, b []byte, modified time.Time) (sum string, size int64, err error) {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     zipPath,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return "", 0, err
	}
	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}
