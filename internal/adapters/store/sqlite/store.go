package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/hash"
)

// Store 封装与 SQLite 的读写逻辑。
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetSchemaMetaValue 查询 schema_meta 表指定 key 的 value，不存在时返回空串。
func (s *Store) GetSchemaMetaValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM schema_meta
		WHERE key = ?
		LIMIT 1
	`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query schema_meta %s: %w", key, err)
	}
	return v, nil
}

// DatasetBundleID 由各源文件的 sha256 派生 bundle ID 与组合指纹。
func DatasetBundleID(sources []model.SourceDigest) (bundleID, sum string) {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		parts = append(parts, src.SHA256)
	}
	sum = hash.Bytes([]byte(strings.Join(parts, "\n")))
	return "ds_" + sum[:16], sum
}

// SaveDatasetBundle 登记一次数据集加载；同一组文件重复登记只刷新 loaded_at。
func (s *Store) SaveDatasetBundle(ctx context.Context, summary model.LoadSummary) (string, error) {
	bundleID, sum := DatasetBundleID(summary.Sources)
	sources := summary.Sources
	if sources == nil {
		sources = []model.SourceDigest{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return "", fmt.Errorf("marshal dataset sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dataset_bundles(
			bundle_id, sha256, sources_json, entry_count, rows_read, skipped_count, replaced_count, loaded_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bundle_id) DO UPDATE SET
			loaded_at=excluded.loaded_at
	`, bundleID, sum, string(sourcesJSON), summary.Retained, summary.RowsRead, summary.Skipped, summary.Replaced, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("upsert dataset bundle: %w", err)
	}
	return bundleID, nil
}

// GetDatasetBundle 按 ID 查询数据集登记，不存在时返回 nil, nil。
func (s *Store) GetDatasetBundle(ctx context.Context, bundleID string) (*model.DatasetBundle, error) {
	var (
		out         model.DatasetBundle
		sourcesJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT bundle_id, sha256, sources_json, entry_count, rows_read, skipped_count, replaced_count, loaded_at
		FROM dataset_bundles
		WHERE bundle_id = ?
	`, bundleID).Scan(
		&out.BundleID,
		&out.SHA256,
		&sourcesJSON,
		&out.Entries,
		&out.RowsRead,
		&out.Skipped,
		&out.Replaced,
		&out.LoadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query dataset bundle: %w", err)
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &out.Sources); err != nil {
		return nil, fmt.Errorf("decode dataset sources: %w", err)
	}
	return &out, nil
}

// SaveScan 在一个事务里写入扫描摘要、逐应用结果、报告文件索引。
func (s *Store) SaveScan(ctx context.Context, rec model.ScanRecord) (err error) {
	info := rec.Info
	if strings.TrimSpace(info.ScanID) == "" {
		return fmt.Errorf("save scan: empty scan id")
	}

	prechecks := rec.Prechecks
	if prechecks == nil {
		prechecks = []model.PrecheckResult{}
	}
	prechecksJSON, err := json.Marshal(prechecks)
	if err != nil {
		return fmt.Errorf("marshal prechecks: %w", err)
	}
	warnings := rec.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	reportJSON := rec.ReportJSON
	if len(reportJSON) == 0 {
		reportJSON = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save scan: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scans(
			scan_id, os, device_label, source, status, privacy_mode,
			total_apps, high_count, medium_count, low_count, not_found_count,
			dataset_bundle_id, report_dir, report_json, prechecks_json, warnings_json,
			started_at, finished_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		info.ScanID,
		info.OS,
		info.DeviceLabel,
		info.Source,
		info.Status,
		info.PrivacyMode,
		info.TotalApps,
		info.HighCount,
		info.MediumCount,
		info.LowCount,
		info.NotFoundCount,
		nullIfEmpty(info.DatasetBundleID),
		nullIfEmpty(info.ReportDir),
		string(reportJSON),
		string(prechecksJSON),
		string(warningsJSON),
		info.StartedAt,
		info.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan %s: %w", info.ScanID, err)
	}

	appStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scan_apps(
			scan_id, ordinal, package_id, name, risk_level, score,
			match_strategy, matched_on, frequency, data_types_json, critical_granted_json
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert scan apps: %w", err)
	}
	defer appStmt.Close()

	for _, a := range rec.Apps {
		var types, critical []byte
		if types, err = json.Marshal(nonNil(a.DataTypes)); err != nil {
			return fmt.Errorf("marshal data types: %w", err)
		}
		if critical, err = json.Marshal(nonNil(a.GrantedCritical)); err != nil {
			return fmt.Errorf("marshal critical permissions: %w", err)
		}
		_, err = appStmt.ExecContext(ctx,
			info.ScanID,
			a.Ordinal,
			a.PackageID,
			a.Name,
			a.RiskLevel,
			a.Score,
			a.MatchStrategy,
			nullIfEmpty(a.MatchedOn),
			a.Frequency,
			string(types),
			string(critical),
		)
		if err != nil {
			return fmt.Errorf("insert scan app %s: %w", a.PackageID, err)
		}
	}

	for _, f := range rec.Files {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO report_files(scan_id, kind, file_path, sha256, size_bytes, generated_at)
			VALUES(?, ?, ?, ?, ?, ?)
		`, info.ScanID, f.Kind, f.FilePath, f.SHA256, f.SizeBytes, f.GeneratedAt)
		if err != nil {
			return fmt.Errorf("insert report file %s: %w", f.Kind, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save scan: %w", err)
	}
	return nil
}

const scanInfoColumns = `
	scan_id, os, device_label, source, status, privacy_mode,
	total_apps, high_count, medium_count, low_count, not_found_count,
	COALESCE(dataset_bundle_id, ''), COALESCE(report_dir, ''), started_at, finished_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(row rowScanner) (model.ScanInfo, error) {
	var out model.ScanInfo
	err := row.Scan(
		&out.ScanID,
		&out.OS,
		&out.DeviceLabel,
		&out.Source,
		&out.Status,
		&out.PrivacyMode,
		&out.TotalApps,
		&out.HighCount,
		&out.MediumCount,
		&out.LowCount,
		&out.NotFoundCount,
		&out.DatasetBundleID,
		&out.ReportDir,
		&out.StartedAt,
		&out.FinishedAt,
	)
	return out, err
}

// ListScans 按开始时间倒序返回扫描列表。limit<=0 时默认 50。
func (s *Store) ListScans(ctx context.Context, limit, offset int) ([]model.ScanInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scanInfoColumns+`
		FROM scans
		ORDER BY started_at DESC, scan_id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	out := []model.ScanInfo{}
	for rows.Next() {
		item, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan info: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

// GetScan 按 ID 查询扫描摘要，不存在时返回 nil, nil。
func (s *Store) GetScan(ctx context.Context, scanID string) (*model.ScanInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+scanInfoColumns+`
		FROM scans
		WHERE scan_id = ?
	`, scanID)
	out, err := scanInfo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query scan: %w", err)
	}
	return &out, nil
}

// GetScanReportJSON 返回扫描落库时的报告 JSON 原文，不存在时返回 nil, nil。
func (s *Store) GetScanReportJSON(ctx context.Context, scanID string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM scans WHERE scan_id = ?`, scanID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query scan report json: %w", err)
	}
	return []byte(raw), nil
}

// GetScanNotes 返回扫描的前置检查与告警。
func (s *Store) GetScanNotes(ctx context.Context, scanID string) ([]model.PrecheckResult, []string, error) {
	var prechecksJSON, warningsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT prechecks_json, warnings_json FROM scans WHERE scan_id = ?
	`, scanID).Scan(&prechecksJSON, &warningsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("query scan notes: %w", err)
	}
	prechecks := []model.PrecheckResult{}
	if err := json.Unmarshal([]byte(prechecksJSON), &prechecks); err != nil {
		return nil, nil, fmt.Errorf("decode prechecks: %w", err)
	}
	warnings := []string{}
	if err := json.Unmarshal([]byte(warningsJSON), &warnings); err != nil {
		return nil, nil, fmt.Errorf("decode warnings: %w", err)
	}
	return prechecks, warnings, nil
}

// ListScanApps 返回扫描内的应用结果，按采集顺序排列；level 为空时返回全部等级。
func (s *Store) ListScanApps(ctx context.Context, scanID, level string) ([]model.ScanAppRow, error) {
	query := `
		SELECT scan_id, ordinal, package_id, name, risk_level, score, match_strategy,
			COALESCE(matched_on, ''), frequency, data_types_json, critical_granted_json
		FROM scan_apps
		WHERE scan_id = ?`
	args := []any{scanID}
	if level = strings.ToUpper(strings.TrimSpace(level)); level != "" {
		query += ` AND risk_level = ?`
		args = append(args, level)
	}
	query += ` ORDER BY ordinal`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scan apps: %w", err)
	}
	defer rows.Close()

	out := []model.ScanAppRow{}
	for rows.Next() {
		var (
			item                  model.ScanAppRow
			typesRaw, criticalRaw string
		)
		if err := rows.Scan(
			&item.ScanID,
			&item.Ordinal,
			&item.PackageID,
			&item.Name,
			&item.RiskLevel,
			&item.Score,
			&item.MatchStrategy,
			&item.MatchedOn,
			&item.Frequency,
			&typesRaw,
			&criticalRaw,
		); err != nil {
			return nil, fmt.Errorf("scan scan app: %w", err)
		}
		if err := json.Unmarshal([]byte(typesRaw), &item.DataTypes); err != nil {
			return nil, fmt.Errorf("decode data types: %w", err)
		}
		if err := json.Unmarshal([]byte(criticalRaw), &item.GrantedCritical); err != nil {
			return nil, fmt.Errorf("decode critical permissions: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan apps: %w", err)
	}
	return out, nil
}

// ListReportFiles 返回扫描生成的报告文件索引。
func (s *Store) ListReportFiles(ctx context.Context, scanID string) ([]model.ReportFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scan_id, kind, file_path, sha256, size_bytes, generated_at
		FROM report_files
		WHERE scan_id = ?
		ORDER BY kind
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("query report files: %w", err)
	}
	defer rows.Close()

	out := []model.ReportFile{}
	for rows.Next() {
		var item model.ReportFile
		if err := rows.Scan(
			&item.ScanID,
			&item.Kind,
			&item.FilePath,
			&item.SHA256,
			&item.SizeBytes,
			&item.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("scan report file: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report files: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// 空字符串按 NULL 写入，避免无意义空值污染查询条件。
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
