// Package scan 串起一次完整扫描：加载规则与数据集、采集设备、评估、渲染报告并落库。
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"privacy-inspector/internal/adapters/dataset"
	"privacy-inspector/internal/adapters/mobile"
	"privacy-inspector/internal/adapters/rules"
	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/logger"
	"privacy-inspector/internal/services/matcher"
	"privacy-inspector/internal/services/permissions"
	"privacy-inspector/internal/services/privacy"
	"privacy-inspector/internal/services/render"
	"privacy-inspector/internal/services/report"
)

// ErrNoDatasetSources 表示没有配置任何数据集文件。
var ErrNoDatasetSources = errors.New("scan: no dataset sources configured")

// Store 是扫描结果的持久化接口，由 sqlite.Store 实现。
type Store interface {
	SaveDatasetBundle(ctx context.Context, summary model.LoadSummary) (string, error)
	SaveScan(ctx context.Context, rec model.ScanRecord) error
}

// Options 定义一次扫描的输入参数。
type Options struct {
	DatasetSources []model.DatasetSource
	// PermissionTable 为空时使用内置权限分类表。
	PermissionTable string
	Matcher         matcher.Options
	Workers         int
	PrivacyMode     privacy.Mode
	ReportsDir      string
	Formats         []render.Format
	ScannerVersion  string
	// Progress 每评估完一个应用调用一次，可为 nil。
	Progress func(done, total int)
	Now      func() time.Time
}

// Result 是一次扫描的输出。
type Result struct {
	Report          *model.ScanReport      `json:"-"`
	Document        model.ReportDocument   `json:"-"`
	Render          *render.Result         `json:"render"`
	Dataset         *model.LoadSummary     `json:"dataset"`
	DatasetBundleID string                 `json:"dataset_bundle_id,omitempty"`
	Prechecks       []model.PrecheckResult `json:"prechecks"`
	Warnings        []string               `json:"warnings"`
	Source          string                 `json:"source"`
	StartedAt       int64                  `json:"started_at"`
	FinishedAt      int64                  `json:"finished_at"`
}

// Service 执行扫描；store 为 nil 时不落库。
type Service struct {
	opts  Options
	store Store
	log   *logger.Logger
}

// NewService 创建扫描服务。
func NewService(opts Options, store Store, log *logger.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PrivacyMode == "" {
		opts.PrivacyMode = privacy.ModeOff
	}
	if opts.Matcher.FuzzyThreshold <= 0 {
		opts.Matcher.FuzzyThreshold = matcher.DefaultFuzzyThreshold
	}
	return &Service{opts: opts, store: store, log: log.OrNop().WithComponent("scan")}
}

// PermissionTable 按配置加载权限分类表。
func PermissionTable(ctx context.Context, path string) (*permissions.Table, error) {
	if path == "" {
		return permissions.Default(), nil
	}
	loaded, err := rules.NewLoader(path).Load(ctx)
	if err != nil {
		return nil, err
	}
	return permissions.NewTable(loaded.Permissions)
}

// Run 执行一次扫描。采集失败或数据集为空时返回错误；单个应用的问题只进入告警。
func (s *Service) Run(ctx context.Context, collector mobile.Collector) (*Result, error) {
	started := s.opts.Now()
	res := &Result{StartedAt: started.Unix(), Warnings: []string{}}

	table, err := PermissionTable(ctx, s.opts.PermissionTable)
	if err != nil {
		return nil, fmt.Errorf("load permission table: %w", err)
	}

	if len(s.opts.DatasetSources) == 0 {
		return nil, ErrNoDatasetSources
	}
	ix, summary, err := dataset.NewLoader(s.log).Load(ctx, s.opts.DatasetSources)
	if err != nil {
		return nil, err
	}
	res.Dataset = summary
	if summary.Skipped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("dataset: %d malformed rows skipped", summary.Skipped))
	}

	col, err := collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect device: %w", err)
	}
	res.Source = col.Source
	res.Prechecks = append([]model.PrecheckResult{}, col.Prechecks...)
	res.Warnings = append(res.Warnings, col.Warnings...)
	s.log.Info().
		Str("source", col.Source).
		Int("apps", len(col.Apps)).
		Int("dataset_entries", ix.Len()).
		Msg("device collected")

	asm := report.NewAssembler(matcher.New(ix, s.opts.Matcher), table, report.Options{
		Workers:        s.opts.Workers,
		ScannerVersion: s.opts.ScannerVersion,
		Progress:       s.opts.Progress,
		Now:            s.opts.Now,
	}, s.log)
	r := asm.Assemble(col.DeviceInfo, col.Apps, model.DatasetProvenance{
		Sources:  summary.Sources,
		Entries:  summary.Retained,
		Skipped:  summary.Skipped,
		Replaced: summary.Replaced,
	})
	res.Report = r
	res.Document = report.BuildDocument(r, s.opts.PrivacyMode)
	log := s.log.WithScan(r.ScanID)

	rendered, err := render.NewWriter(render.Options{
		ReportsDir: s.opts.ReportsDir,
		Formats:    s.opts.Formats,
		Mode:       s.opts.PrivacyMode,
		Now:        s.opts.Now,
	}, s.log).Write(ctx, r)
	if err != nil {
		return nil, err
	}
	res.Render = rendered
	res.Warnings = append(res.Warnings, rendered.Warnings...)
	res.FinishedAt = s.opts.Now().Unix()

	if s.store != nil {
		if err := s.persist(ctx, res, *summary); err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("total", r.Summary.TotalApps).
		Int("high", r.Summary.High).
		Int("medium", r.Summary.Medium).
		Int("low", r.Summary.Low).
		Int("not_found", r.Summary.NotFound).
		Int("warnings", len(res.Warnings)).
		Msg("scan finished")
	return res, nil
}

func (s *Service) persist(ctx context.Context, res *Result, summary model.LoadSummary) error {
	bundleID, err := s.store.SaveDatasetBundle(ctx, summary)
	if err != nil {
		return fmt.Errorf("save dataset bundle: %w", err)
	}
	res.DatasetBundleID = bundleID

	r := res.Report
	raw, err := report.ToJSON(r, s.opts.PrivacyMode)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	status := "success"
	if len(res.Warnings) > 0 {
		status = "partial"
	}
	rec := model.ScanRecord{
		Info: model.ScanInfo{
			ScanID:          r.ScanID,
			OS:              string(r.DeviceInfo.OS),
			DeviceLabel:     render.DeviceName(r.DeviceInfo, s.opts.PrivacyMode),
			Source:          res.Source,
			Status:          status,
			PrivacyMode:     string(s.opts.PrivacyMode),
			TotalApps:       r.Summary.TotalApps,
			HighCount:       r.Summary.High,
			MediumCount:     r.Summary.Medium,
			LowCount:        r.Summary.Low,
			NotFoundCount:   r.Summary.NotFound,
			DatasetBundleID: bundleID,
			ReportDir:       res.Render.Dir,
			StartedAt:       res.StartedAt,
			FinishedAt:      res.FinishedAt,
		},
		Apps:       AppRows(r),
		Files:      res.Render.Files,
		Prechecks:  res.Prechecks,
		Warnings:   res.Warnings,
		ReportJSON: raw,
	}
	if err := s.store.SaveScan(ctx, rec); err != nil {
		return fmt.Errorf("save scan: %w", err)
	}
	return nil
}

// AppRows 把报告中的应用结果展开为 scan_apps 行，顺序与报告一致。
func AppRows(r *model.ScanReport) []model.ScanAppRow {
	out := make([]model.ScanAppRow, 0, len(r.Apps))
	for i, a := range r.Apps {
		row := model.ScanAppRow{
			ScanID:          r.ScanID,
			Ordinal:         i,
			PackageID:       a.App.PackageID,
			Name:            a.App.Name(),
			RiskLevel:       string(a.Risk.Level),
			Score:           a.Risk.Score,
			MatchStrategy:   string(a.Match.Strategy),
			MatchedOn:       a.Match.MatchedOn,
			DataTypes:       []string{},
			GrantedCritical: model.Dedupe(a.Permissions.PrivacyCriticalGranted),
		}
		if row.MatchStrategy == "" {
			row.MatchStrategy = string(model.MatchNone)
		}
		if a.Match.Found() {
			row.Frequency = a.Match.Entry.Frequency
			row.DataTypes = append(row.DataTypes, a.Match.Entry.DataTypes...)
		}
		out = append(out, row)
	}
	return out
}
