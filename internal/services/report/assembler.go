// Package report 汇总每个应用的匹配、权限与风险，产出有序的扫描报告。
package report

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/id"
	"privacy-inspector/internal/platform/logger"
	"privacy-inspector/internal/services/risk"
)

// Matcher 把应用关联到数据集条目。
type Matcher interface {
	Match(app model.InstalledApp) model.MatchResult
}

// Categorizer 对应用权限归类。
type Categorizer interface {
	Categorize(app model.InstalledApp) model.CategorizedPermissions
}

// Options 控制汇总过程。
type Options struct {
	// Workers > 1 时并发评估，输出顺序仍与输入一致。
	Workers        int
	ScannerVersion string
	// Progress 每评估完一个应用调用一次，可为 nil。
	Progress func(done, total int)
	Now      func() time.Time
}

// Assembler 是报告汇总器。
type Assembler struct {
	matcher     Matcher
	categorizer Categorizer
	opts        Options
	log         *logger.Logger
}

// NewAssembler 创建汇总器；log 可以为 nil。
func NewAssembler(m Matcher, c Categorizer, opts Options, log *logger.Logger) *Assembler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{matcher: m, categorizer: c, opts: opts, log: log.OrNop().WithComponent("report")}
}

// Assemble 对全部应用做评估并汇总。单个应用失败只会让它变成 NOT_FOUND，不会中断整批。
func (a *Assembler) Assemble(device model.DeviceInfo, apps []model.InstalledApp, ds model.DatasetProvenance) *model.ScanReport {
	results := make([]model.AppResult, len(apps))

	var (
		mu   sync.Mutex
		done int
	)
	tick := func() {
		if a.opts.Progress == nil {
			return
		}
		mu.Lock()
		done++
		n := done
		a.opts.Progress(n, len(apps))
		mu.Unlock()
	}

	if a.opts.Workers > 1 && len(apps) > 1 {
		var g errgroup.Group
		g.SetLimit(a.opts.Workers)
		for i := range apps {
			g.Go(func() error {
				results[i] = a.assessOne(apps[i])
				tick()
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range apps {
			results[i] = a.assessOne(apps[i])
			tick()
		}
	}

	r := &model.ScanReport{
		ScanID:         id.New("scan"),
		GeneratedAt:    a.opts.Now().Unix(),
		ScannerVersion: a.opts.ScannerVersion,
		DeviceInfo:     device,
		Apps:           results,
		Dataset:        ds,
	}
	r.Summary, r.PermissionAggregate = Summarize(results)
	a.log.Info().
		Int("apps", r.Summary.TotalApps).
		Int("high", r.Summary.High).
		Int("medium", r.Summary.Medium).
		Int("low", r.Summary.Low).
		Int("not_found", r.Summary.NotFound).
		Msg("report assembled")
	return r
}

// assessOne 评估单个应用，panic 会被转成 NOT_FOUND 结果。
func (a *Assembler) assessOne(app model.InstalledApp) (res model.AppResult) {
	res.App = app
	defer func() {
		if rec := recover(); rec != nil {
			a.log.Error().Str("package_id", app.PackageID).Interface("panic", rec).Msg("assessment failed")
			res = failed(app, fmt.Errorf("%v", rec))
		}
	}()

	res.Match = a.matcher.Match(app)
	res.Permissions = a.categorizer.Categorize(app)
	res.Risk = risk.Assess(res.Match, res.Permissions)
	return res
}

func failed(app model.InstalledApp, err error) model.AppResult {
	nf := risk.NotFound()
	nf.Factors = append(nf.Factors, "assessment failed: "+err.Error())
	return model.AppResult{
		App:   app,
		Match: model.MatchResult{Strategy: model.MatchNone},
		Permissions: model.CategorizedPermissions{
			Categories:             map[string][]string{},
			Other:                  []string{},
			PrivacyCritical:        []string{},
			PrivacyCriticalGranted: []string{},
		},
		Risk: nf,
	}
}

// Summarize 统计等级分布与全设备权限聚合。
func Summarize(results []model.AppResult) (model.RiskSummary, model.PermissionAggregate) {
	var sum model.RiskSummary
	agg := model.PermissionAggregate{AppsPerCategory: map[string]int{}}
	for _, r := range results {
		sum.Add(r.Risk.Level)

		p := r.Permissions
		for cat, perms := range p.Categories {
			if len(perms) > 0 {
				agg.AppsPerCategory[cat]++
			}
		}
		if len(p.Other) > 0 {
			agg.AppsWithOther++
		}
		if len(p.PrivacyCritical) > 0 {
			agg.AppsWithPrivacyCritical++
		}
		if len(p.PrivacyCriticalGranted) > 0 {
			agg.AppsPrivacyCriticalGranted++
		}
		agg.TotalRequested += p.TotalRequested
		agg.TotalGranted += p.TotalGranted
		agg.TotalDenied += p.TotalDenied
	}
	return sum, agg
}
