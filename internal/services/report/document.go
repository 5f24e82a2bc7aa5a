package report

import (
	"encoding/json"
	"fmt"
	"time"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/services/privacy"
)

// BuildDocument 把扫描结果转换成对外 JSON 文档结构。masked 模式只影响文档，不改 r。
func BuildDocument(r *model.ScanReport, mode privacy.Mode) model.ReportDocument {
	device := r.DeviceInfo
	sources := append([]model.SourceDigest(nil), r.Dataset.Sources...)
	if mode == privacy.ModeMasked {
		device = privacy.MaskDeviceInfo(device)
		for i := range sources {
			sources[i].Path = privacy.MaskSnapshotPath(sources[i].Path)
		}
	}
	if mode == "" {
		mode = privacy.ModeOff
	}
	if sources == nil {
		sources = []model.SourceDigest{}
	}
	if device.Identifiers.IPAddresses == nil {
		device.Identifiers.IPAddresses = []string{}
	}

	doc := model.ReportDocument{
		ScanInfo: model.ScanInfoDoc{
			ScanID:         r.ScanID,
			GeneratedAt:    time.Unix(r.GeneratedAt, 0).UTC().Format(time.RFC3339),
			ScannerVersion: r.ScannerVersion,
			PrivacyMode:    string(mode),
			DatasetSources: sources,
		},
		DeviceInfo: device,
		Summary: model.SummaryDoc{
			TotalApps: r.Summary.TotalApps,
			RiskLevels: model.RiskLevelsDoc{
				High:     r.Summary.High,
				Medium:   r.Summary.Medium,
				Low:      r.Summary.Low,
				NotFound: r.Summary.NotFound,
			},
			PermissionsSummary: r.PermissionAggregate,
		},
		Apps: make([]model.AppDoc, 0, len(r.Apps)),
	}
	for _, a := range r.Apps {
		doc.Apps = append(doc.Apps, appDoc(a))
	}
	return doc
}

func appDoc(a model.AppResult) model.AppDoc {
	p := a.Permissions
	categories := p.Categories
	if categories == nil {
		categories = map[string][]string{}
	}
	d := model.AppDoc{
		AppInfo: model.AppInfoDoc{
			Name:             a.App.Name(),
			PackageID:        a.App.PackageID,
			InstallSource:    a.App.InstallSource,
			FirstInstallTime: a.App.FirstInstallTime,
			LastUpdateTime:   a.App.LastUpdateTime,
		},
		RiskAssessment: a.Risk,
		Permissions: model.PermissionsDoc{
			Categorized: model.CategorizedDoc{
				Categories:      categories,
				PrivacyCritical: nonNil(p.PrivacyCritical),
				Other:           nonNil(p.Other),
			},
			Summary: model.PermissionCountsDoc{
				TotalRequested:         p.TotalRequested,
				TotalGranted:           p.TotalGranted,
				TotalDenied:            p.TotalDenied,
				PrivacyCriticalGranted: len(p.PrivacyCriticalGranted),
			},
			Details: model.PermissionDetailsDoc{
				Requested: model.DedupeExact(a.App.PermissionsRequested),
				Granted:   model.DedupeExact(a.App.PermissionsGranted),
				Denied:    model.DedupeExact(a.App.PermissionsDenied),
			},
		},
		DataCollection: model.DataCollectionDoc{
			Frequency:      0,
			Types:          []string{},
			KnownBehaviors: []string{},
			MatchStrategy:  a.Match.Strategy,
		},
	}
	if d.DataCollection.MatchStrategy == "" {
		d.DataCollection.MatchStrategy = model.MatchNone
	}
	if a.Match.Found() {
		e := a.Match.Entry
		d.DataCollection.Frequency = e.Frequency
		d.DataCollection.Types = nonNil(e.DataTypes)
		d.DataCollection.KnownBehaviors = KnownBehaviors(e)
		d.DataCollection.MatchedOn = a.Match.MatchedOn
		d.DataCollection.DatasetSource = fmt.Sprintf("%s:%d", e.SourceName, e.Row)
	}
	return d
}

// KnownBehaviors 返回条目自带的行为描述，并按频次和数据类型补充说明。
func KnownBehaviors(e *model.DatasetEntry) []string {
	out := append([]string{}, e.KnownBehaviors...)
	if e.Frequency > 0 {
		out = append(out, fmt.Sprintf("Collects data approximately %d times per day", e.Frequency))
	}
	for _, t := range e.DataTypes {
		out = append(out, fmt.Sprintf("Known to collect %s data", t))
	}
	return model.Dedupe(out)
}

// ToJSON 输出带缩进的报告 JSON。
func ToJSON(r *model.ScanReport, mode privacy.Mode) ([]byte, error) {
	return json.MarshalIndent(BuildDocument(r, mode), "", "  ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
