package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"

	"privacy-inspector/internal/domain/model"
)

type htmlGroup struct {
	Title string
	Class string
	Apps  []model.AppDoc
}

type htmlView struct {
	Doc    model.ReportDocument
	Groups []htmlGroup
}

var htmlFuncs = template.FuncMap{
	"deref": func(p *string, def string) string { return model.Deref(p, def) },
	"join": func(items []string) string {
		if len(items) == 0 {
			return "None"
		}
		return strings.Join(items, ", ")
	},
}

var reportTmpl = template.Must(template.New("report").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Privacy Inspector Report</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; }
h1, h2 { color: #333; }
.section { margin: 20px 0; padding: 20px; border: 1px solid #ddd; border-radius: 5px; }
.risk-high { color: #d32f2f; }
.risk-medium { color: #f57c00; }
.risk-low { color: #388e3c; }
.risk-not-found { color: #757575; }
.identifier { margin: 10px 0; }
.app-item { padding: 10px; border-bottom: 1px solid #eee; }
.factors { color: #555; font-size: 0.9em; }
</style>
</head>
<body>
<h1>Privacy Inspector Report</h1>
<p>Scan ID: {{.Doc.ScanInfo.ScanID}}<br>Generated at: {{.Doc.ScanInfo.GeneratedAt}}<br>Scanner version: {{.Doc.ScanInfo.ScannerVersion}}<br>Privacy mode: {{.Doc.ScanInfo.PrivacyMode}}</p>

<div class="section">
<h2>Device Information</h2>
{{with .Doc.DeviceInfo}}
<p>OS: {{.OS}}</p>
<p>Manufacturer: {{deref .Manufacturer "Unknown"}}</p>
<p>Model: {{deref .Model "Unknown"}}</p>
<p>Brand: {{deref .Brand "Unknown"}}</p>
<p>Android Version: {{deref .AndroidVersion "Unknown"}}</p>
<p>Security Patch: {{deref .SecurityPatch "Unknown"}}</p>
<h3>Device Identifiers</h3>
<div class="identifier"><strong>Android ID:</strong> {{deref .Identifiers.AndroidID "Not available"}}<br><small>Resets on factory reset</small></div>
<div class="identifier"><strong>Serial:</strong> {{deref .Identifiers.Serial "Not available"}}</div>
<div class="identifier"><strong>Bluetooth MAC:</strong> {{deref .Identifiers.MACBluetooth "Not available"}}</div>
<div class="identifier"><strong>IP Addresses:</strong> {{if .Identifiers.IPAddresses}}{{join .Identifiers.IPAddresses}}{{else}}Not available{{end}}</div>
{{end}}
</div>

<div class="section">
<h2>Scan Summary</h2>
{{with .Doc.Summary}}
<p>Total Apps Scanned: {{.TotalApps}}</p>
<p class="risk-high">High Risk Apps: {{.RiskLevels.High}}</p>
<p class="risk-medium">Medium Risk Apps: {{.RiskLevels.Medium}}</p>
<p class="risk-low">Low Risk Apps: {{.RiskLevels.Low}}</p>
<p class="risk-not-found">Not Found in Dataset: {{.RiskLevels.NotFound}}</p>
<p>Apps granted privacy-critical permissions: {{.PermissionsSummary.AppsPrivacyCriticalGranted}}</p>
{{end}}
</div>

{{range .Groups}}
<div class="section">
<h2 class="{{.Class}}">{{.Title}}</h2>
{{if .Apps}}{{range .Apps}}
<div class="app-item">
<strong>{{.AppInfo.Name}}</strong> ({{.AppInfo.PackageID}})
<br>Risk Score: {{printf "%.1f" .RiskAssessment.Score}}
<br>Collection Frequency: {{.DataCollection.Frequency}}
<br>Data Types: {{join .DataCollection.Types}}
<br>Privacy-Critical Permissions: {{join .Permissions.Categorized.PrivacyCritical}}
<br>Install Source: {{deref .AppInfo.InstallSource "Unknown"}}
<br>First Install: {{deref .AppInfo.FirstInstallTime "Unknown"}}
<br>Last Update: {{deref .AppInfo.LastUpdateTime "Unknown"}}
<br>Match: {{.DataCollection.MatchStrategy}}{{if .DataCollection.MatchedOn}} ({{.DataCollection.MatchedOn}}){{end}}
{{if .RiskAssessment.Factors}}<ul class="factors">{{range .RiskAssessment.Factors}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>
{{end}}{{else}}
<p>No apps found in this category</p>
{{end}}
</div>
{{end}}
</body>
</html>
`))

func groupTitle(level model.RiskLevel) (string, string) {
	switch level {
	case model.RiskHigh:
		return "High Risk Apps", "risk-high"
	case model.RiskMedium:
		return "Medium Risk Apps", "risk-medium"
	case model.RiskLow:
		return "Low Risk Apps", "risk-low"
	default:
		return "Apps Not Found in Dataset", "risk-not-found"
	}
}

// RenderHTML 把报告文档渲染为单页 HTML，应用按风险等级分组、组内保持扫描顺序。
func RenderHTML(doc model.ReportDocument) ([]byte, error) {
	view := htmlView{Doc: doc}
	for _, level := range model.RiskLevels {
		title, class := groupTitle(level)
		g := htmlGroup{Title: title, Class: class}
		for _, a := range doc.Apps {
			if a.RiskAssessment.Level == level {
				g.Apps = append(g.Apps, a)
			}
		}
		view.Groups = append(view.Groups, g)
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute html template: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHTML(path string, doc model.ReportDocument) error {
	raw, err := RenderHTML(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
