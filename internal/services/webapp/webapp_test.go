package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-inspector/internal/adapters/store/sqlite"
	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/hash"
	"privacy-inspector/internal/services/scan"
)

type fixture struct {
	srv      *httptest.Server
	htmlPath string
}

func newFixture(t *testing.T, scanFn ScanFunc) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := sqlite.Open(ctx, filepath.Join(dir, "inspector.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := sqlite.NewStore(db)

	bundleID, err := store.SaveDatasetBundle(ctx, model.LoadSummary{
		Sources:  []model.SourceDigest{{Name: "dataset.csv", SHA256: "aa"}},
		Retained: 2,
	})
	require.NoError(t, err)

	htmlPath := filepath.Join(dir, "report_Google_Pixel_12345.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte("<html>ok</html>"), 0o644))
	sum, size, err := hash.File(htmlPath)
	require.NoError(t, err)

	report := model.ReportDocument{
		ScanInfo: model.ScanInfoDoc{ScanID: "scan_1"},
		Summary:  model.SummaryDoc{TotalApps: 2, RiskLevels: model.RiskLevelsDoc{High: 1, NotFound: 1}},
		Apps:     []model.AppDoc{{}, {}},
	}
	raw, err := json.Marshal(report)
	require.NoError(t, err)

	require.NoError(t, store.SaveScan(ctx, model.ScanRecord{
		Info: model.ScanInfo{
			ScanID: "scan_1", OS: "android", DeviceLabel: "Google_Pixel_12345", Source: "adb",
			Status: "partial", PrivacyMode: "off", TotalApps: 2, HighCount: 1, NotFoundCount: 1,
			DatasetBundleID: bundleID, ReportDir: dir, StartedAt: 100, FinishedAt: 110,
		},
		Apps: []model.ScanAppRow{
			{Ordinal: 0, PackageID: "com.example.app", Name: "Example App", RiskLevel: "HIGH", Score: 96,
				MatchStrategy: "exact", Frequency: 80, DataTypes: []string{"location"}},
			{Ordinal: 1, PackageID: "org.unknown", Name: "Unknown", RiskLevel: "NOT_FOUND", MatchStrategy: "none"},
		},
		Files:      []model.ReportFile{{Kind: "html", FilePath: htmlPath, SHA256: sum, SizeBytes: size, GeneratedAt: 110}},
		Prechecks:  []model.PrecheckResult{{CheckCode: "adb_available", Required: true, Status: model.PrecheckPassed}},
		Warnings:   []string{"package com.x: dumpsys failed"},
		ReportJSON: raw,
	}))

	s := NewServer(ctx, Options{ExportDir: filepath.Join(dir, "exports"), Scan: scanFn}, store, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, htmlPath: htmlPath}
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) post(t *testing.T, path, body string, out any) int {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndMeta(t *testing.T) {
	f := newFixture(t, nil)

	var health map[string]any
	assert.Equal(t, http.StatusOK, f.get(t, "/api/health", &health))
	assert.Equal(t, true, health["ok"])
	assert.Equal(t, "dev", health["version"])

	var meta struct {
		DB   map[string]string `json:"db"`
		Jobs map[string]bool   `json:"jobs"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/meta", &meta))
	assert.Equal(t, "1", meta.DB["schema_version"])
	assert.False(t, meta.Jobs["scan_enabled"])
}

func TestScanEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	var list struct {
		Scans []model.ScanInfo `json:"scans"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/scans?limit=10&offset=0", &list))
	require.Len(t, list.Scans, 1)
	assert.Equal(t, "scan_1", list.Scans[0].ScanID)

	assert.Equal(t, http.StatusOK, f.get(t, "/api/scans?offset=5", &list))
	assert.Empty(t, list.Scans)

	var detail scanDetail
	assert.Equal(t, http.StatusOK, f.get(t, "/api/scans/scan_1", &detail))
	require.NotNil(t, detail.Scan)
	assert.Equal(t, "partial", detail.Scan.Status)
	require.NotNil(t, detail.Dataset)
	assert.Equal(t, 2, detail.Dataset.Entries)
	assert.Len(t, detail.Prechecks, 1)
	assert.Equal(t, []string{"package com.x: dumpsys failed"}, detail.Warnings)
	assert.Len(t, detail.Files, 1)

	var apps struct {
		Apps []model.ScanAppRow `json:"apps"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/scans/scan_1/apps", &apps))
	assert.Len(t, apps.Apps, 2)
	assert.Equal(t, http.StatusOK, f.get(t, "/api/scans/scan_1/apps?level=high", &apps))
	require.Len(t, apps.Apps, 1)
	assert.Equal(t, "com.example.app", apps.Apps[0].PackageID)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/scans/scan_1/apps?level=severe", nil))

	var doc model.ReportDocument
	assert.Equal(t, http.StatusOK, f.get(t, "/api/scans/scan_1/report", &doc))
	assert.Equal(t, 1, doc.Summary.RiskLevels.High)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/scans/scan_404", &errBody))
	assert.Contains(t, errBody["error"], "scan_404")
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/nope", nil))
}

func TestScanFileDownload(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.srv.URL + "/api/scans/scan_1/files/html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `scan_1.html`)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/scans/scan_1/files/pdf", nil))

	require.NoError(t, os.WriteFile(f.htmlPath, []byte("<html>edited</html>"), 0o644))
	assert.Equal(t, http.StatusConflict, f.get(t, "/api/scans/scan_1/files/html", nil))

	require.NoError(t, os.Remove(f.htmlPath))
	assert.Equal(t, http.StatusGone, f.get(t, "/api/scans/scan_1/files/html", nil))
}

func TestScanExport(t *testing.T) {
	f := newFixture(t, nil)

	var res struct {
		ZipPath   string `json:"zip_path"`
		FileCount int    `json:"file_count"`
	}
	assert.Equal(t, http.StatusOK, f.post(t, "/api/scans/scan_1/export", "", &res))
	assert.FileExists(t, res.ZipPath)
	assert.Equal(t, 3, res.FileCount)

	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/scans/scan_1/export", "{", nil))
}

func TestScanJobs(t *testing.T) {
	fn := func(_ context.Context, req ScanRequest, progress func(done, total int)) (*scan.Result, error) {
		if req.InventoryPath == "broken.json" {
			return nil, errors.New("read inventory: boom")
		}
		progress(1, 2)
		progress(2, 2)
		return &scan.Result{
			Report:   &model.ScanReport{ScanID: "scan_job", Summary: model.RiskSummary{TotalApps: 2, High: 1, NotFound: 1}},
			Warnings: []string{},
		}, nil
	}
	f := newFixture(t, fn)

	var created scanJob
	assert.Equal(t, http.StatusAccepted, f.post(t, "/api/jobs/scan", `{"inventory_path":"inv.json","privacy_mode":"MASKED"}`, &created))
	assert.Equal(t, "running", created.Status)
	assert.Equal(t, "masked", string(created.Request.PrivacyMode))

	var job scanJob
	require.Eventually(t, func() bool {
		f.get(t, "/api/jobs/"+created.JobID, &job)
		return job.Status != "running"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "success", job.Status)
	assert.Equal(t, "scan_job", job.ScanID)
	assert.Equal(t, 2, job.Done)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 1, job.Summary.High)

	var failed scanJob
	assert.Equal(t, http.StatusAccepted, f.post(t, "/api/jobs/scan", `{"inventory_path":"broken.json"}`, &failed))
	require.Eventually(t, func() bool {
		f.get(t, "/api/jobs/"+failed.JobID, &job)
		return job.Status != "running"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "failed", job.Status)
	assert.Contains(t, job.Error, "boom")

	var list struct {
		Jobs []scanJob `json:"jobs"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/jobs", &list))
	assert.Len(t, list.Jobs, 2)

	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/jobs/scan", `{}`, nil))
	assert.Equal(t, http.StatusBadRequest, f.post(t, "/api/jobs/scan", `{"inventory_path":"x","privacy_mode":"loud"}`, nil))
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/jobs/job_missing", nil))
}

func TestScanJobsDisabled(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusNotImplemented, f.post(t, "/api/jobs/scan", `{"inventory_path":"inv.json"}`, nil))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, nil, nil)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
