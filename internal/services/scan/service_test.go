package scan

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-inspector/internal/adapters/dataset"
	"privacy-inspector/internal/adapters/mobile"
	sqliteadapter "privacy-inspector/internal/adapters/store/sqlite"
	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/services/matcher"
	"privacy-inspector/internal/services/privacy"
	"privacy-inspector/internal/services/render"
)

const leakCSV = "app_name,frequency,data_types\n" +
	"Example App,80,\"location, contacts\"\n" +
	"Quiet Tool,10,\n" +
	"Broken Row,abc,\n"

type fixture struct {
	dir       string
	csvPath   string
	inventory string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "leak.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(leakCSV), 0o644))

	inv := filepath.Join(dir, "inventory.json")
	require.NoError(t, mobile.WriteInventory(inv, &mobile.Collection{
		DeviceInfo: model.DeviceInfo{
			OS:           model.OSAndroid,
			Manufacturer: model.Optional("Google"),
			Model:        model.Optional("Pixel"),
			Identifiers:  model.DeviceIdentifiers{AndroidID: model.Optional("abcdef0123456789")},
		},
		Apps: []model.InstalledApp{
			{
				PackageID:            "com.example.app",
				DisplayName:          model.Optional("Example App"),
				PermissionsRequested: []string{"android.permission.ACCESS_FINE_LOCATION"},
				PermissionsGranted:   []string{"android.permission.ACCESS_FINE_LOCATION"},
			},
			{PackageID: "com.quiet", DisplayName: model.Optional("Quiet Tool")},
			{PackageID: "org.nobody", DisplayName: model.Optional("Nobody Knows")},
		},
		Source:      "adb",
		CollectedAt: 1700000000,
	}))
	return fixture{dir: dir, csvPath: csvPath, inventory: inv}
}

func (f fixture) options() Options {
	return Options{
		DatasetSources: dataset.Sources([]string{f.csvPath}, nil),
		Matcher:        matcher.DefaultOptions(),
		Workers:        4,
		ReportsDir:     filepath.Join(f.dir, "reports"),
		Formats:        []render.Format{render.FormatJSON, render.FormatHTML},
		ScannerVersion: "test",
		Now:            func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) },
	}
}

func TestRunFromInventoryPersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	db, err := sqliteadapter.Open(ctx, filepath.Join(f.dir, "inspector.db"))
	require.NoError(t, err)
	defer db.Close()
	store := sqliteadapter.NewStore(db)

	var progressCalls int
	opts := f.options()
	opts.Workers = 1
	opts.Progress = func(done, total int) { progressCalls++ }

	res, err := NewService(opts, store, nil).Run(ctx, mobile.InventoryCollector{Path: f.inventory})
	require.NoError(t, err)

	r := res.Report
	require.Len(t, r.Apps, 3)
	assert.Equal(t, model.RiskHigh, r.Apps[0].Risk.Level)
	assert.Equal(t, 96.0, r.Apps[0].Risk.Score)
	assert.Equal(t, model.RiskLow, r.Apps[1].Risk.Level)
	assert.Equal(t, model.RiskNotFound, r.Apps[2].Risk.Level)
	assert.Equal(t, 3, progressCalls)
	assert.Equal(t, 1, res.Dataset.Skipped)
	assert.Contains(t, res.Warnings, "dataset: 1 malformed rows skipped")
	require.Len(t, res.Render.Files, 2)
	assert.Equal(t, filepath.Join(f.dir, "reports", "2024-05-01_Google_Pixel_56789"), res.Render.Dir)

	info, err := store.GetScan(ctx, r.ScanID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "partial", info.Status)
	assert.Equal(t, "adb", info.Source)
	assert.Equal(t, 1, info.HighCount)
	assert.Equal(t, 1, info.LowCount)
	assert.Equal(t, 1, info.NotFoundCount)
	assert.Equal(t, res.DatasetBundleID, info.DatasetBundleID)

	apps, err := store.ListScanApps(ctx, r.ScanID, "HIGH")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "com.example.app", apps[0].PackageID)
	assert.Equal(t, []string{"android.permission.ACCESS_FINE_LOCATION"}, apps[0].GrantedCritical)

	raw, err := store.GetScanReportJSON(ctx, r.ScanID)
	require.NoError(t, err)
	var doc model.ReportDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, r.ScanID, doc.ScanInfo.ScanID)
	assert.Equal(t, 3, doc.Summary.TotalApps)

	prechecks, _, err := store.GetScanNotes(ctx, r.ScanID)
	require.NoError(t, err)
	require.NotEmpty(t, prechecks)
	assert.Equal(t, model.PrecheckSkipped, prechecks[len(prechecks)-1].Status)

	files, err := store.ListReportFiles(ctx, r.ScanID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestRunMaskedWithoutStore(t *testing.T) {
	f := newFixture(t)
	opts := f.options()
	opts.PrivacyMode = privacy.ModeMasked

	res, err := NewService(opts, nil, nil).Run(context.Background(), mobile.InventoryCollector{Path: f.inventory})
	require.NoError(t, err)
	assert.Empty(t, res.DatasetBundleID)
	assert.Equal(t, "masked", res.Document.ScanInfo.PrivacyMode)
	assert.NotEqual(t, "abcdef0123456789", *res.Document.DeviceInfo.Identifiers.AndroidID)
	assert.Equal(t, "abcdef0123456789", *res.Report.DeviceInfo.Identifiers.AndroidID)
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("no dataset", func(t *testing.T) {
		opts := f.options()
		opts.DatasetSources = nil
		_, err := NewService(opts, nil, nil).Run(ctx, mobile.InventoryCollector{Path: f.inventory})
		assert.ErrorIs(t, err, ErrNoDatasetSources)
	})

	t.Run("empty dataset", func(t *testing.T) {
		empty := filepath.Join(f.dir, "empty.csv")
		require.NoError(t, os.WriteFile(empty, []byte("app_name,frequency\n"), 0o644))
		opts := f.options()
		opts.DatasetSources = dataset.Sources([]string{empty}, nil)
		_, err := NewService(opts, nil, nil).Run(ctx, mobile.InventoryCollector{Path: f.inventory})
		assert.ErrorIs(t, err, dataset.ErrEmptyDataset)
	})

	t.Run("collector failure", func(t *testing.T) {
		_, err := NewService(f.options(), nil, nil).Run(ctx, failingCollector{})
		assert.ErrorIs(t, err, mobile.ErrNoDevice)
	})

	t.Run("bad permission table", func(t *testing.T) {
		opts := f.options()
		opts.PermissionTable = filepath.Join(f.dir, "missing.yaml")
		_, err := NewService(opts, nil, nil).Run(ctx, mobile.InventoryCollector{Path: f.inventory})
		assert.Error(t, err)
	})
}

type failingCollector struct{}

func (failingCollector) Collect(context.Context) (*mobile.Collection, error) {
	return nil, mobile.ErrNoDevice
}

func TestAppRows(t *testing.T) {
	entry := &model.DatasetEntry{Frequency: 30, DataTypes: []string{"ads"}}
	r := &model.ScanReport{
		ScanID: "scan_x",
		Apps: []model.AppResult{
			{App: model.InstalledApp{PackageID: "a"}, Match: model.MatchResult{Entry: entry, Strategy: model.MatchExact, MatchedOn: "a"},
				Risk: model.RiskAssessment{Level: model.RiskMedium, Score: 33}},
			{App: model.InstalledApp{PackageID: "b"}, Risk: model.RiskAssessment{Level: model.RiskNotFound}},
		},
	}
	rows := AppRows(r)
	require.Len(t, rows, 2)
	assert.Equal(t, 30, rows[0].Frequency)
	assert.Equal(t, []string{"ads"}, rows[0].DataTypes)
	assert.Equal(t, "none", rows[1].MatchStrategy)
	assert.Equal(t, 1, rows[1].Ordinal)
	assert.Equal(t, []string{}, rows[1].DataTypes)
}
