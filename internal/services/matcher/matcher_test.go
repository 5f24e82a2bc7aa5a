package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-inspector/internal/adapters/dataset"
	"privacy-inspector/internal/domain/model"
)

func buildIndex(t *testing.T, csvText string) *dataset.Index {
	t.Helper()
	ix, _, err := dataset.NewLoader(nil).LoadReader(strings.NewReader(csvText), model.DatasetSource{Name: "test.csv"})
	require.NoError(t, err)
	return ix
}

func strPtr(s string) *string { return &s }

const sampleCSV = "app_name,frequency,data_types,package_id\n" +
	"Example App,80,\"location, contacts\",\n" +
	"Facebook Messenger,60,contacts,com.facebook.orca\n" +
	"com.weather.radar,30,location,\n" +
	"abcx,5,,\n" +
	"abcy,5,,\n"

func TestMatchStrategies(t *testing.T) {
	m := New(buildIndex(t, sampleCSV), DefaultOptions())

	tests := []struct {
		name     string
		app      model.InstalledApp
		strategy model.MatchStrategy
		raw      string
	}{
		{
			name:     "package id against names",
			app:      model.InstalledApp{PackageID: "com.weather.radar"},
			strategy: model.MatchExact,
			raw:      "com.weather.radar",
		},
		{
			name:     "package id against aliases",
			app:      model.InstalledApp{PackageID: "com.facebook.orca", DisplayName: strPtr("Something Else")},
			strategy: model.MatchExact,
			raw:      "Facebook Messenger",
		},
		{
			name:     "display name normalized exact",
			app:      model.InstalledApp{PackageID: "com.example.app", DisplayName: strPtr("  EXAMPLE app ")},
			strategy: model.MatchNormalizedExact,
			raw:      "Example App",
		},
		{
			name:     "fuzzy above threshold",
			app:      model.InstalledApp{PackageID: "x.y", DisplayName: strPtr("Facebook Mesenger")},
			strategy: model.MatchFallbackFuzzy,
			raw:      "Facebook Messenger",
		},
		{
			name:     "nil display name only tries package",
			app:      model.InstalledApp{PackageID: "org.unknown"},
			strategy: model.MatchNone,
		},
		{
			name:     "display name normalizing to empty",
			app:      model.InstalledApp{PackageID: "org.unknown", DisplayName: strPtr("!!!")},
			strategy: model.MatchNone,
		},
		{
			name:     "empty package falls through to display name",
			app:      model.InstalledApp{PackageID: "", DisplayName: strPtr("Example")},
			strategy: model.MatchNormalizedExact,
			raw:      "Example App",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.app)
			assert.Equal(t, tt.strategy, got.Strategy)
			if tt.strategy == model.MatchNone {
				assert.Nil(t, got.Entry)
				assert.False(t, got.Found())
				return
			}
			require.NotNil(t, got.Entry)
			assert.Equal(t, tt.raw, got.Entry.RawName)
			assert.True(t, got.Found())
		})
	}
}

func TestFuzzyTieIsNone(t *testing.T) {
	m := New(buildIndex(t, sampleCSV), Options{FuzzyEnabled: true, FuzzyThreshold: 0.70})
	got := m.Match(model.InstalledApp{PackageID: "p", DisplayName: strPtr("abcz")})
	assert.Equal(t, model.MatchNone, got.Strategy)
}

func TestFuzzyThresholdBoundary(t *testing.T) {
	ix := buildIndex(t, "app_name,frequency\nabcd,5\n")
	app := model.InstalledApp{PackageID: "p", DisplayName: strPtr("abce")}

	// abcd / abce: 一次替换，距离 2，比率 (8-2)/8 = 0.75。
	assert.InDelta(t, 0.75, Similarity([]rune("abcd"), []rune("abce")), 1e-12)

	atThreshold := New(ix, Options{FuzzyEnabled: true, FuzzyThreshold: 0.75}).Match(app)
	assert.Equal(t, model.MatchNone, atThreshold.Strategy)

	below := New(ix, Options{FuzzyEnabled: true, FuzzyThreshold: 0.7499}).Match(app)
	assert.Equal(t, model.MatchFallbackFuzzy, below.Strategy)
	assert.InDelta(t, 0.75, below.Similarity, 1e-12)
	assert.Equal(t, "abcd", below.MatchedOn)
}

func TestFuzzyDisabled(t *testing.T) {
	m := New(buildIndex(t, sampleCSV), Options{FuzzyEnabled: false, FuzzyThreshold: 0.5})
	got := m.Match(model.InstalledApp{PackageID: "x", DisplayName: strPtr("Facebook Mesenger")})
	assert.Equal(t, model.MatchNone, got.Strategy)
}

func TestMatchDeterministic(t *testing.T) {
	m := New(buildIndex(t, sampleCSV), DefaultOptions())
	app := model.InstalledApp{PackageID: "x", DisplayName: strPtr("Facebook Mesenger")}
	first := m.Match(app)
	for i := 0; i < 50; i++ {
		got := m.Match(app)
		assert.Equal(t, first.Strategy, got.Strategy)
		assert.Same(t, first.Entry, got.Entry)
	}
}

func TestMatchReturnsIndexPointer(t *testing.T) {
	ix := buildIndex(t, sampleCSV)
	want, ok := ix.Lookup("example")
	require.True(t, ok)
	got := New(ix, DefaultOptions()).Match(model.InstalledApp{PackageID: "p", DisplayName: strPtr("Example")})
	assert.Same(t, want, got.Entry)
}
