package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-inspector/internal/domain/model"
)

func matched(freq int, types ...string) model.MatchResult {
	return model.MatchResult{
		Entry:    &model.DatasetEntry{RawName: "x", NormalizedName: "x", Frequency: freq, FrequencyDefined: true, DataTypes: types},
		Strategy: model.MatchNormalizedExact,
	}
}

func TestLevelBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  model.RiskLevel
	}{
		{0, model.RiskLow},
		{25, model.RiskLow},
		{25.0000001, model.RiskMedium},
		{75, model.RiskMedium},
		{76, model.RiskHigh},
		{1e6, model.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.score), "score %v", tt.score)
	}
}

func TestAssessBoundaryFrequencies(t *testing.T) {
	assert.Equal(t, model.RiskMedium, Assess(matched(75), model.CategorizedPermissions{}).Level)
	assert.Equal(t, model.RiskHigh, Assess(matched(76), model.CategorizedPermissions{}).Level)
	assert.Equal(t, model.RiskLow, Assess(matched(25), model.CategorizedPermissions{}).Level)
	assert.Equal(t, model.RiskMedium, Assess(matched(26), model.CategorizedPermissions{}).Level)
}

func TestScoreExact(t *testing.T) {
	assert.Equal(t, 96.0, Score(80, 2))
	assert.Equal(t, 75.0, Score(75, 0))
	assert.Equal(t, 0.0, Score(0, 5))
	assert.Equal(t, 2000.0, Score(1000, 10))
}

func TestScoreMonotonic(t *testing.T) {
	for freq := 0; freq <= 200; freq += 7 {
		for k := 0; k < 12; k++ {
			assert.GreaterOrEqual(t, Score(freq+1, k), Score(freq, k), "freq=%d k=%d", freq, k)
			assert.GreaterOrEqual(t, Score(freq, k+1), Score(freq, k), "freq=%d k=%d", freq, k)
		}
	}
}

func TestNotFoundAlwaysZero(t *testing.T) {
	perms := model.CategorizedPermissions{PrivacyCriticalGranted: []string{"android.permission.CAMERA"}}
	for _, m := range []model.MatchResult{
		{Strategy: model.MatchNone},
		{Strategy: model.MatchNone, Entry: &model.DatasetEntry{Frequency: 500}},
		{Strategy: model.MatchExact},
	} {
		got := Assess(m, perms)
		assert.Equal(t, model.RiskNotFound, got.Level)
		assert.Zero(t, got.Score)
		assert.Equal(t, []string{FactorNotFound}, got.Factors)
	}
}

func TestAssessFactors(t *testing.T) {
	got := Assess(matched(80, "location", "contacts"), model.CategorizedPermissions{
		PrivacyCriticalGranted: []string{"android.permission.ACCESS_FINE_LOCATION", "android.permission.CAMERA"},
	})
	assert.Equal(t, model.RiskHigh, got.Level)
	assert.Equal(t, 96.0, got.Score)
	require.Len(t, got.Factors, 3)
	assert.Equal(t, "collection frequency: 80", got.Factors[0])
	assert.Equal(t, "data types collected (2): location, contacts", got.Factors[1])
	assert.Equal(t, "elevated permission exposure: privacy-critical permissions granted "+
		"(android.permission.ACCESS_FINE_LOCATION, android.permission.CAMERA)", got.Factors[2])
}

func TestAssessNoTypesNoPermissions(t *testing.T) {
	got := Assess(matched(0), model.CategorizedPermissions{})
	assert.Equal(t, model.RiskLow, got.Level)
	assert.Equal(t, []string{"collection frequency: 0", "data types collected (0): none recorded"}, got.Factors)
}

func TestPermissionsDoNotChangeScore(t *testing.T) {
	m := matched(50, "a")
	plain := Assess(m, model.CategorizedPermissions{})
	exposed := Assess(m, model.CategorizedPermissions{PrivacyCriticalGranted: []string{"CAMERA"}})
	assert.Equal(t, plain.Score, exposed.Score)
	assert.Equal(t, plain.Level, exposed.Level)
}
