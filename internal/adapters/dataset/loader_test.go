package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-inspector/internal/domain/model"
)

func loadString(t *testing.T, csvText string) (*Index, *model.LoadSummary, error) {
	t.Helper()
	return NewLoader(nil).LoadReader(strings.NewReader(csvText), model.DatasetSource{Path: "mem.csv", Name: "mem.csv"})
}

func TestLoadBasic(t *testing.T) {
	ix, sum, err := loadString(t, "app_name,frequency,data_types\n"+
		"Example App,80,\"Location, Contacts\"\n"+
		"Weather (v2.1),10,location|device_id;Location\n")
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 2, sum.Retained)
	assert.Equal(t, 2, sum.RowsRead)
	assert.Empty(t, sum.Warnings)

	e, ok := ix.Lookup("example")
	require.True(t, ok)
	assert.Equal(t, "Example App", e.RawName)
	assert.Equal(t, 80, e.Frequency)
	assert.True(t, e.FrequencyDefined)
	assert.Equal(t, []string{"location", "contacts"}, e.DataTypes)
	assert.Equal(t, 2, e.Row)

	w, ok := ix.Lookup("weather")
	require.True(t, ok)
	assert.Equal(t, []string{"location", "device_id"}, w.DataTypes)
	assert.Equal(t, 3, w.Row)
}

func TestLoadHeaderAliasesAndPackageColumn(t *testing.T) {
	ix, _, err := loadString(t, "\ufeffName , Collection_Frequency,types,package,behaviors\n"+
		"Foo,5,ads,com.foo.android,sells location|shares contacts\n")
	require.NoError(t, err)
	e, ok := ix.Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, "com.foo.android", e.PackageID)
	assert.Equal(t, []string{"sells location", "shares contacts"}, e.KnownBehaviors)

	byPkg, ok := ix.LookupPackage("COM.FOO.ANDROID")
	require.True(t, ok)
	assert.Same(t, e, byPkg)
}

func TestLoadRowWarnings(t *testing.T) {
	ix, sum, err := loadString(t, "app_name,frequency,data_types\n"+
		"Good,10,a\n"+
		"Word,lots,a\n"+
		"Frac,1.5,a\n"+
		"Neg,-3,a\n"+
		"!!!,4,a\n"+
		"Short,4\n"+
		"Blank,,a\n"+
		"Float,75.0,a\n")
	require.NoError(t, err)
	assert.Equal(t, 8, sum.RowsRead)
	assert.Equal(t, 5, sum.Skipped)
	assert.Equal(t, 3, ix.Len())
	require.Len(t, sum.Warnings, 5)

	rows := []int{}
	for _, w := range sum.Warnings {
		rows = append(rows, w.Row)
		assert.Equal(t, "mem.csv", w.Source)
		assert.NotEmpty(t, w.Reason)
	}
	assert.Equal(t, []int{3, 4, 5, 6, 7}, rows)

	blank, ok := ix.Lookup("blank")
	require.True(t, ok)
	assert.False(t, blank.FrequencyDefined)
	assert.Equal(t, 0, blank.Frequency)

	f, ok := ix.Lookup("float")
	require.True(t, ok)
	assert.Equal(t, 75, f.Frequency)
}

func TestLoadMissingColumn(t *testing.T) {
	_, _, err := loadString(t, "app_name,data_types\nFoo,a\n")
	assert.True(t, errors.Is(err, ErrMissingColumn), "err=%v", err)

	_, _, err = loadString(t, "frequency\n3\n")
	assert.True(t, errors.Is(err, ErrMissingColumn), "err=%v", err)

	_, _, err = loadString(t, "")
	assert.True(t, errors.Is(err, ErrMissingColumn), "err=%v", err)
}

func TestLoadEmptyDataset(t *testing.T) {
	_, sum, err := loadString(t, "app_name,frequency\n!!!,3\n")
	assert.ErrorIs(t, err, ErrEmptyDataset)
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.Skipped)
}

func TestPackageColumnAsName(t *testing.T) {
	ix, _, err := loadString(t, "package_id,frequency\ncom.bar.app,7\n")
	require.NoError(t, err)
	_, ok := ix.Lookup("com.bar.app")
	assert.True(t, ok)
}

func TestDuplicatePolicy(t *testing.T) {
	tests := []struct {
		name       string
		secondFreq string
		firstPrio  int
		secondPrio int
		wantFreq   int
		wantRow    int
		replaced   int
	}{
		{"greater frequency replaces", "90", 0, 0, 90, 4, 1},
		{"equal frequency keeps first", "50", 0, 0, 50, 3, 0},
		{"lower frequency keeps first", "10", 0, 0, 50, 3, 0},
		{"blank frequency keeps first", "", 0, 0, 50, 3, 0},
		{"lower priority keeps first", "90", 2, 1, 50, 3, 0},
		{"higher priority replaces", "90", 1, 2, 90, 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			a := filepath.Join(dir, "a.csv")
			b := filepath.Join(dir, "b.csv")
			require.NoError(t, os.WriteFile(a, []byte("app_name,frequency\nfiller,1\nFoo App,50\n"), 0o644))
			require.NoError(t, os.WriteFile(b, []byte("app_name,frequency\nfiller2,1\nfiller3,1\nfoo,"+tt.secondFreq+"\n"), 0o644))

			ix, sum, err := NewLoader(nil).Load(context.Background(), []model.DatasetSource{
				{Path: a, Name: "a.csv", Priority: tt.firstPrio},
				{Path: b, Name: "b.csv", Priority: tt.secondPrio},
			})
			require.NoError(t, err)
			e, ok := ix.Lookup("foo")
			require.True(t, ok)
			assert.Equal(t, tt.wantFreq, e.Frequency)
			assert.Equal(t, tt.replaced, sum.Replaced)
			if tt.replaced == 1 {
				assert.Equal(t, "b.csv", e.SourceName)
			} else {
				assert.Equal(t, "a.csv", e.SourceName)
			}
			assert.Equal(t, tt.wantRow, e.Row)
			assert.Len(t, sum.Sources, 2)
			assert.Len(t, sum.Sources[0].SHA256, 64)
		})
	}
}

func TestDuplicatePolicyWithinFile(t *testing.T) {
	ix, sum, err := loadString(t, "app_name,frequency\nFoo,10\nThe Foo,20\nfoo app,15\n")
	require.NoError(t, err)
	e, _ := ix.Lookup("foo")
	assert.Equal(t, 20, e.Frequency)
	assert.Equal(t, 1, sum.Replaced)
	assert.Equal(t, 1, ix.Len())
}

func TestPackageAliasFollowsReplacement(t *testing.T) {
	ix, _, err := loadString(t, "app_name,frequency,package_id\nFoo,10,com.foo\nFoo,30,\n")
	require.NoError(t, err)
	e, ok := ix.LookupPackage("com.foo")
	require.True(t, ok)
	assert.Equal(t, 30, e.Frequency)
}

func TestPackageAliasSkipsDiscardedDuplicate(t *testing.T) {
	tests := []struct {
		name      string
		csv       string
		wantPkg   string
		other     string
		otherKept bool
	}{
		{"lower frequency loses", "app_name,package_id,frequency\nFoo,com.foo.a,10\nFoo,com.foo.b,5\n", "com.foo.a", "com.foo.b", false},
		{"blank frequency loses", "app_name,package_id,frequency\nFoo,com.foo.a,10\nFoo,com.foo.b,\n", "com.foo.a", "com.foo.b", false},
		{"higher frequency wins", "app_name,package_id,frequency\nFoo,com.foo.a,10\nFoo,com.foo.b,50\n", "com.foo.b", "com.foo.a", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, _, err := loadString(t, tt.csv)
			require.NoError(t, err)
			require.Equal(t, 1, ix.Len())

			kept, ok := ix.Lookup("foo")
			require.True(t, ok)
			assert.Equal(t, tt.wantPkg, kept.PackageID)

			e, ok := ix.LookupPackage(tt.wantPkg)
			require.True(t, ok)
			assert.Same(t, kept, e)

			e, ok = ix.LookupPackage(tt.other)
			require.Equal(t, tt.otherKept, ok)
			if ok {
				assert.Same(t, kept, e)
			}
		})
	}
}

func TestEntriesSorted(t *testing.T) {
	ix, _, err := loadString(t, "app_name,frequency\nZeta,1\nAlpha,2\nMid,3\n")
	require.NoError(t, err)
	names := []string{}
	for _, e := range ix.Entries() {
		names = append(names, e.NormalizedName)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		defined bool
		wantErr bool
	}{
		{" 42 ", 42, true, false},
		{"75.0", 75, true, false},
		{"0", 0, true, false},
		{"", 0, false, false},
		{"   ", 0, false, false},
		{"1.5", 0, false, true},
		{"-1", 0, false, true},
		{"abc", 0, false, true},
		{"99999999999999999999", 0, false, true},
		{"NaN", 0, false, true},
	}
	for _, tt := range tests {
		got, defined, err := ParseFrequency(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.defined, defined, tt.in)
	}
}

func TestSources(t *testing.T) {
	got := Sources([]string{"data/primary.csv", " ", "/abs/extra.csv"}, map[string]int{"primary.csv": 2, "/abs/extra.csv": 5})
	require.Len(t, got, 2)
	assert.Equal(t, model.DatasetSource{Path: "data/primary.csv", Name: "primary.csv", Priority: 2}, got[0])
	assert.Equal(t, 5, got[1].Priority)
}
