package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgscan/scandash/model"
)

func TestLoadNormalizesAliases(t *testing.T) {
	csv := strings.Join([]string{
		" package_name ,has_version,should_path,parent_package,should_version",
		"lodash,4.17.21,/srv/app-a,,",
		"lodash,4.17.20,/srv/app-b,evil-pkg,1.0.0",
	}, "\n")

	ds, err := Load(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)

	assert.True(t, ds.HasColumn(model.ColPackage))
	assert.True(t, ds.HasColumn(model.ColVersion))
	assert.True(t, ds.HasColumn(model.ColLocation))
	assert.True(t, ds.HasColumn(model.ColMatchPackage))
	assert.True(t, ds.HasColumn(model.ColMatchVersion))

	// Source columns survive normalization.
	assert.True(t, ds.HasColumn("package_name"))
	assert.Equal(t, "lodash", ds.Records[0].Extra["package_name"])

	first := ds.Records[0]
	assert.Equal(t, "lodash", first.Package)
	assert.Equal(t, "4.17.21", first.Version)
	assert.Equal(t, "/srv/app-a", first.Location)
	assert.Equal(t, "none", first.MatchPackage)
	assert.Equal(t, "none", first.MatchVersion)
	assert.False(t, first.Infected())

	second := ds.Records[1]
	assert.Equal(t, "evil-pkg", second.MatchPackage)
	assert.Equal(t, "1.0.0", second.MatchVersion)
	assert.True(t, second.Infected())
}

func TestNormalizeCanonicalColumnsUntouched(t *testing.T) {
	header := []string{"package", "package_name", "version"}
	rows := [][]string{{"left", "right", "1.0.0"}}

	ds := Normalize(header, rows)

	// package_name must not overwrite an existing package column.
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "left", ds.Records[0].Package)
	assert.Equal(t, "right", ds.Records[0].Extra["package_name"])
}

func TestNormalizeLocationFallbackOrder(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		row    []string
		want   string
	}{
		{"should_path wins", []string{"package", "should_path", "application_root"}, []string{"p", "/a", "/b"}, "/a"},
		{"application_root fallback", []string{"package", "application_root"}, []string{"p", "/b"}, "/b"},
		{"location already canonical", []string{"package", "location", "should_path"}, []string{"p", "/c", "/a"}, "/c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := Normalize(tt.header, [][]string{tt.row})
			require.Len(t, ds.Records, 1)
			assert.Equal(t, tt.want, ds.Records[0].Location)
		})
	}
}

func TestNormalizeSentinelWithoutSourceColumns(t *testing.T) {
	ds := Normalize([]string{"package"}, [][]string{{"lodash"}})

	require.Len(t, ds.Records, 1)
	assert.Equal(t, model.NoneSentinel, ds.Records[0].MatchPackage)
	assert.Equal(t, model.NoneSentinel, ds.Records[0].MatchVersion)
	assert.True(t, ds.HasColumn(model.ColMatchPackage))
	assert.True(t, ds.HasColumn(model.ColMatchVersion))
}

func TestNormalizeEmptyMatchValuesBecomeSentinel(t *testing.T) {
	ds := Normalize(
		[]string{"package", "match_package", "match_version"},
		[][]string{{"lodash", "", ""}},
	)

	require.Len(t, ds.Records, 1)
	assert.Equal(t, model.NoneSentinel, ds.Records[0].MatchPackage)
	assert.Equal(t, model.NoneSentinel, ds.Records[0].MatchVersion)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	csv := strings.Join([]string{
		"package_name,has_version,should_path,parent_package",
		"lodash,4.17.21,/srv/app-a,",
		"express,4.18.0,/srv/app-b,evil-pkg",
	}, "\n")

	ds, err := Load(strings.NewReader(csv))
	require.NoError(t, err)

	out, err := Export(ds)
	require.NoError(t, err)

	again, err := Load(strings.NewReader(string(out)))
	require.NoError(t, err)

	assert.Equal(t, ds, again)
}

func TestExportRoundTripPreservesBytes(t *testing.T) {
	ds, err := Load(strings.NewReader("package,version\nlodash,1.0.0\n"))
	require.NoError(t, err)

	out, err := Export(ds)
	require.NoError(t, err)

	again, err := Load(strings.NewReader(string(out)))
	require.NoError(t, err)

	out2, err := Export(again)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
}

func TestLoadHeaderOnly(t *testing.T) {
	ds, err := Load(strings.NewReader("package_name,has_version\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, ds.Len())
	assert.True(t, ds.HasColumn(model.ColPackage))
}

func TestLoadEmptyInput(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header row is required")
}

func TestLoadMalformedCSV(t *testing.T) {
	// Unterminated quote makes the file unparsable.
	_, err := Load(strings.NewReader("package,version\n\"lodash,1.0.0\n"))
	require.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CSV file not found")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.csv")
	require.NoError(t, os.WriteFile(path, []byte("package_name\nlodash\n"), 0644))

	ds, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "lodash", ds.Records[0].Package)
}

func TestNormalizePurlBackfill(t *testing.T) {
	header := []string{"purl", "location"}
	rows := [][]string{
		{"pkg:npm/lodash@4.17.21", "/srv/app-a"},
		{"pkg:pypi/requests@2.31.0", "/srv/app-b"},
		{"pkg:npm/@angular/core@17.0.0", "/srv/app-c"},
		{"not a purl", "/srv/app-d"},
	}

	ds := Normalize(header, rows)
	require.Len(t, ds.Records, 4)

	assert.True(t, ds.HasColumn(model.ColPackage))
	assert.True(t, ds.HasColumn(model.ColEcosystem))

	assert.Equal(t, "lodash", ds.Records[0].Package)
	assert.Equal(t, "4.17.21", ds.Records[0].Version)
	assert.Equal(t, "node", ds.Records[0].Ecosystem)

	assert.Equal(t, "requests", ds.Records[1].Package)
	assert.Equal(t, "python", ds.Records[1].Ecosystem)

	assert.Equal(t, "@angular/core", ds.Records[2].Package)

	// Invalid purls are skipped, not fatal.
	assert.Equal(t, "", ds.Records[3].Package)
}

func TestNormalizePurlDoesNotOverwrite(t *testing.T) {
	header := []string{"package_name", "purl"}
	rows := [][]string{{"explicit-name", "pkg:npm/lodash@4.17.21"}}

	ds := Normalize(header, rows)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "explicit-name", ds.Records[0].Package)
	// Version was empty, so the purl fills it.
	assert.Equal(t, "4.17.21", ds.Records[0].Version)
}
