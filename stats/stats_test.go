package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgscan/scandash/model"
)

func rec(pkg, version, location, ecosystem, matchPkg string) model.Record {
	if matchPkg == "" {
		matchPkg = model.NoneSentinel
	}
	return model.Record{
		Package:      pkg,
		Version:      version,
		Location:     location,
		Ecosystem:    ecosystem,
		MatchPackage: matchPkg,
		MatchVersion: model.NoneSentinel,
	}
}

func testDataset(records ...model.Record) *model.Dataset {
	return &model.Dataset{
		Columns: []string{
			model.ColPackage, model.ColVersion, model.ColLocation,
			model.ColEcosystem, model.ColMatchPackage, model.ColMatchVersion,
		},
		Records: records,
	}
}

func TestInfectedExample(t *testing.T) {
	// Two lodash occurrences, one matching a known bad-package pattern.
	ds := testDataset(
		rec("lodash", "4.17.21", "/a", "node", ""),
		rec("lodash", "4.17.20", "/b", "node", "evil-pkg"),
	)

	records := Subset(ds, Options{})
	freq := Frequency(ds, records)
	require.Len(t, freq, 1)
	assert.Equal(t, model.CountEntry{Name: "lodash", Count: 2}, freq[0])

	diversity := VersionDiversity(ds, records)
	require.Len(t, diversity, 1)
	assert.Equal(t, model.DiversityEntry{Package: "lodash", Versions: 2}, diversity[0])
	assert.Len(t, Inconsistent(diversity), 1)

	infected := InfectedSubset(records)
	require.Len(t, infected, 1)
	assert.Equal(t, "evil-pkg", infected[0].MatchPackage)
}

func TestFrequencyOrderAndSum(t *testing.T) {
	ds := testDataset(
		rec("b", "1", "/a", "", ""),
		rec("a", "1", "/a", "", ""),
		rec("b", "1", "/b", "", ""),
		rec("c", "1", "/a", "", ""),
		rec("a", "1", "/b", "", ""),
	)

	freq := Frequency(ds, ds.Records)
	require.Len(t, freq, 3)

	// Descending by count; the a/b tie breaks by first-encounter order.
	assert.Equal(t, "b", freq[0].Name)
	assert.Equal(t, "a", freq[1].Name)
	assert.Equal(t, "c", freq[2].Name)

	sum := 0
	for _, e := range freq {
		sum += e.Count
	}
	assert.Equal(t, len(ds.Records), sum)
}

func TestTopNIsPrefix(t *testing.T) {
	ds := testDataset(
		rec("a", "1", "/a", "", ""),
		rec("a", "1", "/b", "", ""),
		rec("b", "1", "/a", "", ""),
		rec("c", "1", "/a", "", ""),
	)

	freq := Frequency(ds, ds.Records)
	top := TopN(freq, 2)
	require.Len(t, top, 2)
	assert.Equal(t, freq[:2], top)

	// N larger than the distinct package count is clamped.
	assert.Len(t, TopN(freq, 50), 3)
}

func TestFrequencyWithoutPackageColumn(t *testing.T) {
	ds := &model.Dataset{
		Columns: []string{model.ColLocation},
		Records: []model.Record{{Location: "/a"}, {Location: "/b"}},
	}

	assert.Nil(t, Frequency(ds, ds.Records))
	assert.Nil(t, VersionDiversity(ds, ds.Records))

	report := Overview(ds, Options{})
	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 0, report.UniquePackages)
	assert.Empty(t, report.TopPackages)
}

func TestSubsetFiltersEcosystemCaseInsensitive(t *testing.T) {
	ds := testDataset(
		rec("a", "1", "/a", "Node", ""),
		rec("b", "1", "/a", "python", ""),
		rec("c", "1", "/a", "NODE", ""),
	)

	subset := Subset(ds, Options{Ecosystem: "node"})
	require.Len(t, subset, 2)
	assert.Equal(t, "a", subset[0].Package)
	assert.Equal(t, "c", subset[1].Package)
}

func TestSubsetMissingEcosystemColumnPolicies(t *testing.T) {
	ds := &model.Dataset{
		Columns: []string{model.ColPackage},
		Records: []model.Record{{Package: "a"}, {Package: "b"}},
	}

	assert.Empty(t, Subset(ds, Options{Ecosystem: "node"}))
	assert.Empty(t, Subset(ds, Options{Ecosystem: "node", MissingEcosystem: PolicyEmpty}))
	assert.Len(t, Subset(ds, Options{Ecosystem: "node", MissingEcosystem: PolicyFull}), 2)

	// No filter means the full dataset regardless of policy.
	assert.Len(t, Subset(ds, Options{}), 2)
}

func TestInfectedBreakdowns(t *testing.T) {
	ds := testDataset(
		rec("a", "1", "/a", "", "worm"),
		rec("b", "1", "/a", "", "worm"),
		rec("c", "1", "/b", "", "trojan"),
		rec("d", "1", "/c", "", "NONE"), // sentinel is case-insensitive
		rec("e", "1", "/c", "", ""),
	)

	infected := InfectedSubset(ds.Records)
	require.Len(t, infected, 3)

	byType := InfectedByType(infected)
	require.Len(t, byType, 2)
	assert.Equal(t, model.CountEntry{Name: "worm", Count: 2}, byType[0])
	assert.Equal(t, model.CountEntry{Name: "trojan", Count: 1}, byType[1])

	byLocation := InfectedByLocation(infected)
	require.Len(t, byLocation, 2)
	assert.Equal(t, "/a", byLocation[0].Name)
}

func TestInfectedByLocationTopTen(t *testing.T) {
	var records []model.Record
	for i := 0; i < 15; i++ {
		records = append(records, rec("p", "1", string(rune('a'+i)), "", "worm"))
	}

	byLocation := InfectedByLocation(InfectedSubset(records))
	assert.Len(t, byLocation, 10)
}

func TestOverviewEmptyDataset(t *testing.T) {
	ds := testDataset()

	report := Overview(ds, Options{})
	assert.Equal(t, 0, report.TotalRecords)
	assert.Equal(t, 0, report.UniquePackages)
	assert.Equal(t, 0, report.UniqueLocations)
	assert.Equal(t, 0, report.InfectedCount)
	assert.Empty(t, report.TopPackages)
	assert.Empty(t, report.InfectedByType)
}

func TestEcosystemReportConsistency(t *testing.T) {
	consistent := testDataset(
		rec("a", "1.0.0", "/a", "node", ""),
		rec("a", "1.0.0", "/b", "node", ""),
		rec("b", "2.0.0", "/a", "node", ""),
	)

	report := Ecosystem(consistent, DefaultFrameworks("node"), Options{Ecosystem: "node"})
	assert.Equal(t, "node", report.Ecosystem)
	assert.Equal(t, 3, report.TotalRecords)
	assert.True(t, report.AllConsistent)
	assert.Empty(t, report.Inconsistent)

	mixed := testDataset(
		rec("a", "1.0.0", "/a", "node", ""),
		rec("a", "1.1.0", "/b", "node", ""),
	)

	report = Ecosystem(mixed, DefaultFrameworks("node"), Options{Ecosystem: "node"})
	assert.False(t, report.AllConsistent)
	require.Len(t, report.Inconsistent, 1)
	assert.Equal(t, model.DiversityEntry{Package: "a", Versions: 2}, report.Inconsistent[0])
}

func TestPackageReport(t *testing.T) {
	ds := testDataset(
		rec("lodash", "4.17.21", "/a", "node", ""),
		rec("lodash", "4.17.20", "/b", "node", ""),
		rec("lodash", "4.17.21", "/c", "node", ""),
		rec("express", "4.18.0", "/a", "node", ""),
	)

	report := Package(ds, "lodash", Options{})
	assert.Equal(t, 3, report.Occurrences)
	require.Len(t, report.Versions, 2)
	assert.Equal(t, model.CountEntry{Name: "4.17.21", Count: 2}, report.Versions[0])
	assert.Equal(t, []string{"/a", "/b", "/c"}, report.Locations)
	assert.Equal(t, "4.17.20", report.LowestVersion)
	assert.Equal(t, "4.17.21", report.HighestVersion)
}

func TestPackageReportNonSemverVersions(t *testing.T) {
	ds := testDataset(
		rec("pywin", "build-7", "/a", "python", ""),
		rec("pywin", "build-12", "/b", "python", ""),
	)

	report := Package(ds, "pywin", Options{})
	assert.Equal(t, 2, report.Occurrences)
	assert.Empty(t, report.LowestVersion)
	assert.Empty(t, report.HighestVersion)
}

func TestPackageReportUnknownPackage(t *testing.T) {
	ds := testDataset(rec("a", "1", "/a", "", ""))

	report := Package(ds, "missing", Options{})
	assert.Equal(t, 0, report.Occurrences)
	assert.Empty(t, report.Versions)
}
