// Package stats derives the dashboard aggregates from a normalized
// dataset: frequency counts, version diversity, infected subsets, and
// framework detection. Missing optional columns degrade to empty or
// zero results, never errors.
package stats

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkgscan/scandash/model"
)

// MissingEcosystemPolicy controls what an ecosystem-filtered view gets
// when the dataset has no ecosystem column at all.
type MissingEcosystemPolicy string

const (
	// PolicyEmpty yields an empty subset when the ecosystem column is
	// missing. This is the default.
	PolicyEmpty MissingEcosystemPolicy = "empty"
	// PolicyFull yields the full dataset when the ecosystem column is
	// missing.
	PolicyFull MissingEcosystemPolicy = "full"
)

// DefaultTopN bounds the "most used packages" listing.
const DefaultTopN = 20

// topLocations bounds the infected-by-location breakdown.
const topLocations = 10

// Options parameterizes one aggregation pass.
type Options struct {
	// Ecosystem filters the dataset case-insensitively. Empty means no
	// filter: the full dataset.
	Ecosystem string
	// TopN bounds TopPackages. Zero means DefaultTopN.
	TopN int
	// MissingEcosystem is consulted only when Ecosystem is set and the
	// dataset has no ecosystem column.
	MissingEcosystem MissingEcosystemPolicy
}

func (o Options) topN() int {
	if o.TopN <= 0 {
		return DefaultTopN
	}
	return o.TopN
}

// Subset returns the records an ecosystem-scoped view operates on.
// The returned slice shares backing records with the dataset; callers
// treat it as read-only.
func Subset(ds *model.Dataset, opts Options) []model.Record {
	if opts.Ecosystem == "" {
		return ds.Records
	}
	if !ds.HasColumn(model.ColEcosystem) {
		if opts.MissingEcosystem == PolicyFull {
			return ds.Records
		}
		return nil
	}

	var subset []model.Record
	for _, rec := range ds.Records {
		if strings.EqualFold(rec.Ecosystem, opts.Ecosystem) {
			subset = append(subset, rec)
		}
	}
	return subset
}

// Frequency counts package occurrences, ordered descending by count
// with ties broken by first-encounter order. Records without a usable
// package column contribute nothing.
func Frequency(ds *model.Dataset, records []model.Record) []model.CountEntry {
	if !ds.HasColumn(model.ColPackage) {
		return nil
	}
	return countValues(records, func(r model.Record) string { return r.Package })
}

// TopN returns the first n entries of the frequency mapping.
func TopN(freq []model.CountEntry, n int) []model.CountEntry {
	if n > len(freq) {
		n = len(freq)
	}
	return freq[:n]
}

// VersionDiversity counts distinct version values per package, ordered
// descending. A package with diversity above one has inconsistent
// versions across scanned locations.
func VersionDiversity(ds *model.Dataset, records []model.Record) []model.DiversityEntry {
	if !ds.HasColumn(model.ColPackage) || !ds.HasColumn(model.ColVersion) {
		return nil
	}

	versions := make(map[string]map[string]struct{})
	var order []string
	for _, rec := range records {
		if rec.Package == "" {
			continue
		}
		set, ok := versions[rec.Package]
		if !ok {
			set = make(map[string]struct{})
			versions[rec.Package] = set
			order = append(order, rec.Package)
		}
		set[rec.Version] = struct{}{}
	}

	entries := make([]model.DiversityEntry, 0, len(order))
	for _, pkg := range order {
		entries = append(entries, model.DiversityEntry{Package: pkg, Versions: len(versions[pkg])})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Versions > entries[j].Versions
	})
	return entries
}

// Inconsistent filters a diversity listing down to packages observed
// with more than one version.
func Inconsistent(entries []model.DiversityEntry) []model.DiversityEntry {
	var out []model.DiversityEntry
	for _, e := range entries {
		if e.Versions > 1 {
			out = append(out, e)
		}
	}
	return out
}

// InfectedSubset returns the records whose match_package is not the
// "none" sentinel, case-insensitively.
func InfectedSubset(records []model.Record) []model.Record {
	var infected []model.Record
	for _, rec := range records {
		if rec.Infected() {
			infected = append(infected, rec)
		}
	}
	return infected
}

// InfectedByType counts infected records per matched package pattern.
func InfectedByType(infected []model.Record) []model.CountEntry {
	return countValues(infected, func(r model.Record) string { return r.MatchPackage })
}

// InfectedByLocation counts infected records per location, top 10.
func InfectedByLocation(infected []model.Record) []model.CountEntry {
	return TopN(countValues(infected, func(r model.Record) string { return r.Location }), topLocations)
}

// Overview computes the main dashboard page aggregates over the
// unfiltered dataset.
func Overview(ds *model.Dataset, opts Options) model.OverviewReport {
	records := Subset(ds, opts)
	infected := InfectedSubset(records)

	return model.OverviewReport{
		TotalRecords:       len(records),
		UniquePackages:     uniqueCount(ds, records, model.ColPackage, func(r model.Record) string { return r.Package }),
		UniqueLocations:    uniqueCount(ds, records, model.ColLocation, func(r model.Record) string { return r.Location }),
		InfectedCount:      len(infected),
		TopPackages:        TopN(Frequency(ds, records), opts.topN()),
		Inconsistent:       Inconsistent(VersionDiversity(ds, records)),
		InfectedByType:     InfectedByType(infected),
		InfectedByLocation: InfectedByLocation(infected),
		Infected:           infected,
	}
}

// Ecosystem computes the aggregates for one ecosystem-scoped view.
func Ecosystem(ds *model.Dataset, frameworks FrameworkTable, opts Options) model.EcosystemReport {
	records := Subset(ds, opts)
	infected := InfectedSubset(records)
	diversity := VersionDiversity(ds, records)
	inconsistent := Inconsistent(diversity)

	return model.EcosystemReport{
		Ecosystem:       strings.ToLower(opts.Ecosystem),
		TotalRecords:    len(records),
		UniquePackages:  uniqueCount(ds, records, model.ColPackage, func(r model.Record) string { return r.Package }),
		UniqueLocations: uniqueCount(ds, records, model.ColLocation, func(r model.Record) string { return r.Location }),
		InfectedCount:   len(infected),
		TopPackages:     TopN(Frequency(ds, records), opts.topN()),
		Inconsistent:    inconsistent,
		AllConsistent:   len(diversity) > 0 && len(inconsistent) == 0,
		Frameworks:      DetectFrameworks(ds, records, frameworks),
	}
}

// Package computes the drill-down aggregates for a single package
// within the filtered subset.
func Package(ds *model.Dataset, name string, opts Options) model.PackageReport {
	records := Subset(ds, opts)

	report := model.PackageReport{Package: name}
	if !ds.HasColumn(model.ColPackage) {
		return report
	}

	var matched []model.Record
	for _, rec := range records {
		if rec.Package == name {
			matched = append(matched, rec)
		}
	}

	report.Occurrences = len(matched)
	report.Versions = countValues(matched, func(r model.Record) string { return r.Version })
	for _, rec := range matched {
		if rec.Location != "" {
			report.Locations = append(report.Locations, rec.Location)
		}
	}
	report.LowestVersion, report.HighestVersion = versionRange(report.Versions)
	return report
}

// versionRange reports the lowest and highest observed version when
// every distinct version parses as semver. Mixed or unparsable version
// sets yield no range.
func versionRange(versions []model.CountEntry) (string, string) {
	if len(versions) == 0 {
		return "", ""
	}

	var lowest, highest *semver.Version
	for _, entry := range versions {
		v, err := semver.NewVersion(entry.Name)
		if err != nil {
			return "", ""
		}
		if lowest == nil || v.LessThan(lowest) {
			lowest = v
		}
		if highest == nil || v.GreaterThan(highest) {
			highest = v
		}
	}
	return lowest.Original(), highest.Original()
}

func countValues(records []model.Record, key func(model.Record) string) []model.CountEntry {
	counts := make(map[string]int)
	var order []string
	for _, rec := range records {
		k := key(rec)
		if k == "" {
			continue
		}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}

	entries := make([]model.CountEntry, 0, len(order))
	for _, k := range order {
		entries = append(entries, model.CountEntry{Name: k, Count: counts[k]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries
}

func uniqueCount(ds *model.Dataset, records []model.Record, column string, key func(model.Record) string) int {
	if !ds.HasColumn(column) {
		return 0
	}
	seen := make(map[string]struct{})
	for _, rec := range records {
		if k := key(rec); k != "" {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}
