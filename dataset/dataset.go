// Package dataset loads scanner CSV output and normalizes heterogeneous
// column naming onto the canonical record schema.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkgscan/scandash/model"
	"github.com/pkgscan/scandash/util"
)

// aliasRule maps a canonical column onto an ordered list of fallback
// source names. Rules apply only when the canonical column is absent;
// a dataset that already carries the canonical name is left untouched.
type aliasRule struct {
	canonical string
	sources   []string

	// sentinel rules synthesize the column with the "none" sentinel
	// when no source column exists, and replace empty values with the
	// sentinel when one does.
	sentinel bool
}

var aliasTable = []aliasRule{
	{canonical: model.ColPackage, sources: []string{"package_name"}},
	{canonical: model.ColVersion, sources: []string{"has_version"}},
	{canonical: model.ColLocation, sources: []string{"should_path", "application_root"}},
	{canonical: model.ColMatchPackage, sources: []string{"parent_package"}, sentinel: true},
	{canonical: model.ColMatchVersion, sources: []string{"should_version"}, sentinel: true},
}

// colPurl is an optional source column carrying package URLs. When
// present, parsed purl components backfill record fields the aliasing
// pass left empty.
const colPurl = "purl"

// LoadFile reads and normalizes a scanner CSV from a local path.
func LoadFile(path string) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("CSV file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer f.Close()

	ds, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load CSV %s: %w", path, err)
	}
	return ds, nil
}

// Load reads and normalizes a scanner CSV from a reader. The header row
// is required. A malformed file is fatal to the caller's view: no
// partial dataset is ever returned alongside an error.
func Load(r io.Reader) (*model.Dataset, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV: header row is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		rows = append(rows, row)
	}

	return Normalize(header, rows), nil
}

// Normalize maps raw tabular data onto the canonical schema. Column
// names are trimmed, alias rules are applied in order, and unrecognized
// columns are preserved in each record's Extra map. The pass is
// idempotent: normalizing an exported dataset yields the same dataset.
func Normalize(header []string, rows [][]string) *model.Dataset {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	// Resolve each alias rule against the trimmed header. resolved maps
	// canonical name -> source column to copy from ("" means synthesize
	// the sentinel).
	resolved := make(map[string]string)
	for _, rule := range aliasTable {
		if util.Contains(columns, rule.canonical) {
			continue
		}
		source := ""
		for _, s := range rule.sources {
			if util.Contains(columns, s) {
				source = s
				break
			}
		}
		if source != "" || rule.sentinel {
			resolved[rule.canonical] = source
			columns = append(columns, rule.canonical)
		}
	}

	// A purl column can populate package, version, and ecosystem, so
	// those canonical columns exist whenever purl does. Backfill only
	// touches fields the aliasing pass left empty.
	hasPurl := util.Contains(columns, colPurl)
	if hasPurl {
		for _, canonical := range []string{model.ColPackage, model.ColVersion, model.ColEcosystem} {
			if !util.Contains(columns, canonical) {
				columns = append(columns, canonical)
			}
		}
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		values := make(map[string]string, len(columns))
		for i, h := range header {
			if i < len(row) {
				values[strings.TrimSpace(h)] = row[i]
			}
		}

		for canonical, source := range resolved {
			v := ""
			if source != "" {
				v = values[source]
			}
			values[canonical] = v
		}

		rec := buildRecord(columns, values)
		if hasPurl {
			backfillFromPurl(&rec, values[colPurl])
		}
		records = append(records, rec)
	}

	return &model.Dataset{Columns: columns, Records: records}
}

func buildRecord(columns []string, values map[string]string) model.Record {
	rec := model.Record{
		Package:      values[model.ColPackage],
		Version:      values[model.ColVersion],
		Location:     values[model.ColLocation],
		Ecosystem:    values[model.ColEcosystem],
		MatchPackage: values[model.ColMatchPackage],
		MatchVersion: values[model.ColMatchVersion],
	}

	// The match columns are never empty after normalization: the
	// sentinel, not an empty value, marks "not infected".
	rec.MatchPackage = util.GetStringOrDefault(rec.MatchPackage, model.NoneSentinel)
	rec.MatchVersion = util.GetStringOrDefault(rec.MatchVersion, model.NoneSentinel)

	for _, col := range columns {
		switch col {
		case model.ColPackage, model.ColVersion, model.ColLocation,
			model.ColEcosystem, model.ColMatchPackage, model.ColMatchVersion:
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[col] = values[col]
	}

	return rec
}

// backfillFromPurl fills record fields the aliasing pass left empty
// from a parsed package URL, and canonicalizes the stored purl value
// (qualifiers and subpath stripped). Invalid purls are skipped, not
// fatal.
func backfillFromPurl(rec *model.Record, purl string) {
	if util.IsEmpty(purl) {
		return
	}
	parsed, err := util.ParsePURL(strings.TrimSpace(purl))
	if err != nil {
		return
	}
	if cleaned, err := util.CleanPURL(strings.TrimSpace(purl)); err == nil {
		rec.Extra[colPurl] = cleaned
	}

	name := parsed.Name
	if parsed.Namespace != "" {
		name = parsed.Namespace + "/" + parsed.Name
	}

	rec.Package = util.GetStringOrDefault(rec.Package, name)
	rec.Version = util.GetStringOrDefault(rec.Version, parsed.Version)
	rec.Ecosystem = util.GetStringOrDefault(rec.Ecosystem, util.PurlTypeToEcosystem(parsed.Type))
}
