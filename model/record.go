// Package model defines the data structures used by the scandash API,
// including scan records, datasets, and aggregate reports.
package model

import "strings"

// Canonical column names produced by normalization. Aggregation keys on
// these regardless of what the source CSV called them.
const (
	ColPackage      = "package"
	ColVersion      = "version"
	ColLocation     = "location"
	ColEcosystem    = "ecosystem"
	ColMatchPackage = "match_package"
	ColMatchVersion = "match_version"
)

// NoneSentinel marks a record that did not match a known bad-package
// pattern. The literal string, not an empty value, is the contract.
const NoneSentinel = "none"

// Record represents one observed package occurrence at one filesystem
// location, after column normalization.
type Record struct {
	Package      string `json:"package"`
	Version      string `json:"version,omitempty"`
	Location     string `json:"location,omitempty"`
	Ecosystem    string `json:"ecosystem,omitempty"`
	MatchPackage string `json:"match_package"`
	MatchVersion string `json:"match_version"`

	// Extra preserves source columns that are not part of the canonical
	// schema. Normalization never discards columns.
	Extra map[string]string `json:"extra,omitempty"`
}

// Infected reports whether the record matched a known bad-package
// pattern. The comparison against the sentinel is case-insensitive.
func (r Record) Infected() bool {
	return !equalsNone(r.MatchPackage)
}

// Field returns the record value for a column name, canonical or extra.
func (r Record) Field(column string) string {
	switch column {
	case ColPackage:
		return r.Package
	case ColVersion:
		return r.Version
	case ColLocation:
		return r.Location
	case ColEcosystem:
		return r.Ecosystem
	case ColMatchPackage:
		return r.MatchPackage
	case ColMatchVersion:
		return r.MatchVersion
	default:
		return r.Extra[column]
	}
}

// Dataset is an ordered sequence of records together with the column
// set they were loaded with. It is immutable for the duration of a
// rendering pass: views derive aggregates from it but never mutate it.
type Dataset struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// HasColumn reports whether a column survived into the dataset.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

func equalsNone(s string) bool {
	return strings.EqualFold(s, NoneSentinel)
}
