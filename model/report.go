// Package model - report types for aggregate views served by the API
package model

// CountEntry is one row of a frequency mapping, ordered by the caller.
type CountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DiversityEntry reports how many distinct versions were observed for a
// package. A package is inconsistent when Versions > 1.
type DiversityEntry struct {
	Package  string `json:"package"`
	Versions int    `json:"versions"`
}

// FrameworkHit reports one matched category from the framework lookup
// tables, with the specific package names that matched.
type FrameworkHit struct {
	Category string       `json:"category"`
	Total    int          `json:"total"`
	Matches  []CountEntry `json:"matches"`
}

// OverviewReport is the main dashboard page payload.
type OverviewReport struct {
	TotalRecords       int              `json:"total_records"`
	UniquePackages     int              `json:"unique_packages"`
	UniqueLocations    int              `json:"unique_locations"`
	InfectedCount      int              `json:"infected_count"`
	TopPackages        []CountEntry     `json:"top_packages"`
	Inconsistent       []DiversityEntry `json:"inconsistent"`
	InfectedByType     []CountEntry     `json:"infected_by_type"`
	InfectedByLocation []CountEntry     `json:"infected_by_location"`
	Infected           []Record         `json:"infected"`
}

// EcosystemReport is the payload for an ecosystem-scoped view.
type EcosystemReport struct {
	Ecosystem       string           `json:"ecosystem"`
	TotalRecords    int              `json:"total_records"`
	UniquePackages  int              `json:"unique_packages"`
	UniqueLocations int              `json:"unique_locations"`
	InfectedCount   int              `json:"infected_count"`
	TopPackages     []CountEntry     `json:"top_packages"`
	Inconsistent    []DiversityEntry `json:"inconsistent"`
	AllConsistent   bool             `json:"all_consistent"`
	Frameworks      []FrameworkHit   `json:"frameworks"`
}

// PackageReport is the drill-down payload for a single package.
type PackageReport struct {
	Package       string       `json:"package"`
	Occurrences   int          `json:"occurrences"`
	Versions      []CountEntry `json:"versions"`
	Locations     []string     `json:"locations"`
	LowestVersion string       `json:"lowest_version,omitempty"`
	HighestVersion string      `json:"highest_version,omitempty"`
}
