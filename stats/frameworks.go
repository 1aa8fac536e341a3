package stats

import (
	"sort"
	"strings"

	"github.com/pkgscan/scandash/model"
)

// FrameworkTable maps a category label to the set of package names
// that identify it. Matching is exact, case-insensitive string
// equality: this is a static lookup table, not a fuzzy classifier.
type FrameworkTable map[string][]string

// DefaultFrameworks returns the built-in lookup table for an
// ecosystem. Config can override these per deployment.
func DefaultFrameworks(ecosystem string) FrameworkTable {
	switch strings.ToLower(ecosystem) {
	case "node":
		return FrameworkTable{
			"React":      {"react", "react-dom"},
			"Vue":        {"vue"},
			"Angular":    {"@angular/core"},
			"Express":    {"express"},
			"Next.js":    {"next"},
			"Testing":    {"jest", "mocha", "vitest"},
			"Build":      {"webpack", "vite", "rollup"},
			"TypeScript": {"typescript"},
		}
	case "python":
		return FrameworkTable{
			"Django":     {"django"},
			"Flask":      {"flask"},
			"FastAPI":    {"fastapi"},
			"Pandas":     {"pandas"},
			"NumPy":      {"numpy"},
			"Requests":   {"requests"},
			"SQLAlchemy": {"sqlalchemy"},
			"Pytest":     {"pytest"},
		}
	case "rust":
		return FrameworkTable{
			"Serde":          {"serde", "serde_json"},
			"Tokio":          {"tokio"},
			"Async Runtime":  {"async-std", "tokio", "smol"},
			"CLI":            {"clap", "structopt"},
			"HTTP":           {"reqwest", "hyper", "actix-web", "axum"},
			"Regex":          {"regex"},
			"Logging":        {"log", "env_logger", "tracing"},
			"Error Handling": {"anyhow", "thiserror"},
		}
	default:
		return nil
	}
}

// DetectFrameworks reports, per category, the total occurrence count
// and which specific package names matched. Categories with no matches
// are omitted. Results order by total descending, then category name.
func DetectFrameworks(ds *model.Dataset, records []model.Record, table FrameworkTable) []model.FrameworkHit {
	if len(table) == 0 || !ds.HasColumn(model.ColPackage) {
		return nil
	}

	occurrences := make(map[string]int)
	for _, rec := range records {
		if rec.Package != "" {
			occurrences[strings.ToLower(rec.Package)]++
		}
	}

	var hits []model.FrameworkHit
	for category, names := range table {
		hit := model.FrameworkHit{Category: category}
		for _, name := range names {
			if count := occurrences[strings.ToLower(name)]; count > 0 {
				hit.Total += count
				hit.Matches = append(hit.Matches, model.CountEntry{Name: name, Count: count})
			}
		}
		if hit.Total > 0 {
			hits = append(hits, hit)
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Total != hits[j].Total {
			return hits[i].Total > hits[j].Total
		}
		return hits[i].Category < hits[j].Category
	})
	return hits
}
