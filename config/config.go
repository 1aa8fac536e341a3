// Package config loads the scandash service configuration from an
// optional YAML file with environment-variable fallbacks.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/pkgscan/scandash/stats"
	"github.com/pkgscan/scandash/util"
)

// DefaultCSVPath is used when no path or upload has been supplied.
const DefaultCSVPath = "../output.csv"

// Archive holds the optional ArangoDB scan-archive settings. The
// archive is disabled unless Enabled is set.
type Archive struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// Config is the full service configuration.
type Config struct {
	Port    string `yaml:"port"`
	CSVPath string `yaml:"csv_path"`
	TopN    int    `yaml:"top_n"`

	// MissingEcosystemPolicy applies to ecosystem views when the
	// dataset has no ecosystem column: "empty" or "full".
	MissingEcosystemPolicy string `yaml:"missing_ecosystem_policy"`

	// Frameworks overrides the built-in per-ecosystem lookup tables.
	Frameworks map[string]map[string][]string `yaml:"frameworks"`

	Archive Archive `yaml:"archive"`
}

// Load reads the YAML config at path (skipped when path is empty or the
// file does not exist) and applies environment overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" && util.FileExists(path) {
		content, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.Port = util.GetEnvDefault("MS_PORT", util.GetStringOrDefault(cfg.Port, "3000"))
	cfg.CSVPath = util.GetEnvDefault("SCANDASH_CSV", util.GetStringOrDefault(cfg.CSVPath, DefaultCSVPath))
	cfg.MissingEcosystemPolicy = util.GetEnvDefault("SCANDASH_MISSING_ECOSYSTEM",
		util.GetStringOrDefault(cfg.MissingEcosystemPolicy, string(stats.PolicyEmpty)))

	if topN := util.GetEnvDefault("SCANDASH_TOP_N", ""); topN != "" {
		n, err := strconv.Atoi(topN)
		if err != nil {
			return cfg, fmt.Errorf("invalid SCANDASH_TOP_N %q: %w", topN, err)
		}
		cfg.TopN = n
	}
	if cfg.TopN <= 0 {
		cfg.TopN = stats.DefaultTopN
	}

	switch stats.MissingEcosystemPolicy(cfg.MissingEcosystemPolicy) {
	case stats.PolicyEmpty, stats.PolicyFull:
	default:
		return cfg, fmt.Errorf("invalid missing_ecosystem_policy %q", cfg.MissingEcosystemPolicy)
	}

	if cfg.Archive.Enabled {
		cfg.Archive.Host = util.GetEnvDefault("ARANGO_HOST", util.GetStringOrDefault(cfg.Archive.Host, "localhost"))
		cfg.Archive.Port = util.GetEnvDefault("ARANGO_PORT", util.GetStringOrDefault(cfg.Archive.Port, "8529"))
		cfg.Archive.User = util.GetEnvDefault("ARANGO_USER", util.GetStringOrDefault(cfg.Archive.User, "root"))
		cfg.Archive.Password = util.GetEnvDefault("ARANGO_PASS", cfg.Archive.Password)
		cfg.Archive.URL = util.GetEnvDefault("ARANGO_URL",
			util.GetStringOrDefault(cfg.Archive.URL, "http://"+cfg.Archive.Host+":"+cfg.Archive.Port))
		cfg.Archive.Database = util.GetStringOrDefault(cfg.Archive.Database, "scandash")
	}

	return cfg, nil
}

// Policy returns the configured missing-ecosystem policy.
func (c Config) Policy() stats.MissingEcosystemPolicy {
	return stats.MissingEcosystemPolicy(c.MissingEcosystemPolicy)
}

// FrameworkTable returns the lookup table for an ecosystem, preferring
// a configured override over the built-in defaults.
func (c Config) FrameworkTable(ecosystem string) stats.FrameworkTable {
	if table, ok := c.Frameworks[ecosystem]; ok {
		return stats.FrameworkTable(table)
	}
	return stats.DefaultFrameworks(ecosystem)
}
