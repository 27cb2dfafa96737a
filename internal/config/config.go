// Package config loads the YAML settings file. Every field has a
// working default so the tool runs with no file at all, against a local
// SQLite database.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"firewall-policy-auditor/internal/analyzer"
	"firewall-policy-auditor/internal/logging"
)

// Database selects the persistence backend.
type Database struct {
	// Driver is "sqlite" or "mysql".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Analyzer tunes the dynamic analysis thresholds. Zero values fall back
// to the built-in defaults.
type Analyzer struct {
	LookbackDays         int   `yaml:"lookback_days"`
	MinDenyOccurrences   int64 `yaml:"min_deny_occurrences"`
	TopDeniedFlows       int   `yaml:"top_denied_flows"`
	PolicyFlowLimit      int   `yaml:"policy_flow_limit"`
	MaxDetailedFindings  int   `yaml:"max_detailed_findings"`
	MaxReplacementRules  int   `yaml:"max_replacement_rules"`
	ZombieSummarizeAfter int   `yaml:"zombie_summarize_after"`
	ZombieBatchLimit     int   `yaml:"zombie_batch_limit"`
	Workers              int   `yaml:"workers"`
}

// Config is the full settings file.
type Config struct {
	Database Database       `yaml:"database"`
	Logging  logging.Config `yaml:"logging"`
	Analyzer Analyzer       `yaml:"analyzer"`
}

// DefaultSQLiteDSN is the database file used when the sqlite driver has
// no explicit DSN. The mysql driver never gets a default: its DSN must
// be configured, and Validate enforces that.
const DefaultSQLiteDSN = "auditor.db"

// Default returns the settings used when no file is given. The DSN is
// left empty so a settings file switching the driver cannot inherit the
// sqlite filename; FillDSN supplies it afterwards.
func Default() *Config {
	return &Config{
		Database: Database{Driver: "sqlite"},
		Logging:  logging.Config{Level: "info", Format: "json"},
		Analyzer: Analyzer{Workers: 4},
	}
}

// FillDSN defaults an empty sqlite DSN to the local database file.
func (c *Config) FillDSN() {
	if c.Database.Driver != "mysql" && c.Database.DSN == "" {
		c.Database.DSN = DefaultSQLiteDSN
	}
}

// Load reads and validates a settings file. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.FillDSN()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.FillDSN()
	return cfg, nil
}

// Validate rejects settings the rest of the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "mysql" && c.Database.DSN == "" {
		return fmt.Errorf("mysql driver requires a dsn")
	}
	if c.Analyzer.Workers < 0 {
		return fmt.Errorf("analyzer workers must not be negative")
	}
	for name, v := range map[string]int{
		"lookback_days":         c.Analyzer.LookbackDays,
		"top_denied_flows":      c.Analyzer.TopDeniedFlows,
		"policy_flow_limit":     c.Analyzer.PolicyFlowLimit,
		"max_detailed_findings": c.Analyzer.MaxDetailedFindings,
		"max_replacement_rules": c.Analyzer.MaxReplacementRules,
	} {
		if v < 0 {
			return fmt.Errorf("analyzer %s must not be negative", name)
		}
	}
	if c.Analyzer.MinDenyOccurrences < 0 {
		return fmt.Errorf("analyzer min_deny_occurrences must not be negative")
	}
	return nil
}

// Thresholds maps the settings onto the analyzer's threshold set.
func (c *Config) Thresholds() analyzer.Thresholds {
	return analyzer.Thresholds{
		LookbackDays:         c.Analyzer.LookbackDays,
		MinDenyOccurrences:   c.Analyzer.MinDenyOccurrences,
		TopDeniedFlows:       c.Analyzer.TopDeniedFlows,
		PolicyFlowLimit:      c.Analyzer.PolicyFlowLimit,
		MaxDetailedFindings:  c.Analyzer.MaxDetailedFindings,
		MaxReplacementRules:  c.Analyzer.MaxReplacementRules,
		ZombieSummarizeAfter: c.Analyzer.ZombieSummarizeAfter,
		ZombieBatchLimit:     c.Analyzer.ZombieBatchLimit,
	}
}
