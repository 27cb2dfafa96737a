package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auditor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultSQLiteDSN, cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Analyzer.Workers)
}

func TestLoadFillsSQLiteDSN(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  driver: sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSQLiteDSN, cfg.Database.DSN)

	cfg, err = Load(writeConfig(t, "database:\n  driver: sqlite\n  dsn: custom.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Database.DSN)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: mysql
  dsn: "user:pass@tcp(db:3306)/auditor?parseTime=true"
logging:
  level: debug
  format: console
analyzer:
  lookback_days: 7
  min_deny_occurrences: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)

	th := cfg.Thresholds()
	assert.Equal(t, 7, th.LookbackDays)
	assert.Equal(t, int64(50), th.MinDenyOccurrences)
	// Unset thresholds stay zero here; the analyzer fills its defaults.
	assert.Zero(t, th.TopDeniedFlows)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown driver", "database:\n  driver: oracle\n"},
		{"mysql without dsn", "database:\n  driver: mysql\n"},
		{"negative lookback", "analyzer:\n  lookback_days: -1\n"},
		{"bad yaml", "database: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
