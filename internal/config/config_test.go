package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "leadmap.db", cfg.Store.SQLitePath)
	assert.Equal(t, "leads", cfg.PostgREST.Table)
	assert.Equal(t, 1000, cfg.Ingest.PageSize)
	assert.Equal(t, 300, cfg.Ingest.TimeoutSecs)
	assert.Equal(t, 2, cfg.Ingest.RetryCount)
	assert.True(t, cfg.Analysis.NormalizeMarkets)
	assert.Equal(t, 10, cfg.Analysis.MinMarketSize)
	assert.InDelta(t, 5.0, cfg.Analysis.MaxCoveragePercent, 0.001)
	assert.InDelta(t, 1.0, cfg.Analysis.VeryLowPercent, 0.001)
	assert.InDelta(t, 3.0, cfg.Analysis.LowPercent, 0.001)
	assert.InDelta(t, 1.0, cfg.Analysis.RegionGapPercent, 0.001)
	assert.Equal(t, 25, cfg.Analysis.TopN)
	require.Len(t, cfg.Analysis.Watched, 6)
	assert.Equal(t, "EV Charging Installation", cfg.Analysis.Watched[0].Name)
	assert.InDelta(t, 27.11, cfg.Analysis.Watched[0].GrowthWeight, 0.001)
	assert.Equal(t, []string{"EV Charging Installation", "Home Battery Storage"}, cfg.Analysis.Hot)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 4, cfg.Anthropic.Concurrency)
	assert.InDelta(t, 0.85, cfg.Dedupe.NameSimilarity, 0.001)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: /tmp/leads.db
analysis:
  min_market_size: 50
  prioritize_emerging: true
  hot: ["EV Charging Installation"]
  watched:
    - name: EV Charging Installation
      growth_weight: 27.11
    - name: Solar Panel Installation
      growth_weight: 12.5
  regions:
    TX: Texas Triangle
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/leads.db", cfg.Store.SQLitePath)
	assert.Equal(t, 50, cfg.Analysis.MinMarketSize)
	assert.True(t, cfg.Analysis.PrioritizeEmerging)
	assert.Equal(t, []string{"EV Charging Installation"}, cfg.Analysis.Hot)
	require.Len(t, cfg.Analysis.Watched, 2)
	assert.Equal(t, "EV Charging Installation", cfg.Analysis.Watched[0].Name)
	assert.InDelta(t, 27.11, cfg.Analysis.Watched[0].GrowthWeight, 0.001)
	// viper lower-cases map keys; region.NewTable upper-cases them again.
	assert.Equal(t, "Texas Triangle", cfg.Analysis.Regions["tx"])
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.Ingest.PageSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADMAP_STORE_DRIVER", "postgrest")
	t.Setenv("LEADMAP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgrest", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LEADMAP_POSTGREST_URL=https://example.supabase.co/rest/v1\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("LEADMAP_POSTGREST_URL") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://example.supabase.co/rest/v1", cfg.PostgREST.URL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Ingest.PageSize = 1000
	cfg.Anthropic.Concurrency = 4
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateStore(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"postgres ok", func(c *Config) { c.Store.DatabaseURL = "postgres://localhost/leads" }, ""},
		{"postgres missing url", func(c *Config) {}, "store.database_url is required"},
		{"sqlite ok", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.SQLitePath = "x.db" }, ""},
		{"sqlite missing path", func(c *Config) { c.Store.Driver = "sqlite" }, "store.sqlite_path is required"},
		{"postgrest ok", func(c *Config) {
			c.Store.Driver = "postgrest"
			c.PostgREST.URL = "https://x"
			c.PostgREST.Table = "leads"
		}, ""},
		{"postgrest missing url", func(c *Config) { c.Store.Driver = "postgrest"; c.PostgREST.Table = "leads" }, "postgrest.url is required"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver must be"},
		{"bad page size", func(c *Config) {
			c.Store.DatabaseURL = "postgres://localhost/leads"
			c.Ingest.PageSize = 0
		}, "ingest.page_size must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("store")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAnthropic_MissingKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("anthropic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestNewValidationError_Empty(t *testing.T) {
	assert.NoError(t, NewValidationError("analysis", nil))

	err := NewValidationError("analysis", []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, "config: invalid analysis configuration: a; b", err.Error())
}
