package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, StoreDriverBolt, cfg.Store.Driver)
	assert.Equal(t, "berita.db", cfg.Store.BoltPath)
	assert.Zero(t, cfg.Ingest.EarlyExitThreshold)
	assert.Empty(t, cfg.Publishers.File)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", loc.String())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: DEBUG
  format: console
store:
  driver: postgres
  postgres_dsn: postgres://localhost/berita
ingest:
  early_exit_threshold: 3
`), 0o600))

	t.Setenv("HARVESTER_INGEST_EARLY_EXIT_THRESHOLD", "5")
	t.Setenv("HARVESTER_METRICS_ADDR", " :9090 ")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/berita", cfg.Store.PostgresDSN)
	assert.Equal(t, 5, cfg.Ingest.EarlyExitThreshold)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HARVESTER_STORE_BOLT_PATH=from-dotenv.db\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("HARVESTER_STORE_BOLT_PATH") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.Store.BoltPath)
}

func TestLoad_MissingFile(t *testing.T) {
	chdirTemp(t)
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Log:    LogConfig{Level: "info", Format: "json"},
			Store:  StoreConfig{Driver: StoreDriverBolt, BoltPath: "x.db"},
			Ingest: IngestConfig{Timezone: "Asia/Jakarta"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, ErrUnknownStoreDriver},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = StoreDriverPostgres }, ErrMissingPostgresDSN},
		{"bolt without path", func(c *Config) { c.Store.BoltPath = "" }, ErrMissingBoltPath},
		{"negative early exit", func(c *Config) { c.Ingest.EarlyExitThreshold = -1 }, ErrNegativeEarlyExit},
		{"bad timezone", func(c *Config) { c.Ingest.Timezone = "Mars/Olympus" }, ErrInvalidTimezone},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())
}
