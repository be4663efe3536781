// ABOUTME: Tests for configuration loading, overrides and validation
// ABOUTME: Uses temp files and t.Setenv so the user's environment is untouched
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6*time.Hour, cfg.Cache.NoteTTL)
	assert.Equal(t, "callbridge.db", filepath.Base(cfg.Database.Path))
	assert.Equal(t, "config.yaml", filepath.Base(DefaultPath()))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
cache:
  note_ttl: 30m
processors:
  workers: 4
handlers:
  cache_first_note: true
`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CALLBRIDGE_METRICS_ADDR=127.0.0.1:9464\n"), 0600))
	t.Setenv("CALLBRIDGE_LOG_FORMAT", "json")
	t.Setenv("CALLBRIDGE_PROCESSOR_WORKERS", "8")
	t.Cleanup(func() { _ = os.Unsetenv("CALLBRIDGE_METRICS_ADDR") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30*time.Minute, cfg.Cache.NoteTTL)
	assert.Equal(t, 8, cfg.Processors.Workers)
	assert.True(t, cfg.Handlers.CacheFirstNote)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
	assert.Equal(t, 64, cfg.Processors.QueueSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "log.level")

	require.NoError(t, os.WriteFile(path, []byte("log: [not a map"), 0600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"cache dir", func(c *Config) { c.Cache.Dir = "" }, "cache.dir"},
		{"note ttl", func(c *Config) { c.Cache.NoteTTL = 0 }, "cache.note_ttl"},
		{"workers", func(c *Config) { c.Processors.Workers = 0 }, "processors.workers"},
		{"nats subject", func(c *Config) { c.Processors.NATSURL = "nats://localhost:4222"; c.Processors.Subject = "" }, "processors.subject"},
		{"media reader", func(c *Config) { c.Handlers.MediaReaderURL = "reader" }, "media_reader_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := DefaultConfig()
	cfg.Cache.Dir = ""
	cfg.Cache.InMemory = true
	assert.NoError(t, cfg.Validate())
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Metrics.Addr = ":9464"
	require.NoError(t, cfg.SaveToFile(path))

	t.Chdir(t.TempDir())
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9464", loaded.Metrics.Addr)
}
