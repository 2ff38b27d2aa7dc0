package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadAppliesDefaultsWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "an explicitly named missing file is an error")

	// The default search path with no file falls back to defaults.
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0, cfg.Server.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadReadsFile(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"logging": map[string]any{"level": "debug", "format": "json"},
		"server": map[string]any{
			"port":            9000,
			"max_connections": 128,
			"rate_limit":      map[string]any{"requests_per_second": 50, "burst": 100},
		},
		"store": map[string]any{
			"type":   "badger",
			"badger": map[string]any{"path": "/tmp/forchetta-test", "sync_writes": true},
		},
		"metrics": map[string]any{"enabled": true, "port": 9191},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 128, cfg.Server.MaxConnections)
	assert.Equal(t, float64(50), cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.Server.RateLimit.Burst)
	assert.Equal(t, "badger", cfg.Store.Type)
	assert.Equal(t, "/tmp/forchetta-test", cfg.Store.Badger["path"])
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"logging": map[string]any{"level": "info"},
	})

	t.Setenv("FORCHETTA_LOGGING_LEVEL", "ERROR")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "VERBOSE" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad store type", func(c *Config) { c.Store.Type = "postgres" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"backup without badger", func(c *Config) {
			c.Store.Type = "memory"
			c.Store.Backup.Enabled = true
		}},
		{"rate limit without burst", func(c *Config) {
			c.Server.RateLimit.RequestsPerSecond = 10
			c.Server.RateLimit.Burst = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tt.mutate(&cfg)
			assert.Error(t, Validate(&cfg))
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	assert.NoError(t, Validate(&cfg))
}

func TestCreateStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		s, err := CreateStore(&StoreConfig{Type: "memory"})
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.NoError(t, s.Close())
	})

	t.Run("badger", func(t *testing.T) {
		s, err := CreateStore(&StoreConfig{
			Type:   "badger",
			Badger: map[string]any{"path": t.TempDir()},
		})
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.NoError(t, s.Close())
	})

	t.Run("badger without path", func(t *testing.T) {
		_, err := CreateStore(&StoreConfig{Type: "badger", Badger: map[string]any{}})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := CreateStore(&StoreConfig{Type: "postgres"})
		assert.Error(t, err)
	})
}
