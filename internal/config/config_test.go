package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "memory", cfg.Replay.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Replay.TTL.Std())
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL.Std())
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL.Std())
	assert.Equal(t, []string{"shopopti-extension"}, cfg.Gateway.AllowedExtensionIDs)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
databasePath: /var/lib/gateway.db
gateway:
  minExtensionVersion: "6.0.0"
  allowedOrigins:
    - https://app.shopopti.io
replay:
  backend: sqlite
  ttl: 30m
idempotency:
  waitTimeout: 2s
actions:
  IMPORT_PRODUCT:
    limit: 5
    window: 10m
ai:
  endpoint: https://api.openai.com/v1/chat/completions
  model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/var/lib/gateway.db", cfg.DatabasePath)
	assert.Equal(t, "6.0.0", cfg.Gateway.MinExtensionVersion)
	// Untouched defaults survive a partial file.
	assert.Equal(t, "5.8.1", cfg.Gateway.LatestExtensionVersion)
	assert.Equal(t, "sqlite", cfg.Replay.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Replay.TTL.Std())
	assert.Equal(t, 2*time.Second, cfg.Idempotency.WaitTimeout.Std())
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL.Std())

	budget := cfg.Actions["IMPORT_PRODUCT"]
	assert.Equal(t, 5, budget.Limit)
	assert.Equal(t, 10*time.Minute, budget.Window.Std())
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "replay:\n  ttl: soon\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*Config){
		"empty listen":        func(c *Config) { c.Listen = "" },
		"empty database path": func(c *Config) { c.DatabasePath = "" },
		"unknown backend":     func(c *Config) { c.Replay.Backend = "redis" },
		"zero replay ttl":     func(c *Config) { c.Replay.TTL = 0 },
		"zero idem ttl":       func(c *Config) { c.Idempotency.TTL = 0 },
		"zero wait timeout":   func(c *Config) { c.Idempotency.WaitTimeout = 0 },
		"zero budget limit": func(c *Config) {
			c.Actions = map[string]ActionBudget{"IMPORT_PRODUCT": {Limit: 0, Window: Duration(time.Hour)}}
		},
		"zero budget window": func(c *Config) {
			c.Actions = map[string]ActionBudget{"IMPORT_PRODUCT": {Limit: 5}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
