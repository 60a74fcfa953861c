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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults fill missing fields", func(t *testing.T) {
		path := writeConfig(t, `
upstream:
  base_url: https://api-v3.mbta.com
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 6379, cfg.Redis.Port)
		assert.Equal(t, 15, cfg.Polling.VehiclesSeconds)
		assert.Equal(t, 30, cfg.Polling.PredictionsSeconds)
		assert.Equal(t, 6, cfg.Polling.StaticHours)
	})

	t.Run("explicit values survive", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9000
upstream:
  base_url: https://api-v3.mbta.com
  max_requests: 20
polling:
  vehicles_seconds: 5
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 20, cfg.Upstream.MaxRequests)
		assert.Equal(t, 5, cfg.Polling.VehiclesSeconds)
	})

	t.Run("missing base url fails validation", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9000
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("API_PORT", "7070")
		t.Setenv("UPSTREAM_API_KEY", "env-key")
		t.Setenv("REDIS_HOST", "redis.internal")
		t.Setenv("REDIS_TLS_ENABLED", "true")

		path := writeConfig(t, `
upstream:
  base_url: https://api-v3.mbta.com
  api_key: file-key
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "env-key", cfg.Upstream.APIKey)
		assert.True(t, cfg.Redis.Enabled, "setting a host enables the remote cache")
		assert.Equal(t, "redis.internal", cfg.Redis.Host)
		assert.True(t, cfg.Redis.TLS)
	})
}
