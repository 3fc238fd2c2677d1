package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config/chatx.yaml, no .env

	cfg := Load()

	assert.Equal(t, "http://localhost:8080/api/v1", cfg.APIBaseURL)
	assert.Equal(t, "/ws", cfg.WSPath)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2200*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.HealthInterval)
	assert.Equal(t, 20, cfg.UsersPageLimit)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`
api_base_url: https://chat.example.com/api/v1
ws_path: /push
http_timeout: 5
reconnect_delay_ms: 500
users_page_limit: 50
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "chatx.yaml"), yaml, 0o644))

	cfg := Load()

	assert.Equal(t, "https://chat.example.com/api/v1", cfg.APIBaseURL)
	assert.Equal(t, "/push", cfg.WSPath)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 50, cfg.UsersPageLimit)
	assert.Equal(t, 30*time.Second, cfg.HealthInterval, "unset keys keep their defaults")
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "chatx.yaml"),
		[]byte("api_base_url: https://from-yaml.example.com/api/v1\n"), 0o644))

	t.Setenv("CHATX_API_URL", "https://from-env.example.com/api/v1/")
	t.Setenv("CHATX_RECONNECT_DELAY_MS", "750")

	cfg := Load()

	assert.Equal(t, "https://from-env.example.com/api/v1", cfg.APIBaseURL, "env wins and trailing slash is trimmed")
	assert.Equal(t, 750*time.Millisecond, cfg.ReconnectDelay)
}

func TestBadValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHATX_HTTP_TIMEOUT", "not-a-number")
	t.Setenv("CHATX_USERS_PAGE_LIMIT", "-5")

	cfg := Load()

	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 20, cfg.UsersPageLimit, "non-positive limits are rejected")
}

func TestConfigPathEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	custom := filepath.Join(dir, "elsewhere.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("ws_path: /custom\n"), 0o644))
	t.Setenv("CONFIG_PATH", custom)

	cfg := Load()
	assert.Equal(t, "/custom", cfg.WSPath)
}
