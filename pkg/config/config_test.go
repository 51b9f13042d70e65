package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, ":8000", cfg.Web.Listen)
	assert.Equal(t, "discord", cfg.Chat.Platform)
	assert.Empty(t, cfg.Resync.Cron)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rulemirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
redis:
  url: redis://redis:6379/2
chat:
  platform: telegram
  telegram:
    token: tg-token
resync:
  cron: "0 * * * *"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis://redis:6379/2", cfg.Redis.URL)
	assert.Equal(t, "telegram", cfg.Chat.Platform)
	assert.Equal(t, "tg-token", cfg.Chat.Telegram.Token)
	assert.Equal(t, "0 * * * *", cfg.Resync.Cron)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rulemirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	t.Setenv("RULEMIRROR_LOG_LEVEL", "warn")
	t.Setenv("RULEMIRROR_GITHUB_WEBHOOK_SECRET", "shh")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "shh", cfg.GitHub.WebhookSecret)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rulemirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: ["), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
