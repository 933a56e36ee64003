package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hospops/internal/apiclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Setenv(EnvReceptionBase, "")
	t.Setenv(EnvAdminBase, "")
	t.Setenv(EnvConfigPath, "")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
reception_api:
  base_url: http://reception.local/
admin_api:
  base_url: http://admin.local
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://reception.local", cfg.ReceptionAPI.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.CacheTTL())
	assert.Equal(t, 500*time.Millisecond, cfg.GuardWindow())
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce())
	assert.Equal(t, time.Minute, cfg.RedisRecheck())
	assert.Equal(t, "info", cfg.Log.Level)

	cc := cfg.Client("admin", cfg.AdminAPI)
	assert.Equal(t, 10*time.Second, cc.Timeout)
	assert.Equal(t, "admin", cc.Name)
}

func TestLoadExpandsEnvAndOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOSPOPS_TEST_KEY", "secret")
	t.Setenv(EnvAdminBase, "http://override.local")
	path := writeConfig(t, `
reception_api:
  base_url: http://reception.local
  api_key: ${HOSPOPS_TEST_KEY}
admin_api:
  base_url: http://admin.local
cache:
  ttl_seconds: 3
  guard_window_ms: 200
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.ReceptionAPI.APIKey)
	assert.Equal(t, "http://override.local", cfg.AdminAPI.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.CacheTTL())
	assert.Equal(t, 200*time.Millisecond, cfg.GuardWindow())
}

func TestLoadWithoutFileUsesEnvironment(t *testing.T) {
	t.Setenv(EnvReceptionBase, "http://r.local")
	t.Setenv(EnvAdminBase, "http://a.local")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://r.local", cfg.ReceptionAPI.BaseURL)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "admin_api:\n  base_url: http://a\n"))
	assert.ErrorContains(t, err, "reception_api.base_url")

	_, err = Load(writeConfig(t, `
reception_api: {base_url: http://r}
admin_api: {base_url: http://a}
telegram: {bot_token: abc}
`))
	assert.ErrorContains(t, err, "chat_id")
}

func TestWatchAppliesTunables(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
reception_api: {base_url: http://r}
admin_api: {base_url: http://a}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	client := apiclient.New(cfg.Client("reception", cfg.ReceptionAPI), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan *Config, 1)
	require.NoError(t, Watch(ctx, path, 10*time.Millisecond, nil, func(c *Config) {
		ApplyTunables(c, client)
		updates <- c
	}))

	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.WriteFile(path, []byte(`
reception_api: {base_url: http://r}
admin_api: {base_url: http://a}
cache: {ttl_seconds: 42, guard_window_ms: 900}
`), 0o600))
	require.NoError(t, os.Chtimes(path, later, later))

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("config change not picked up")
	}
	assert.Equal(t, 42*time.Second, client.CacheTTL())
	assert.Equal(t, 900*time.Millisecond, client.Guard().Window())
}

func TestRemindersNeedTelegram(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, `
reception_api: {base_url: http://r}
admin_api: {base_url: http://a}
reminders: {enabled: true}
`))
	assert.ErrorContains(t, err, "reminders need telegram")
}
