package config

import (
	"os"
	"path/filepath"
	"testing"

	"fairytales/internal/usage"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T) Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := load(t)

	assert.Equal(t, "auto", cfg.TTS.Type)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.Generation.ChatModel)
	assert.Equal(t, "gemini-2.5-flash", cfg.Generation.OneShotModel)
	assert.Equal(t, "file", cfg.Usage.Store)
	assert.Equal(t, usage.DefaultLimits(), cfg.Limits())

	account, err := cfg.UsageAccount()
	require.NoError(t, err)
	assert.Equal(t, usage.StatusGuest, account.Status)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FAIRYTALES_GENERATION_PROVIDER", "mock")
	t.Setenv("FAIRYTALES_ACCOUNT_STATUS", "Subscribed")
	t.Setenv("FAIRYTALES_ACCOUNT_TIER", "tier2")
	t.Setenv("FAIRYTALES_TTS_API_KEY", "secret")
	cfg := load(t)

	assert.Equal(t, "mock", cfg.GenerationConfig().Type)
	assert.Equal(t, "secret", cfg.TTSConfig().APIKey)

	account, err := cfg.UsageAccount()
	require.NoError(t, err)
	assert.Equal(t, usage.StatusSubscribed, account.Status)
	assert.Equal(t, usage.Tier2, account.Tier)
}

func TestConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".fairytales")
	require.NoError(t, os.MkdirAll(dir, 0755))
	yaml := `
generation:
  provider: openai
  base_url: http://localhost:11434/v1
usage:
  store: redis
  guest_simple: 5
  daily:
    tier2: 10
account:
  status: owner
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fairytales.yaml"), []byte(yaml), 0644))
	cfg := load(t)

	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Generation.BaseURL)
	assert.Equal(t, "redis", cfg.Usage.Store)
	assert.Equal(t, "localhost:6379", cfg.Usage.Redis.Addr)

	limits := cfg.Limits()
	assert.Equal(t, 5, limits.GuestSimple)
	assert.Equal(t, 3, limits.RegisteredSimple)
	assert.Equal(t, 10, limits.DailyLimit(usage.Tier2))
	assert.Equal(t, 3, limits.DailyLimit(usage.Tier1))

	account, err := cfg.UsageAccount()
	require.NoError(t, err)
	assert.Equal(t, usage.StatusOwner, account.Status)
}

func TestUnknownAccountStatus(t *testing.T) {
	var cfg Config
	cfg.Account.Status = "admin"
	_, err := cfg.UsageAccount()
	assert.Error(t, err)
}
