package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "US", cfg.Market.DefaultCountry)
	assert.Equal(t, 5, cfg.Providers.AlphaVantage.RequestsPerMinute)
	assert.Equal(t, "none", cfg.Chat.Provider)
	assert.Equal(t, "deepseek-chat", cfg.Chat.Model)
	assert.InDelta(t, 0.3, cfg.Chat.Temperature, 1e-9)
	assert.Equal(t, 2048, cfg.Chat.MaxTokens)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/stockpulse.db", cfg.Store.DSN)
	assert.Zero(t, cfg.Redis.RateCacheTTLSecond)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  alphavantage:
    api_key: from-file
store:
  driver: badger
`), 0o644))

	t.Setenv("ALPHAVANTAGE_API_KEY", "from-env")
	t.Setenv("CHAT_API_KEY", "sk-test")
	t.Setenv("DIGEST_SYMBOLS", "tsla, amzn ,")
	t.Setenv("HISTORY_PATH", "/var/lib/stockpulse/history.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Providers.AlphaVantage.APIKey)
	assert.Equal(t, "badger", cfg.Store.Driver)
	assert.Equal(t, "data/badger", cfg.Store.DSN)
	assert.Equal(t, "openai", cfg.Chat.Provider)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.Chat.BaseURL)
	assert.Equal(t, []string{"TSLA", "AMZN"}, cfg.Schedule.DigestSymbols)
	assert.Equal(t, "/var/lib/stockpulse/history.db", cfg.History.Path)
	require.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FINNHUB_API_KEY=dotenv-key\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("FINNHUB_API_KEY") })

	cfg, err := Load(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Providers.Finnhub.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad country", func(c *Config) { c.Market.DefaultCountry = "FR" }, true},
		{"chat provider without key", func(c *Config) { c.Chat.Provider = "anthropic" }, true},
		{"chat provider with key", func(c *Config) { c.Chat.Provider = "gemini"; c.Chat.APIKey = "k" }, false},
		{"unknown store driver", func(c *Config) { c.Store.Driver = "mongo" }, true},
		{"telegram token without chat", func(c *Config) { c.Telegram.BotToken = "t" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			applyDefaults(c)
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
