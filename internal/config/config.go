package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderConfig configures one keyed REST data source.
type ProviderConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute" validate:"gte=0"`
}

// Config holds all application configuration.
type Config struct {
	Logging struct {
		Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Addr        string   `yaml:"addr" validate:"required"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Market struct {
		DefaultCountry string `yaml:"default_country" validate:"oneof=US IN GB CA AU DE JP"`
		Timezone       string `yaml:"timezone"`
	} `yaml:"market"`
	Providers struct {
		AlphaVantage ProviderConfig `yaml:"alphavantage"`
		Finnhub      ProviderConfig `yaml:"finnhub"`
		Yahoo        ProviderConfig `yaml:"yahoo"`
		NewsAPI      ProviderConfig `yaml:"newsapi"`
		Marketaux    ProviderConfig `yaml:"marketaux"`
		ExchangeRate ProviderConfig `yaml:"exchangerate"`
	} `yaml:"providers"`
	Chat struct {
		Provider    string  `yaml:"provider" validate:"oneof=none openai anthropic gemini"`
		APIKey      string  `yaml:"api_key" validate:"required_unless=Provider none"`
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
		MaxTokens   int     `yaml:"max_tokens" validate:"gt=0"`
	} `yaml:"chat"`
	Store struct {
		Driver string `yaml:"driver" validate:"oneof=sqlite postgres badger"`
		DSN    string `yaml:"dsn" validate:"required"`
	} `yaml:"store"`
	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`
	Redis struct {
		Addr               string `yaml:"addr"`
		Password           string `yaml:"password"`
		DB                 int    `yaml:"db" validate:"gte=0"`
		RateCacheTTLSecond int    `yaml:"rate_cache_ttl_seconds" validate:"gte=0"`
	} `yaml:"redis"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Schedule struct {
		DigestCron    string   `yaml:"digest_cron"`
		RefreshCron   string   `yaml:"refresh_cron"`
		DigestSymbols []string `yaml:"digest_symbols"`
		RefreshUsers  []string `yaml:"refresh_users"`
	} `yaml:"schedule"`
	Brokerage struct {
		SimulateLatency bool `yaml:"simulate_latency"`
	} `yaml:"brokerage"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds" validate:"gte=0"`
	Proxy              string `yaml:"proxy"`
}

// Load reads .env, then the YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Providers.AlphaVantage.APIKey, "ALPHAVANTAGE_API_KEY")
	setString(&cfg.Providers.Finnhub.APIKey, "FINNHUB_API_KEY")
	setString(&cfg.Providers.NewsAPI.APIKey, "NEWSAPI_API_KEY")
	setString(&cfg.Providers.Marketaux.APIKey, "MARKETAUX_API_KEY")
	setString(&cfg.Chat.Provider, "CHAT_PROVIDER")
	setString(&cfg.Chat.APIKey, "CHAT_API_KEY")
	setString(&cfg.Chat.BaseURL, "CHAT_BASE_URL")
	setString(&cfg.Chat.Model, "CHAT_MODEL")
	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&cfg.Proxy, "HTTPS_PROXY")
	setString(&cfg.Store.Driver, "STORE_DRIVER")
	setString(&cfg.Store.DSN, "STORE_DSN")
	setString(&cfg.History.Path, "HISTORY_PATH")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Server.Addr, "HTTP_ADDR")
	setString(&cfg.Market.DefaultCountry, "DEFAULT_COUNTRY")

	if v := os.Getenv("DIGEST_SYMBOLS"); v != "" {
		cfg.Schedule.DigestSymbols = splitList(v)
	}
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPTimeoutSeconds = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Market.DefaultCountry == "" {
		cfg.Market.DefaultCountry = "US"
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = "Local"
	}

	p := &cfg.Providers
	if p.AlphaVantage.BaseURL == "" {
		p.AlphaVantage.BaseURL = "https://www.alphavantage.co"
	}
	if p.AlphaVantage.RequestsPerMinute == 0 {
		p.AlphaVantage.RequestsPerMinute = 5
	}
	if p.Finnhub.BaseURL == "" {
		p.Finnhub.BaseURL = "https://finnhub.io/api/v1"
	}
	if p.Finnhub.RequestsPerMinute == 0 {
		p.Finnhub.RequestsPerMinute = 60
	}
	if p.Yahoo.BaseURL == "" {
		p.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	}
	if p.NewsAPI.BaseURL == "" {
		p.NewsAPI.BaseURL = "https://newsapi.org/v2"
	}
	if p.Marketaux.BaseURL == "" {
		p.Marketaux.BaseURL = "https://api.marketaux.com/v1"
	}
	if p.ExchangeRate.BaseURL == "" {
		p.ExchangeRate.BaseURL = "https://api.exchangerate-api.com"
	}

	if cfg.Chat.Provider == "" {
		if cfg.Chat.APIKey != "" {
			cfg.Chat.Provider = "openai"
		} else {
			cfg.Chat.Provider = "none"
		}
	}
	if cfg.Chat.Provider == "openai" && cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.Chat.Model == "" {
		switch cfg.Chat.Provider {
		case "anthropic":
			cfg.Chat.Model = "claude-sonnet-4-20250514"
		case "gemini":
			cfg.Chat.Model = "gemini-2.0-flash"
		default:
			cfg.Chat.Model = "deepseek-chat"
		}
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.3
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 2048
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.DSN == "" {
		switch cfg.Store.Driver {
		case "badger":
			cfg.Store.DSN = "data/badger"
		default:
			cfg.Store.DSN = "data/stockpulse.db"
		}
	}

	if cfg.Schedule.DigestCron == "" {
		cfg.Schedule.DigestCron = "0 0 8 * * 1-5"
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 */30 * * * *"
	}
	if len(cfg.Schedule.DigestSymbols) == 0 {
		cfg.Schedule.DigestSymbols = []string{"AAPL", "MSFT", "NVDA"}
	}
	if cfg.HTTPTimeoutSeconds == 0 {
		cfg.HTTPTimeoutSeconds = 30
	}
}

// Validate checks field constraints declared on the struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// TelegramEnabled reports whether digest and command polling can run.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
