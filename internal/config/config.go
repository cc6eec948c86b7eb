// Package config loads scanner configuration from a YAML file, an optional
// .env file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"breakout-scanner/internal/markethours"
	"breakout-scanner/internal/scanner"
)

// Provider names accepted in Config.Provider.
const (
	ProviderYahoo   = "yahoo"
	ProviderBinance = "binance"
	ProviderSQLite  = "sqlite"
	ProviderAngel   = "angelone"
)

// Config holds all application configuration.
type Config struct {
	Symbols  []string `yaml:"symbols"`
	Provider string   `yaml:"provider"`
	Calendar string   `yaml:"calendar"`
	Holidays []string `yaml:"holidays"`

	Engine scanner.EngineConfig `yaml:"engine"`

	Scan struct {
		Concurrency int           `yaml:"concurrency"`
		Cron        string        `yaml:"cron"`
		Timeout     time.Duration `yaml:"timeout"`
		RunOnStart  bool          `yaml:"run_on_start"`
	} `yaml:"scan"`

	Yahoo struct {
		BaseURL        string `yaml:"base_url"`
		Range          string `yaml:"range"`
		RequestsPerSec int    `yaml:"requests_per_sec"`
	} `yaml:"yahoo"`

	Binance struct {
		BaseURL string `yaml:"base_url"`
		Limit   int    `yaml:"limit"`
	} `yaml:"binance"`

	Angel struct {
		APIKey     string            `yaml:"api_key"` // empty disables the provider
		ClientCode string            `yaml:"client_code"`
		Password   string            `yaml:"password"`
		TOTPSecret string            `yaml:"totp_secret"`
		Exchange   string            `yaml:"exchange"`
		Days       int               `yaml:"days"`
		Tokens     map[string]string `yaml:"tokens"` // trading symbol -> symbol token
	} `yaml:"angel"`

	Redis struct {
		Addr     string        `yaml:"addr"` // empty disables the cache
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	SQLite struct {
		Path   string `yaml:"path"`
		Record bool   `yaml:"record"` // archive every live fetch
		Limit  int    `yaml:"limit"`  // bars read per symbol in offline mode
	} `yaml:"sqlite"`

	Alerts struct {
		TelegramBotToken string `yaml:"telegram_bot_token"`
		TelegramChatID   string `yaml:"telegram_chat_id"`
		WebhookURL       string `yaml:"webhook_url"`
	} `yaml:"alerts"`

	API struct {
		Addr       string `yaml:"addr"`
		TOTPSecret string `yaml:"totp_secret"` // empty disables the scan guard
	} `yaml:"api"`

	MetricsAddr string `yaml:"metrics_addr"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		Provider: ProviderYahoo,
		Calendar: "nse",
		Engine:   scanner.DefaultEngineConfig(),
	}
	cfg.Scan.Concurrency = 8
	cfg.Scan.Cron = "5 16 * * 1-5"
	cfg.Scan.Timeout = 5 * time.Minute
	cfg.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	cfg.Yahoo.Range = "2y"
	cfg.Yahoo.RequestsPerSec = 5
	cfg.Binance.BaseURL = "https://api.binance.com"
	cfg.Binance.Limit = 300
	cfg.Angel.Exchange = "NSE"
	cfg.Angel.Days = 400
	cfg.Redis.TTL = 30 * time.Minute
	cfg.SQLite.Path = "data/bars.db"
	cfg.SQLite.Limit = 500
	cfg.API.Addr = ":8080"
	cfg.MetricsAddr = ":9090"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file or .env is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("config file not found, using defaults")
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SCAN_SYMBOLS"); v != "" {
		c.Symbols = scanner.ParseSymbols(v)
	}
	setString(&c.Provider, "DATA_PROVIDER")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.SQLite.Path, "SQLITE_PATH")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.MetricsAddr, "METRICS_ADDR")
	setString(&c.API.Addr, "HTTP_ADDR")
	setString(&c.Scan.Cron, "SCAN_CRON")
	setString(&c.Alerts.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Alerts.TelegramChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Alerts.WebhookURL, "WEBHOOK_URL")
	setString(&c.API.TOTPSecret, "API_TOTP_SECRET")
	setString(&c.Angel.APIKey, "ANGEL_API_KEY")
	setString(&c.Angel.ClientCode, "ANGEL_CLIENT_CODE")
	setString(&c.Angel.Password, "ANGEL_PASSWORD")
	setString(&c.Angel.TOTPSecret, "ANGEL_TOTP_SECRET")

	if err := setInt(&c.Scan.Concurrency, "SCAN_CONCURRENCY"); err != nil {
		return err
	}
	return setInt(&c.Engine.MinLookback, "MIN_LOOKBACK")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderYahoo, ProviderBinance, ProviderSQLite, ProviderAngel:
	default:
		return fmt.Errorf("provider: unknown provider %q", c.Provider)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be positive, got %d", c.Scan.Concurrency)
	}
	if c.Scan.Timeout <= 0 {
		return fmt.Errorf("scan.timeout must be positive")
	}
	if c.Provider == ProviderSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required for the sqlite provider")
	}
	if c.Provider == ProviderAngel && c.Angel.APIKey == "" {
		return fmt.Errorf("angel.api_key is required for the angelone provider")
	}
	if c.Angel.APIKey != "" && (c.Angel.ClientCode == "" || c.Angel.TOTPSecret == "") {
		return fmt.Errorf("angel: client_code and totp_secret are required with an api_key")
	}
	if c.Alerts.TelegramBotToken != "" {
		if _, err := c.TelegramChatID(); err != nil {
			return err
		}
	}
	if _, err := c.MarketCalendar(); err != nil {
		return err
	}
	return nil
}

// TelegramChatID parses the configured chat ID.
func (c *Config) TelegramChatID() (int64, error) {
	id, err := strconv.ParseInt(c.Alerts.TelegramChatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("alerts.telegram_chat_id: %w", err)
	}
	return id, nil
}

// MarketCalendar builds the configured exchange calendar with extra holidays.
func (c *Config) MarketCalendar() (*markethours.Calendar, error) {
	cal, err := markethours.ByName(c.Calendar)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	if err := cal.AddHolidays(c.Holidays...); err != nil {
		return nil, fmt.Errorf("holidays: %w", err)
	}
	return cal, nil
}
