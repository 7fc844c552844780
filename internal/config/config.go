package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"pricewatch/internal/gateway/binance"
)

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type FetchConfig struct {
	ChunkSpan             time.Duration `yaml:"chunk_span"`
	Limit                 int           `yaml:"limit"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout"`
	ReadTimeout           time.Duration `yaml:"read_timeout"`
	WindowRetryBudget     int           `yaml:"window_retry_budget"`
	ConsecutiveErrorLimit int           `yaml:"consecutive_error_limit"`
	TotalRetryLimit       int           `yaml:"total_retry_limit"`
	MinBackoff            time.Duration `yaml:"min_backoff"`
	MaxBackoff            time.Duration `yaml:"max_backoff"`
	CourtesyDelay         time.Duration `yaml:"courtesy_delay"`
	ProxyURL              string        `yaml:"proxy_url"`
}

type AIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Database string `yaml:"database"`
	Profiles string `yaml:"profiles"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Fetch    FetchConfig    `yaml:"fetch"`
	AI       AIConfig       `yaml:"ai"`
	Telegram TelegramConfig `yaml:"telegram"`
	Output   OutputConfig   `yaml:"output"`
}

// Load reads a YAML config file, fills defaults and pulls secrets from the
// environment. A missing file is fine: defaults plus environment apply.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v := viper.New()
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
			}
			if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
				dc.TagName = "yaml"
				dc.WeaklyTypedInput = true
				dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
			}); err != nil {
				return nil, fmt.Errorf("parsing config failed: %w", err)
			}
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets the environment supply or override the secrets so they never
// have to live in the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("PRICEWATCH_PROXY"); v != "" {
		c.Fetch.ProxyURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4-turbo"
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.2
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 2500
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 90 * time.Second
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Output.Database == "" {
		c.Output.Database = "data/pricewatch.db"
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai temperature %v out of range [0, 2]", c.AI.Temperature)
	}
	if c.Fetch.Limit < 0 || c.Fetch.Limit > 1000 {
		return fmt.Errorf("fetch limit %d out of range [0, 1000]", c.Fetch.Limit)
	}
	return nil
}

// BinanceConfig maps the fetch section onto the fetcher's own config type.
func (c *Config) BinanceConfig() binance.Config {
	return binance.Config{
		ProxyURL:              c.Fetch.ProxyURL,
		ConnectTimeout:        c.Fetch.ConnectTimeout,
		ReadTimeout:           c.Fetch.ReadTimeout,
		ChunkSpan:             c.Fetch.ChunkSpan,
		Limit:                 c.Fetch.Limit,
		WindowRetryBudget:     c.Fetch.WindowRetryBudget,
		ConsecutiveErrorLimit: c.Fetch.ConsecutiveErrorLimit,
		TotalRetryLimit:       c.Fetch.TotalRetryLimit,
		MinBackoff:            c.Fetch.MinBackoff,
		MaxBackoff:            c.Fetch.MaxBackoff,
		CourtesyDelay:         c.Fetch.CourtesyDelay,
	}
}
