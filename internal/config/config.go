package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"AlphaPulse/internal/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken    string        `yaml:"bot_token"`
		ChatID      string        `yaml:"chat_id"`
		PollTimeout time.Duration `yaml:"poll_timeout" default:"30s"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo vstrader mock"`
		BaseURL  string        `yaml:"base_url"`
		APIKey   string        `yaml:"api_key"`
		Timeout  time.Duration `yaml:"timeout" default:"15s" validate:"gt=0"`
	} `yaml:"data_source"`
	Market struct {
		DefaultSuffix   string `yaml:"default_suffix" default:".TW" validate:"required,startswith=."`
		HistoryPeriod   string `yaml:"history_period" default:"6mo" validate:"oneof=1mo 3mo 6mo 1y 2y 5y"`
		HistoryInterval string `yaml:"history_interval" default:"1d" validate:"oneof=1d 1wk"`
		NewsLimit       int    `yaml:"news_limit" default:"5" validate:"min=1,max=5"`
		RefreshWorkers  int    `yaml:"refresh_workers" default:"4" validate:"min=1,max=32"`
		// Analysis sessions idle longer than SessionTTL are forgotten.
		SessionTTL  time.Duration `yaml:"session_ttl" default:"30m" validate:"gt=0"`
		MaxSessions int           `yaml:"max_sessions" default:"10000" validate:"min=1"`
	} `yaml:"market"`
	Chart struct {
		Width  int `yaml:"width" default:"1000" validate:"min=200"`
		Height int `yaml:"height" default:"600" validate:"min=120"`
	} `yaml:"chart"`
	Schedule struct {
		DigestEnabled bool   `yaml:"digest_enabled"`
		DigestCron    string `yaml:"digest_cron" default:"0 30 13 * * 1-5"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/alphapulse.db"`
	} `yaml:"database"`
	Cache struct {
		Backend         string        `yaml:"backend" default:"memory" validate:"oneof=none memory redis"`
		MaxItems        int           `yaml:"max_items" default:"1000" validate:"min=1"`
		QuoteTTL        time.Duration `yaml:"quote_ttl" default:"20s"`
		FundamentalsTTL time.Duration `yaml:"fundamentals_ttl" default:"6h"`
		NewsTTL         time.Duration `yaml:"news_ttl" default:"10m"`
		HistoryTTL      time.Duration `yaml:"history_ttl" default:"15m"`
		Redis           struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size" default:"10"`
			Prefix   string `yaml:"prefix" default:"alphapulse"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Server struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	} `yaml:"server"`
	Log   logger.Config `yaml:"log"`
	Proxy string        `yaml:"proxy"`
}

var validate = validator.New()

// Load applies struct defaults, reads the YAML file (a missing file is not an
// error), then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("VSTRADER_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("VSTRADER_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Backend = "redis"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
		c.Server.Enabled = true
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DataSource.Provider == "vstrader" && c.DataSource.BaseURL == "" {
		return fmt.Errorf("data_source.base_url is required for the vstrader provider")
	}
	if c.Schedule.DigestEnabled {
		if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).
			Parse(c.Schedule.DigestCron); err != nil {
			return fmt.Errorf("schedule.digest_cron: %w", err)
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when the digest is enabled")
		}
	}
	return nil
}

// ValidateTelegram checks the fields the bot needs.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	return nil
}
