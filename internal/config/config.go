package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"IchimokuScanner/internal/history"
	"IchimokuScanner/internal/scanner"
)

// ErrConfig is wrapped by every validation failure.
var ErrConfig = errors.New("invalid configuration")

// DefaultPath is read when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Scan struct {
		Timeframe         string        `yaml:"timeframe"`
		Period            string        `yaml:"period"`
		MinGapPct         *float64      `yaml:"min_gap_pct"`
		ProximityLimitPct *float64      `yaml:"proximity_limit_pct"`
		FastWindow        int           `yaml:"fast_window"`
		SlowWindow        int           `yaml:"slow_window"`
		MinDataPoints     int           `yaml:"min_data_points"`
		Workers           int           `yaml:"workers"`
		FetchTimeout      time.Duration `yaml:"fetch_timeout"`
		ProgressEvery     int           `yaml:"progress_every"`
	} `yaml:"scan"`
	Universe struct {
		Index    string        `yaml:"index"`
		URL      string        `yaml:"url"`
		Symbols  []string      `yaml:"symbols"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"universe"`
	DataSource struct {
		Provider string `yaml:"provider"`
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"data_source"`
	History struct {
		Backend    string `yaml:"backend"`
		SQLitePath string `yaml:"sqlite_path"`
		MaxReports int    `yaml:"max_reports"`
	} `yaml:"history"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		ScanCron string `yaml:"scan_cron"`
	} `yaml:"schedule"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		FilePath   string `yaml:"file_path"`
		MaxSize    int    `yaml:"max_size"`
		MaxAge     int    `yaml:"max_age"`
		MaxBackups int    `yaml:"max_backups"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Path returns CONFIG_PATH or the default location.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
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

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_SOURCE_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_SOURCE_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.History.SQLitePath = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		c.Schedule.ScanCron = v
	}
	if v := os.Getenv("SCAN_TIMEFRAME"); v != "" {
		c.Scan.Timeframe = v
	}
	if v := os.Getenv("SCAN_MIN_GAP"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: SCAN_MIN_GAP %q is not a number", ErrConfig, v)
		}
		c.Scan.MinGapPct = &f
	}
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SCAN_WORKERS %q is not an integer", ErrConfig, v)
		}
		c.Scan.Workers = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := scanner.DefaultParams()
	if c.Scan.Timeframe == "" {
		c.Scan.Timeframe = def.Timeframe
	}
	if c.Scan.Period == "" {
		c.Scan.Period = def.Period
	}
	if c.Scan.MinGapPct == nil {
		v := def.MinGapPct
		c.Scan.MinGapPct = &v
	}
	if c.Scan.ProximityLimitPct == nil {
		v := def.ProximityLimitPct
		c.Scan.ProximityLimitPct = &v
	}
	if c.Scan.FastWindow == 0 {
		c.Scan.FastWindow = def.FastWindow
	}
	if c.Scan.SlowWindow == 0 {
		c.Scan.SlowWindow = def.SlowWindow
	}
	if c.Scan.MinDataPoints == 0 {
		c.Scan.MinDataPoints = def.MinDataPoints
	}
	if c.Scan.Workers == 0 {
		c.Scan.Workers = scanner.DefaultWorkers
	}
	if c.Scan.FetchTimeout == 0 {
		c.Scan.FetchTimeout = 10 * time.Second
	}
	if c.Scan.ProgressEvery == 0 {
		c.Scan.ProgressEvery = scanner.DefaultProgressEvery
	}
	if c.Universe.CacheTTL == 0 {
		c.Universe.CacheTTL = 12 * time.Hour
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.History.Backend == "" {
		c.History.Backend = "sqlite"
	}
	if c.History.SQLitePath == "" {
		c.History.SQLitePath = "data/ichimoku_scanner.db"
	}
	if c.History.MaxReports == 0 {
		c.History.MaxReports = history.DefaultMaxReports
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ScanParams returns the scan section as scanner parameters.
func (c *Config) ScanParams() scanner.Params {
	p := scanner.Params{
		Timeframe:     c.Scan.Timeframe,
		Period:        c.Scan.Period,
		FastWindow:    c.Scan.FastWindow,
		SlowWindow:    c.Scan.SlowWindow,
		MinDataPoints: c.Scan.MinDataPoints,
	}
	if c.Scan.MinGapPct != nil {
		p.MinGapPct = *c.Scan.MinGapPct
	}
	if c.Scan.ProximityLimitPct != nil {
		p.ProximityLimitPct = *c.Scan.ProximityLimitPct
	}
	return p
}

// Validate rejects configurations a scan cannot start with.
func (c *Config) Validate() error {
	if err := c.ScanParams().Validate(); err != nil {
		return fmt.Errorf("%w: scan: %w", ErrConfig, err)
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("%w: scan.workers must be positive", ErrConfig)
	}
	switch c.DataSource.Provider {
	case "yahoo":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("%w: data_source.base_url is required for the rest provider", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown data_source.provider %q", ErrConfig, c.DataSource.Provider)
	}
	switch c.History.Backend {
	case "sqlite", "none":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr is required for the redis history backend", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown history.backend %q", ErrConfig, c.History.Backend)
	}
	if c.History.MaxReports <= 0 {
		return fmt.Errorf("%w: history.max_reports must be positive", ErrConfig)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("%w: telegram.bot_token and telegram.chat_id must be set together", ErrConfig)
	}
	return nil
}

// TelegramEnabled reports whether both Telegram credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
