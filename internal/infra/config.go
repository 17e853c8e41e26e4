package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"market_go/internal/domain"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is sent on every upstream request
	DefaultUserAgent = "market-go/1.0"

	DefaultInstrumentURL = "https://assets.upstox.com/market-quote/instruments/exchange/NSE.csv.gz"
	DefaultUpstoxURL     = "https://api.upstox.com/v2"
	DefaultFinnhubURL    = "https://finnhub.io/api/v1"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr      string `yaml:"addr"`
		PprofAddr string `yaml:"pprof_addr"`
	} `yaml:"server"`

	Registry struct {
		URL         string        `yaml:"url"`
		CachePath   string        `yaml:"cache_path"`
		Segment     string        `yaml:"segment"`
		TTLRaw      string        `yaml:"ttl"`
		TTL         time.Duration `yaml:"-"`
		RefreshCron string        `yaml:"refresh_cron"`
	} `yaml:"registry"`

	API struct {
		TimeoutRaw string        `yaml:"timeout"`
		Timeout    time.Duration `yaml:"-"`
		Upstox     struct {
			BaseURL     string `yaml:"base_url"`
			AccessToken string `yaml:"access_token"`
		} `yaml:"upstox"`
		Finnhub struct {
			BaseURL           string `yaml:"base_url"`
			APIKey            string `yaml:"api_key"`
			Intraday          bool   `yaml:"intraday"`
			RequestsPerMinute int    `yaml:"requests_per_minute"`
			Burst             int    `yaml:"burst"`
		} `yaml:"finnhub"`
	} `yaml:"api"`

	Stream struct {
		IntervalRaw string        `yaml:"interval"`
		Interval    time.Duration `yaml:"-"`
	} `yaml:"stream"`

	Storage struct {
		DBPath     string `yaml:"db_path"`
		ParquetDir string `yaml:"parquet_dir"`
	} `yaml:"storage"`

	Scheduler struct {
		SnapshotCron string   `yaml:"snapshot_cron"`
		Watchlist    []string `yaml:"watchlist"`
		Concurrency  int      `yaml:"concurrency"`
	} `yaml:"scheduler"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig decodes yaml, applies defaults and environment overrides, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "market-go"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.PprofAddr == "" {
		c.Server.PprofAddr = "localhost:6060"
	}
	if c.Registry.URL == "" {
		c.Registry.URL = DefaultInstrumentURL
	}
	if c.Registry.CachePath == "" {
		c.Registry.CachePath = "data/nse_instruments.csv"
	}
	if c.Registry.Segment == "" {
		c.Registry.Segment = "NSE_EQ"
	}
	if c.Registry.TTLRaw == "" {
		c.Registry.TTLRaw = "24h"
	}
	if c.Registry.RefreshCron == "" {
		c.Registry.RefreshCron = "0 0 8 * * *"
	}
	if c.API.TimeoutRaw == "" {
		c.API.TimeoutRaw = "12s"
	}
	if c.API.Upstox.BaseURL == "" {
		c.API.Upstox.BaseURL = DefaultUpstoxURL
	}
	if c.API.Finnhub.BaseURL == "" {
		c.API.Finnhub.BaseURL = DefaultFinnhubURL
	}
	if c.API.Finnhub.RequestsPerMinute == 0 {
		c.API.Finnhub.RequestsPerMinute = 60
	}
	if c.Stream.IntervalRaw == "" {
		c.Stream.IntervalRaw = "1s"
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/market.db"
	}
	if c.Scheduler.Concurrency <= 0 {
		c.Scheduler.Concurrency = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

func (c *Config) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"registry.ttl", c.Registry.TTLRaw, &c.Registry.TTL},
		{"api.timeout", c.API.TimeoutRaw, &c.API.Timeout},
		{"stream.interval", c.Stream.IntervalRaw, &c.Stream.Interval},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(strings.TrimSpace(f.raw))
		if err != nil {
			return &domain.ConfigError{Field: f.name, Err: err}
		}
		*f.dst = d
	}
	return nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return &domain.ConfigError{Field: "server.addr", Err: errors.New("must not be empty")}
	}

	if !hasHTTPScheme(c.Registry.URL) {
		return &domain.ConfigError{Field: "registry.url", Err: fmt.Errorf("invalid URL: %s", c.Registry.URL)}
	}
	if c.Registry.TTL <= 0 {
		return &domain.ConfigError{Field: "registry.ttl", Err: errors.New("must be positive")}
	}

	if c.API.Timeout < time.Second || c.API.Timeout > time.Minute {
		return &domain.ConfigError{Field: "api.timeout", Err: fmt.Errorf("%s out of range 1s-1m", c.API.Timeout)}
	}
	if !hasHTTPScheme(c.API.Upstox.BaseURL) {
		return &domain.ConfigError{Field: "api.upstox.base_url", Err: fmt.Errorf("invalid URL: %s", c.API.Upstox.BaseURL)}
	}
	if !hasHTTPScheme(c.API.Finnhub.BaseURL) {
		return &domain.ConfigError{Field: "api.finnhub.base_url", Err: fmt.Errorf("invalid URL: %s", c.API.Finnhub.BaseURL)}
	}

	if c.Stream.Interval <= 0 {
		return &domain.ConfigError{Field: "stream.interval", Err: errors.New("must be positive")}
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Registry.RefreshCron); err != nil {
		return &domain.ConfigError{Field: "registry.refresh_cron", Err: err}
	}
	if c.Scheduler.SnapshotCron != "" {
		if _, err := parser.Parse(c.Scheduler.SnapshotCron); err != nil {
			return &domain.ConfigError{Field: "scheduler.snapshot_cron", Err: err}
		}
	}

	return nil
}

func hasHTTPScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if token := os.Getenv("UPSTOX_ACCESS_TOKEN"); token != "" {
		cfg.API.Upstox.AccessToken = token
	}
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.API.Finnhub.APIKey = key
	}
	if addr := os.Getenv("MARKET_HTTP_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv("MARKET_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if path := os.Getenv("MARKET_DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
}
