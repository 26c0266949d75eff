// Package config provides YAML-based configuration loading for kpiboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/kpiboard/internal/threshold"
	"gopkg.in/yaml.v3"
)

// Config is the top-level kpiboard configuration, loaded from kpiboard.yaml.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Database    DatabaseConfig     `yaml:"database"`
	Cache       CacheConfig        `yaml:"cache"`
	Store       StoreConfig        `yaml:"store"`
	Redis       RedisConfig        `yaml:"redis"`
	Attachments AttachmentConfig   `yaml:"attachments"`
	Thresholds  threshold.Settings `yaml:"thresholds"`
	Timeline    TimelineConfig     `yaml:"timeline"`
	Digest      DigestConfig       `yaml:"digest"`
}

// ServerConfig holds dashboard HTTP settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects and addresses the backing SQL database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file, or :memory:
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// CacheConfig tunes the query cache.
type CacheConfig struct {
	StaleTime    time.Duration `yaml:"stale_time"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	GCInterval   time.Duration `yaml:"gc_interval"`
	GCGrace      time.Duration `yaml:"gc_grace"`
}

// StoreConfig controls simulated network behaviour of the data-access layer.
type StoreConfig struct {
	Latency     time.Duration `yaml:"latency"`
	Jitter      time.Duration `yaml:"jitter"`
	FailureRate float64       `yaml:"failure_rate"`
}

// RedisConfig enables Redis-backed UI session state when URL is set.
type RedisConfig struct {
	URL        string        `yaml:"url"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// AttachmentConfig selects where uploaded files are stored.
type AttachmentConfig struct {
	Driver    string `yaml:"driver"` // memory or minio
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	PublicURL string `yaml:"public_url"`
	MaxSize   int64  `yaml:"max_size"`
}

// TimelineConfig holds Gantt layout defaults.
type TimelineConfig struct {
	MinSpanDays int     `yaml:"min_span_days"`
	OpenEndDays int     `yaml:"open_end_days"`
	DayWidth    float64 `yaml:"day_width"`
}

// DigestConfig schedules the KPI digest and names its destinations.
type DigestConfig struct {
	Cron    string        `yaml:"cron"`
	Lowest  int           `yaml:"lowest"`
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials for the digest.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot credentials for the digest.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, suitable for
// running without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "kpiboard.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "kpiboard"
		}
	}
	if c.Cache.StaleTime == 0 {
		c.Cache.StaleTime = 30 * time.Second
	}
	if c.Cache.FetchTimeout == 0 {
		c.Cache.FetchTimeout = 10 * time.Second
	}
	if c.Cache.GCInterval == 0 {
		c.Cache.GCInterval = time.Minute
	}
	if c.Cache.GCGrace == 0 {
		c.Cache.GCGrace = 5 * time.Minute
	}
	if c.Redis.SessionTTL == 0 {
		c.Redis.SessionTTL = 24 * time.Hour
	}
	if c.Attachments.Driver == "" {
		c.Attachments.Driver = "memory"
	}
	if c.Attachments.Bucket == "" {
		c.Attachments.Bucket = "kpiboard"
	}
	if c.Attachments.MaxSize == 0 {
		c.Attachments.MaxSize = 20 << 20
	}
	if len(c.Thresholds) == 0 {
		c.Thresholds = threshold.Default()
	}
	if c.Timeline.MinSpanDays == 0 {
		c.Timeline.MinSpanDays = 30
	}
	if c.Timeline.OpenEndDays == 0 {
		c.Timeline.OpenEndDays = 30
	}
	if c.Timeline.DayWidth == 0 {
		c.Timeline.DayWidth = 24
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 9 * * 1"
	}
	if c.Digest.Lowest == 0 {
		c.Digest.Lowest = 5
	}
}

// cronParser matches the 5-field expressions accepted by the digest scheduler.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Store.FailureRate < 0 || c.Store.FailureRate > 1 {
		errs = append(errs, fmt.Sprintf("store.failure_rate %g must be within 0-1", c.Store.FailureRate))
	}
	if c.Store.Latency < 0 || c.Store.Jitter < 0 {
		errs = append(errs, "store.latency and store.jitter must not be negative")
	}
	switch c.Attachments.Driver {
	case "memory":
	case "minio":
		if c.Attachments.Endpoint == "" {
			errs = append(errs, "attachments.endpoint is required for minio")
		}
	default:
		errs = append(errs, fmt.Sprintf("attachments.driver %q must be memory or minio", c.Attachments.Driver))
	}
	if err := threshold.Validate(c.Thresholds); err != nil {
		errs = append(errs, strings.TrimPrefix(err.Error(), "threshold: invalid settings: "))
	}
	if _, err := cronParser.Parse(c.Digest.Cron); err != nil {
		errs = append(errs, fmt.Sprintf("digest.cron %q: %v", c.Digest.Cron, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
