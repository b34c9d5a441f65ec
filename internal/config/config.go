// Package config loads crawler configuration from file and environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Export sinks.
const (
	SinkNone   = "none"
	SinkLocal  = "local"
	SinkMemory = "memory"
	SinkGCS    = "gcs"
)

// Config is the root configuration.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Server   ServerConfig   `mapstructure:"server"`
	Export   ExportConfig   `mapstructure:"export"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig controls what is crawled and how hard.
type CrawlerConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	UserAgent         string `mapstructure:"user_agent"`
	AuthorConcurrency int    `mapstructure:"author_concurrency"`
	AuthorCacheSize   int    `mapstructure:"author_cache_size"`
	MaxPages          int    `mapstructure:"max_pages"`
}

// HTTPConfig controls the page fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// DatabaseConfig selects and tunes the store.
type DatabaseConfig struct {
	Driver                 string `mapstructure:"driver"`
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	EnsureSchema           bool   `mapstructure:"ensure_schema"`
}

// ScheduleConfig controls the recurring crawl.
type ScheduleConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// ServerConfig controls the dashboard HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ExportConfig selects where run sheets are written.
type ExportConfig struct {
	Sink      string `mapstructure:"sink"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	// GCSCacheControl is the Cache-Control header set on uploaded sheets.
	GCSCacheControl string `mapstructure:"gcs_cache_control"`
}

// PubSubConfig enables run notices when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notices should be published.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.Topic != ""
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load reads configuration from path (optional) and CRAWLER_* environment
// variables, applies defaults and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "https://quotes.toscrape.com/")
	v.SetDefault("crawler.user_agent", "quotes-crawler/0.1")
	v.SetDefault("crawler.author_concurrency", 1)
	v.SetDefault("crawler.author_cache_size", 0)
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_seconds", 1800)
	v.SetDefault("database.ensure_schema", false)
	v.SetDefault("schedule.interval", "24h")
	v.SetDefault("schedule.run_on_start", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("export.sink", SinkNone)
	v.SetDefault("export.prefix", "exports")
	v.SetDefault("export.local_dir", "./exports")
	v.SetDefault("export.gcs_bucket", "")
	v.SetDefault("export.gcs_cache_control", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate checks for values the crawler cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.Crawler.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("crawler.base_url must be an absolute URL, got %q", c.Crawler.BaseURL)
	}
	if c.Crawler.AuthorConcurrency <= 0 {
		return fmt.Errorf("crawler.author_concurrency must be > 0")
	}
	if c.Crawler.AuthorCacheSize < 0 {
		return fmt.Errorf("crawler.author_cache_size must be >= 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Database.Driver {
	case DriverPostgres:
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q", DriverPostgres, DriverMemory)
	}
	if c.Database.MinConns < 0 || c.Database.MaxConns < 0 {
		return fmt.Errorf("database connection limits must be >= 0")
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Export.Sink {
	case SinkNone, SinkMemory:
	case SinkLocal:
		if strings.TrimSpace(c.Export.LocalDir) == "" {
			return fmt.Errorf("export.local_dir must be set for the local sink")
		}
	case SinkGCS:
		if c.Export.GCSBucket == "" {
			return fmt.Errorf("export.gcs_bucket must be set for the gcs sink")
		}
	default:
		return fmt.Errorf("export.sink %q is not supported", c.Export.Sink)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

// FetchTimeout is the per-request timeout of the page fetcher.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// MaxConnLifetime is the pool connection lifetime.
func (c DatabaseConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeSeconds) * time.Second
}
