// Package config loads and validates linkrank configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/linkrank/internal/identity"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Seeds    SeedsConfig    `mapstructure:"seeds"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Rank     RankConfig     `mapstructure:"rank"`
	Report   ReportConfig   `mapstructure:"report"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SeedsConfig locates the seed list.
type SeedsConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	Prefix    string `mapstructure:"prefix"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// CrawlerConfig governs the worker pool and the fetcher.
type CrawlerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	RequestSpacing time.Duration `mapstructure:"request_spacing"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
	UserAgents     []string      `mapstructure:"user_agents"`
}

// RankConfig tunes PageRank.
type RankConfig struct {
	Alpha         float64 `mapstructure:"alpha"`
	Epsilon       float64 `mapstructure:"epsilon"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Workers       int     `mapstructure:"workers"`
}

// ReportConfig locates the ranking report.
type ReportConfig struct {
	Path string `mapstructure:"path"`
}

// DBConfig controls optional rank run persistence. Empty DSN disables it.
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	TablePrefix string `mapstructure:"table_prefix"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds the optional rank run notification target.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the optional status server. Empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig sizes the progress hub.
type ProgressConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	MaxBatchWait time.Duration `mapstructure:"max_batch_wait"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// Level overrides the mode's default level when set.
	Level string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadViper(viper.New(), path)
}

// LoadViper is Load on a caller-supplied Viper, typically one with CLI flags
// already bound.
func LoadViper(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("LINKRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

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

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("seeds.path", "res/urls.txt")
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.dir", "out")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("crawler.concurrency", 50)
	v.SetDefault("crawler.request_spacing", 100*time.Millisecond)
	v.SetDefault("crawler.timeout", 30*time.Second)
	v.SetDefault("crawler.max_body_bytes", 10<<20)
	v.SetDefault("crawler.user_agents", identity.DefaultUserAgents)
	v.SetDefault("rank.alpha", 0.1)
	v.SetDefault("rank.epsilon", 1e-6)
	v.SetDefault("rank.max_iterations", 1000)
	v.SetDefault("rank.workers", 1)
	v.SetDefault("report.path", "output/pagerank.txt")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table_prefix", "linkrank")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("server.addr", "")
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_wait", 500*time.Millisecond)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Seeds.Path == "" {
		errs = append(errs, errors.New("seeds.path is required"))
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the local backend"))
		}
	case BackendMemory:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("storage.gcs_bucket is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be one of local, memory, gcs; got %q", c.Storage.Backend))
	}
	if c.Crawler.Concurrency <= 0 {
		errs = append(errs, errors.New("crawler.concurrency must be > 0"))
	}
	if c.Crawler.RequestSpacing < 0 {
		errs = append(errs, errors.New("crawler.request_spacing must be >= 0"))
	}
	if c.Crawler.Timeout <= 0 {
		errs = append(errs, errors.New("crawler.timeout must be > 0"))
	}
	if c.Crawler.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("crawler.max_body_bytes must be > 0"))
	}
	if c.Rank.Alpha < 0 || c.Rank.Alpha > 1 {
		errs = append(errs, errors.New("rank.alpha must be within [0,1]"))
	}
	if c.Rank.Epsilon <= 0 {
		errs = append(errs, errors.New("rank.epsilon must be > 0"))
	}
	if c.Rank.MaxIterations < 1 {
		errs = append(errs, errors.New("rank.max_iterations must be >= 1"))
	}
	if c.Rank.Workers < 1 {
		errs = append(errs, errors.New("rank.workers must be >= 1"))
	}
	if c.Report.Path == "" {
		errs = append(errs, errors.New("report.path is required"))
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		errs = append(errs, errors.New("pubsub.project_id and pubsub.topic must be set together"))
	}
	if c.Progress.BufferSize <= 0 {
		errs = append(errs, errors.New("progress.buffer_size must be > 0"))
	}
	return errors.Join(errs...)
}
