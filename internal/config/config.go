// Package config loads crawler configuration from an optional YAML file,
// environment variables, and CLI overrides, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// CrawlConfig controls the depth, concurrency, and politeness of a crawl.
type CrawlConfig struct {
	MaxDepth          int     `mapstructure:"max_depth"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MinDelayMs        int     `mapstructure:"min_delay_ms"`
	MaxRetries        int     `mapstructure:"max_retries"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	UserAgent         string  `mapstructure:"user_agent"`
	ContactEmail      string  `mapstructure:"contact_email"`
	BotURL            string  `mapstructure:"bot_url"`
	AcceptLanguage    string  `mapstructure:"accept_language"`
}

// LoggingConfig configures structured logging and file rotation.
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig mirrors lumberjack's rotation knobs.
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ResourceConfig tunes the fetch governor: how much free memory fetches may
// commit, when CPU load forces a back-off, and the parallelism ceiling.
type ResourceConfig struct {
	MemoryHeadroomPct int     `mapstructure:"memory_headroom_pct"`
	CPUHighWater      float64 `mapstructure:"cpu_high_water"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	MinFetchKB        int     `mapstructure:"min_fetch_kb"`
}

// Validate checks that resource limits are within sane operating ranges.
func (r *ResourceConfig) Validate() error {
	if r.MemoryHeadroomPct < 5 || r.MemoryHeadroomPct > 95 {
		return fmt.Errorf("memory_headroom_pct must be between 5 and 95, got %d", r.MemoryHeadroomPct)
	}
	if r.CPUHighWater <= 0 || r.CPUHighWater > 8 {
		return fmt.Errorf("cpu_high_water must be between 0 and 8, got %v", r.CPUHighWater)
	}
	if r.MaxParallel < 1 || r.MaxParallel > 64 {
		return fmt.Errorf("max_parallel must be between 1 and 64, got %d", r.MaxParallel)
	}
	if r.MinFetchKB < 16 {
		return fmt.Errorf("min_fetch_kb must be >= 16, got %d", r.MinFetchKB)
	}
	return nil
}

// Config is the crawler's fully resolved configuration.
type Config struct {
	Crawl    CrawlConfig     `mapstructure:"crawl"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Resource ResourceConfig  `mapstructure:"resource"`
}

// Load reads configuration from configPath (or, if empty, from the first of
// ./configs/config.yaml, ./config.yaml, or ~/.crawlerd/config.yaml), applying
// defaults for anything unset and then CRAWLER_* environment variable
// overrides. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".crawlerd"))
		}
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Resource.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resource config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.max_concurrent", 10)
	v.SetDefault("crawl.requests_per_second", 2.0)
	v.SetDefault("crawl.min_delay_ms", 1000)
	v.SetDefault("crawl.max_retries", 3)
	v.SetDefault("crawl.timeout_seconds", 30)
	v.SetDefault("crawl.user_agent", "EngineSearchBot/1.0")
	v.SetDefault("crawl.contact_email", "")
	v.SetDefault("crawl.bot_url", "")
	v.SetDefault("crawl.accept_language", "en-US,en;q=0.9")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("resource.memory_headroom_pct", 50)
	v.SetDefault("resource.cpu_high_water", 0.9)
	v.SetDefault("resource.max_parallel", 32)
	v.SetDefault("resource.min_fetch_kb", 256)
}

// bindEnv binds the exact CRAWLER_* environment variable names documented in
// the External Interfaces contract to their nested config keys. Each call
// gives viper an explicit env var name, so these are resolved as literally
// CRAWLER_MAX_DEPTH etc., not prefix-joined with the nested key path (which
// would otherwise produce CRAWLER_CRAWL_MAX_DEPTH and never match).
func bindEnv(v *viper.Viper) {
	v.BindEnv("crawl.max_depth", "CRAWLER_MAX_DEPTH")
	v.BindEnv("crawl.max_concurrent", "CRAWLER_MAX_CONCURRENT")
	v.BindEnv("crawl.requests_per_second", "CRAWLER_REQUESTS_PER_SECOND")
	v.BindEnv("crawl.min_delay_ms", "CRAWLER_MIN_DELAY_MS")
	v.BindEnv("crawl.max_retries", "CRAWLER_MAX_RETRIES")
	v.BindEnv("crawl.timeout_seconds", "CRAWLER_TIMEOUT_SECONDS")
	v.BindEnv("crawl.user_agent", "CRAWLER_USER_AGENT")
	v.BindEnv("crawl.contact_email", "CRAWLER_CONTACT_EMAIL")
	v.BindEnv("crawl.bot_url", "CRAWLER_BOT_URL")
	v.BindEnv("crawl.accept_language", "CRAWLER_ACCEPT_LANGUAGE")
}

// MergeCLIFlags applies command-line overrides on top of file/env-derived
// values; zero-valued flags are treated as "not set" and left alone.
func (c *Config) MergeCLIFlags(maxDepth, maxConcurrent int, requestsPerSecond float64, userAgent string) {
	if maxDepth > 0 {
		c.Crawl.MaxDepth = maxDepth
	}
	if maxConcurrent > 0 {
		c.Crawl.MaxConcurrent = maxConcurrent
	}
	if requestsPerSecond > 0 {
		c.Crawl.RequestsPerSecond = requestsPerSecond
	}
	if userAgent != "" {
		c.Crawl.UserAgent = userAgent
	}
}
