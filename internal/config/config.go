// Package config loads and validates planner configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Planner PlannerConfig `mapstructure:"planner"`
	Server  ServerConfig  `mapstructure:"server"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig identifies the target site and how the planner announces itself.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds     int `mapstructure:"timeout_seconds"`
	MaxAttempts        int `mapstructure:"max_attempts"`
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"`
	BackoffMinSeconds  int `mapstructure:"backoff_min_seconds"`
	BackoffMaxSeconds  int `mapstructure:"backoff_max_seconds"`
	MaxBodyBytes       int `mapstructure:"max_body_bytes"`
}

// PlannerConfig governs enumeration and classification behavior.
type PlannerConfig struct {
	Agent               string   `mapstructure:"agent"`
	SiteTemplate        string   `mapstructure:"site_template"`
	BucketConcurrency   int      `mapstructure:"bucket_concurrency"`
	ClassifyConcurrency int      `mapstructure:"classify_concurrency"`
	FeedCandidates      []string `mapstructure:"feed_candidates"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// OutputConfig sets where plan artifacts are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLPLAN")
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
	v.SetDefault("site.base_url", "https://www.bonappetit.com")
	v.SetDefault("site.user_agent", "SmartCrawler/1.0")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_base_seconds", 1)
	v.SetDefault("http.backoff_min_seconds", 2)
	v.SetDefault("http.backoff_max_seconds", 10)
	v.SetDefault("http.max_body_bytes", 5<<20)
	v.SetDefault("planner.agent", "*")
	v.SetDefault("planner.site_template", "bonappetit")
	v.SetDefault("planner.bucket_concurrency", 1)
	v.SetDefault("planner.classify_concurrency", 1)
	v.SetDefault("planner.feed_candidates", []string{"/feed/rss", "/api/"})
	v.SetDefault("server.port", 8080)
	v.SetDefault("output.dir", "plans")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if strings.TrimSpace(c.Site.UserAgent) == "" {
		return fmt.Errorf("site.user_agent must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffMinSeconds > c.HTTP.BackoffMaxSeconds {
		return fmt.Errorf("http.backoff_min_seconds must be <= http.backoff_max_seconds")
	}
	if c.Planner.BucketConcurrency <= 0 {
		return fmt.Errorf("planner.bucket_concurrency must be > 0")
	}
	if c.Planner.ClassifyConcurrency <= 0 {
		return fmt.Errorf("planner.classify_concurrency must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir must be set")
	}
	return nil
}

// Timeout converts the configured per-request timeout into a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffBase converts the configured backoff base into a duration.
func (c HTTPConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds) * time.Second
}

// BackoffMin converts the configured backoff floor into a duration.
func (c HTTPConfig) BackoffMin() time.Duration {
	return time.Duration(c.BackoffMinSeconds) * time.Second
}

// BackoffMax converts the configured backoff ceiling into a duration.
func (c HTTPConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSeconds) * time.Second
}
