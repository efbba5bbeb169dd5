// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	DB        DBConfig         `mapstructure:"db"`
	Providers []ProviderConfig `mapstructure:"providers"`
	Pipeline  PipelineConfig   `mapstructure:"pipeline"`
	Sources   SourcesConfig    `mapstructure:"sources"`
	Webhook   WebhookConfig    `mapstructure:"webhook"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls the metrics/health HTTP listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ProviderConfig describes one language-model completion endpoint. Order in
// the slice is priority order.
type ProviderConfig struct {
	Name        string  `mapstructure:"name"`
	URL         string  `mapstructure:"url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// PipelineConfig governs filtering, pacing, and the freshness watchdog.
type PipelineConfig struct {
	Trigger                 string `mapstructure:"trigger"`
	FreshnessWindowHours    int    `mapstructure:"freshness_window_hours"`
	StalenessThresholdHrs   int    `mapstructure:"staleness_threshold_hours"`
	InterSourceDelayMs      int    `mapstructure:"inter_source_delay_ms"`
	InterItemDelayMs        int    `mapstructure:"inter_item_delay_ms"`
	ProviderRetryBaseMs     int    `mapstructure:"provider_retry_base_ms"`
	StoreRetryInitDelayMs   int    `mapstructure:"store_retry_init_delay_ms"`
	StoreRetryWriteDelaySec int    `mapstructure:"store_retry_write_delay_sec"`
}

// SourcesConfig enables the bundled reference adapters.
type SourcesConfig struct {
	RSSFeeds []RSSFeedConfig   `mapstructure:"rss_feeds"`
	Forums   []ForumFeedConfig `mapstructure:"forums"`
}

// RSSFeedConfig points the RSS adapter at one feed.
type RSSFeedConfig struct {
	Source string `mapstructure:"source"`
	URL    string `mapstructure:"url"`
}

// ForumFeedConfig points the colly listing adapter at one forum index page.
type ForumFeedConfig struct {
	Source        string `mapstructure:"source"`
	URL           string `mapstructure:"url"`
	ItemSelector  string `mapstructure:"item_selector"`
	TitleSelector string `mapstructure:"title_selector"`
	LinkSelector  string `mapstructure:"link_selector"`
}

// WebhookConfig controls the outbound notification channel.
type WebhookConfig struct {
	URL             string `mapstructure:"url"`
	MaxBodyLen      int    `mapstructure:"max_body_len"`
	MaxFollowups    int    `mapstructure:"max_followups"`
	SplitDelayMs    int    `mapstructure:"split_delay_ms"`
	ThrottleMinutes int    `mapstructure:"throttle_minutes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADSCOUT")
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
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("pipeline.trigger", "manual")
	v.SetDefault("pipeline.freshness_window_hours", 48)
	v.SetDefault("pipeline.staleness_threshold_hours", 24)
	v.SetDefault("pipeline.inter_source_delay_ms", 1000)
	v.SetDefault("pipeline.inter_item_delay_ms", 1500)
	v.SetDefault("pipeline.provider_retry_base_ms", 500)
	v.SetDefault("pipeline.store_retry_init_delay_ms", 250)
	v.SetDefault("pipeline.store_retry_write_delay_sec", 60)
	v.SetDefault("webhook.max_body_len", 1900)
	v.SetDefault("webhook.max_followups", 5)
	v.SetDefault("webhook.split_delay_ms", 750)
	v.SetDefault("webhook.throttle_minutes", 60)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.FreshnessWindowHours <= 0 {
		return fmt.Errorf("pipeline.freshness_window_hours must be > 0")
	}
	if c.Pipeline.StalenessThresholdHrs <= 0 {
		return fmt.Errorf("pipeline.staleness_threshold_hours must be > 0")
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if p.URL == "" {
			return fmt.Errorf("providers[%d].url is required", i)
		}
	}
	if c.Webhook.URL != "" && c.Webhook.MaxBodyLen <= 0 {
		return fmt.Errorf("webhook.max_body_len must be > 0")
	}
	return nil
}

// FreshnessWindow converts the configured window into a duration.
func (c Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Pipeline.FreshnessWindowHours) * time.Hour
}

// StalenessThreshold converts the watchdog threshold into a duration.
func (c Config) StalenessThreshold() time.Duration {
	return time.Duration(c.Pipeline.StalenessThresholdHrs) * time.Hour
}
