package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Notify    NotifyConfig    `yaml:"notify"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures periodic refresh of connected accounts.
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Refresh string `yaml:"refresh"` // cron spec, e.g. "0 */6 * * *"
}

// PlatformsConfig holds upstream scraper settings.
type PlatformsConfig struct {
	RapidAPIKey string          `yaml:"rapidapi_key"`
	Instagram   InstagramConfig `yaml:"instagram"`
	Twitter     TwitterConfig   `yaml:"twitter"`
	LinkedIn    LinkedInConfig  `yaml:"linkedin"`
}

// InstagramConfig for the Instagram fetcher.
type InstagramConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"` // override the RapidAPI host (optional)
	Limit   int           `yaml:"limit"`
	Profile ProfileConfig `yaml:"profile"`
}

// TwitterConfig for the X/Twitter fetcher.
type TwitterConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Count   int           `yaml:"count"`
	Profile ProfileConfig `yaml:"profile"`
}

// LinkedInConfig for the LinkedIn fetcher.
type LinkedInConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Profile ProfileConfig `yaml:"profile"`
}

// ProfileConfig overrides the scoring profile of a platform. Unset fields
// keep the built-in coefficients; an explicit 0 is honored.
type ProfileConfig struct {
	Multiplier *float64 `yaml:"multiplier"`
	BaseOffset *float64 `yaml:"base_offset"`
	DailyMode  string  `yaml:"daily_mode"` // "engagement" or "posts"
	DateZone   string  `yaml:"date_zone"`  // IANA name; empty = scoring timezone
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	Timezone   string  `yaml:"timezone"`   // week boundaries; empty = local
	Freshness  string  `yaml:"freshness"`  // minimum age before a platform is re-scored
	Adjustment float64 `yaml:"adjustment"` // default p_variable
}

// ParseFreshness returns the freshness window as time.Duration.
func (s ScoringConfig) ParseFreshness() time.Duration {
	d, err := time.ParseDuration(s.Freshness)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// Location resolves Timezone, falling back to time.Local.
func (s ScoringConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", s.Timezone, err)
	}
	return loc, nil
}

// NotifyConfig configures run report destinations.
type NotifyConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// WebhookConfig for generic webhook reports.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./handlescore.db"},
		Schedule: ScheduleConfig{
			Enabled: true,
			Refresh: "0 */6 * * *",
		},
		Platforms: PlatformsConfig{
			Instagram: InstagramConfig{Enabled: true, Limit: 10},
			Twitter:   TwitterConfig{Enabled: true, Count: 20},
			LinkedIn:  LinkedInConfig{Enabled: true},
		},
		Scoring: ScoringConfig{
			Freshness: "24h",
		},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HANDLESCORE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		cfg.Platforms.RapidAPIKey = v
	}
	if v := os.Getenv("HANDLESCORE_TIMEZONE"); v != "" {
		cfg.Scoring.Timezone = v
	}
	if v := os.Getenv("HANDLESCORE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HANDLESCORE_WEBHOOK_URL"); v != "" {
		cfg.Notify.Webhook.URL = v
		cfg.Notify.Webhook.Enabled = true
	}
	if v := os.Getenv("HANDLESCORE_WEBHOOK_SECRET"); v != "" {
		cfg.Notify.Webhook.Secret = v
	}
}
