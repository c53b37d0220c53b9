package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
	Emby      EmbyConfig      `mapstructure:"emby" json:"emby"`
	TMDB      TMDBConfig      `mapstructure:"tmdb" json:"tmdb"`
	Webhook   WebhookConfig   `mapstructure:"webhook" json:"webhook"`
	Rules     RulesConfig     `mapstructure:"rules" json:"rules"`
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level"`
	Format     string `mapstructure:"format" json:"format"`
	Path       string `mapstructure:"path" json:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// EmbyConfig holds media server connection configuration.
type EmbyConfig struct {
	ServerURL string `mapstructure:"server_url" json:"server_url"`
	APIKey    string `mapstructure:"api_key" json:"api_key"`
	UserID    string `mapstructure:"user_id" json:"user_id"`
	Timeout   int    `mapstructure:"timeout" json:"timeout"`
	PageSize  int    `mapstructure:"page_size" json:"page_size"`
}

// TMDBConfig holds catalog service configuration.
type TMDBConfig struct {
	APIKey          string  `mapstructure:"api_key" json:"api_key"`
	BaseURL         string  `mapstructure:"base_url" json:"base_url"`
	RateLimitPeriod float64 `mapstructure:"rate_limit_period" json:"rate_limit_period"`
	Timeout         int     `mapstructure:"timeout" json:"timeout"`
}

// WebhookConfig holds notification intake configuration.
type WebhookConfig struct {
	Enabled           bool   `mapstructure:"enabled" json:"enabled"`
	SecretToken       string `mapstructure:"secret_token" json:"secret_token"`
	AutomationEnabled bool   `mapstructure:"automation_enabled" json:"automation_enabled"`
	WriteMode         string `mapstructure:"write_mode" json:"write_mode"`
	QueueSize         int    `mapstructure:"queue_size" json:"queue_size"`
	DrainTimeout      int    `mapstructure:"drain_timeout" json:"drain_timeout"`
}

// RulesConfig holds rule storage configuration.
type RulesConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// SchedulerConfig holds background task configuration.
type SchedulerConfig struct {
	SweepEnabled         bool   `mapstructure:"sweep_enabled" json:"sweep_enabled"`
	SweepCron            string `mapstructure:"sweep_cron" json:"sweep_cron"`
	SweepMode            string `mapstructure:"sweep_mode" json:"sweep_mode"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days" json:"history_retention_days"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8098,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Emby: EmbyConfig{
			Timeout:  30,
			PageSize: 200,
		},
		TMDB: TMDBConfig{
			BaseURL:         "https://api.themoviedb.org/3",
			RateLimitPeriod: 1.0,
			Timeout:         30,
		},
		Webhook: WebhookConfig{
			Enabled:           true,
			AutomationEnabled: true,
			WriteMode:         "merge",
			QueueSize:         256,
			DrainTimeout:      30,
		},
		Rules: RulesConfig{
			Path: "./config/rules.json",
		},
		Database: DatabaseConfig{
			Path: "./data/embytags.db",
		},
		Scheduler: SchedulerConfig{
			SweepCron:            "0 4 * * *",
			SweepMode:            "merge",
			HistoryRetentionDays: 90,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.embytags")
	}

	v.SetEnvPrefix("EMBYTAGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Missing config file is fine, defaults + env vars apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.TMDB.APIKey == "" {
		cfg.TMDB.APIKey = EmbeddedTMDBKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save persists the configuration to the given file as YAML.
func Save(cfg *Config, path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("server.host", cfg.Server.Host)
	v.Set("server.port", cfg.Server.Port)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.Set("log.max_backups", cfg.Log.MaxBackups)
	v.Set("log.max_age_days", cfg.Log.MaxAgeDays)
	v.Set("log.compress", cfg.Log.Compress)
	v.Set("emby.server_url", cfg.Emby.ServerURL)
	v.Set("emby.api_key", cfg.Emby.APIKey)
	v.Set("emby.user_id", cfg.Emby.UserID)
	v.Set("emby.timeout", cfg.Emby.Timeout)
	v.Set("emby.page_size", cfg.Emby.PageSize)
	v.Set("tmdb.api_key", cfg.TMDB.APIKey)
	v.Set("tmdb.base_url", cfg.TMDB.BaseURL)
	v.Set("tmdb.rate_limit_period", cfg.TMDB.RateLimitPeriod)
	v.Set("tmdb.timeout", cfg.TMDB.Timeout)
	v.Set("webhook.enabled", cfg.Webhook.Enabled)
	v.Set("webhook.secret_token", cfg.Webhook.SecretToken)
	v.Set("webhook.automation_enabled", cfg.Webhook.AutomationEnabled)
	v.Set("webhook.write_mode", cfg.Webhook.WriteMode)
	v.Set("webhook.queue_size", cfg.Webhook.QueueSize)
	v.Set("webhook.drain_timeout", cfg.Webhook.DrainTimeout)
	v.Set("rules.path", cfg.Rules.Path)
	v.Set("database.path", cfg.Database.Path)
	v.Set("scheduler.sweep_enabled", cfg.Scheduler.SweepEnabled)
	v.Set("scheduler.sweep_cron", cfg.Scheduler.SweepCron)
	v.Set("scheduler.sweep_mode", cfg.Scheduler.SweepMode)
	v.Set("scheduler.history_retention_days", cfg.Scheduler.HistoryRetentionDays)

	return v.WriteConfigAs(path)
}

// Validate checks configuration values that would otherwise fail deep
// inside the pipeline.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Webhook.WriteMode != "merge" && c.Webhook.WriteMode != "overwrite" {
		return fmt.Errorf("invalid webhook write_mode %q", c.Webhook.WriteMode)
	}
	if c.Scheduler.SweepMode != "merge" && c.Scheduler.SweepMode != "overwrite" {
		return fmt.Errorf("invalid scheduler sweep_mode %q", c.Scheduler.SweepMode)
	}
	if c.TMDB.RateLimitPeriod < 0 {
		return fmt.Errorf("tmdb rate_limit_period must not be negative")
	}
	if c.Emby.PageSize < 1 {
		return fmt.Errorf("emby page_size must be positive")
	}
	return nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("emby.server_url", d.Emby.ServerURL)
	v.SetDefault("emby.api_key", d.Emby.APIKey)
	v.SetDefault("emby.user_id", d.Emby.UserID)
	v.SetDefault("emby.timeout", d.Emby.Timeout)
	v.SetDefault("emby.page_size", d.Emby.PageSize)

	v.SetDefault("tmdb.api_key", d.TMDB.APIKey)
	v.SetDefault("tmdb.base_url", d.TMDB.BaseURL)
	v.SetDefault("tmdb.rate_limit_period", d.TMDB.RateLimitPeriod)
	v.SetDefault("tmdb.timeout", d.TMDB.Timeout)

	v.SetDefault("webhook.enabled", d.Webhook.Enabled)
	v.SetDefault("webhook.secret_token", d.Webhook.SecretToken)
	v.SetDefault("webhook.automation_enabled", d.Webhook.AutomationEnabled)
	v.SetDefault("webhook.write_mode", d.Webhook.WriteMode)
	v.SetDefault("webhook.queue_size", d.Webhook.QueueSize)
	v.SetDefault("webhook.drain_timeout", d.Webhook.DrainTimeout)

	v.SetDefault("rules.path", d.Rules.Path)
	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("scheduler.sweep_enabled", d.Scheduler.SweepEnabled)
	v.SetDefault("scheduler.sweep_cron", d.Scheduler.SweepCron)
	v.SetDefault("scheduler.sweep_mode", d.Scheduler.SweepMode)
	v.SetDefault("scheduler.history_retention_days", d.Scheduler.HistoryRetentionDays)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Redacted returns a copy of the configuration with credential fields
// masked, suitable for returning over the API.
func (c *Config) Redacted() *Config {
	out := *c
	out.Emby.APIKey = mask(c.Emby.APIKey)
	out.TMDB.APIKey = mask(c.TMDB.APIKey)
	out.Webhook.SecretToken = mask(c.Webhook.SecretToken)
	return &out
}

func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
