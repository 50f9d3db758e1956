package config

import (
	"time"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// Config represents the complete application configuration. Values are
// layered: built-in defaults, then the config file, then WEBARCHIVE_*
// environment variables, then runtime overrides (flags).
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AuthToken enables bearer authentication on the tool endpoints when set.
	AuthToken string `mapstructure:"auth_token"`

	// AdminToken enables the /admin/signal endpoint when set.
	AdminToken string `mapstructure:"admin_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: simple, structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ArchiveConfig configures the Wayback Machine client.
type ArchiveConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	UserAgent       string        `mapstructure:"user_agent"`
	ProxyURL        string        `mapstructure:"proxy_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ContentTimeout  time.Duration `mapstructure:"content_timeout"`
	MaxContentChars int           `mapstructure:"max_content_chars"`
	SearchRowBudget int           `mapstructure:"search_row_budget"`
}

// RateLimitsConfig holds the request governor policy. Values from File are
// applied on top of the inline values.
type RateLimitsConfig struct {
	File            string `mapstructure:"file"`
	core.RatePolicy `mapstructure:",squash"`
}

// NotifyConfig configures best-effort error notifications.
type NotifyConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
}
