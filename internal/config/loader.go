// Package config loads the webarchive configuration. Defaults live in code,
// an optional YAML file (explicit path, the XDG app config directory, or
// ./config) overrides them, and WEBARCHIVE_* environment variables override
// the file.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

const (
	// AppName names the XDG config directory and the binary.
	AppName = "webarchive"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "WEBARCHIVE_"

	// LegacySlackWebhookEnv is honoured when notify.slack_webhook_url is unset.
	LegacySlackWebhookEnv = "SLACK_WEBHOOK_URL"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Load builds the configuration. configFile may be empty to search the
// default locations. Later runtime overrides win.
func Load(ctx context.Context, configFile string, runtimeOverrides ...map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if len(envOverrides) > 0 {
		if err := v.MergeConfigMap(envOverrides); err != nil {
			return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
		}
	}
	for _, overrides := range runtimeOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to apply runtime overrides: %w", err)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Notify.SlackWebhookURL) == "" {
		cfg.Notify.SlackWebhookURL = strings.TrimSpace(os.Getenv(LegacySlackWebhookEnv))
	}

	policy, err := resolveRatePolicy(cfg.RateLimits)
	if err != nil {
		return nil, err
	}
	cfg.RateLimits.RatePolicy = policy

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func readConfigFile(v *viper.Viper, configFile string) error {
	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range configSearchPaths() {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func configSearchPaths() []string {
	var dirs []string
	if dir := gfconfig.GetAppConfigDir(AppName); strings.TrimSpace(dir) != "" {
		dirs = append(dirs, dir)
	}
	return append(dirs, "./config")
}

// ConfigFileUsed reports the file Load would read for configFile, or "".
func ConfigFileUsed(configFile string) string {
	if strings.TrimSpace(configFile) != "" {
		return configFile
	}
	for _, dir := range configSearchPaths() {
		candidate := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "150s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.admin_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("archive.base_url", "https://web.archive.org")
	v.SetDefault("archive.user_agent", "")
	v.SetDefault("archive.proxy_url", "")
	v.SetDefault("archive.timeout", "30s")
	v.SetDefault("archive.content_timeout", "60s")
	v.SetDefault("archive.max_content_chars", 50000)
	v.SetDefault("archive.search_row_budget", 5000)

	v.SetDefault("rate_limits.file", "")
	v.SetDefault("rate_limits.max_requests_per_second", core.DefaultMaxRequestsPerSecond)
	v.SetDefault("rate_limits.max_wait_seconds", core.DefaultMaxWaitSeconds)

	v.SetDefault("notify.slack_webhook_url", "")
}

func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix
	return []EnvVarSpec{
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Durations are decoded by the mapstructure hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "AUTH_TOKEN", Path: []string{"server", "auth_token"}, Type: EnvString},
		{Name: prefix + "ADMIN_TOKEN", Path: []string{"server", "admin_token"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		{Name: prefix + "ARCHIVE_BASE_URL", Path: []string{"archive", "base_url"}, Type: EnvString},
		{Name: prefix + "ARCHIVE_USER_AGENT", Path: []string{"archive", "user_agent"}, Type: EnvString},
		{Name: prefix + "PROXY_URL", Path: []string{"archive", "proxy_url"}, Type: EnvString},
		{Name: prefix + "ARCHIVE_TIMEOUT", Path: []string{"archive", "timeout"}, Type: EnvString},
		{Name: prefix + "ARCHIVE_CONTENT_TIMEOUT", Path: []string{"archive", "content_timeout"}, Type: EnvString},
		{Name: prefix + "ARCHIVE_MAX_CONTENT_CHARS", Path: []string{"archive", "max_content_chars"}, Type: EnvInt},
		{Name: prefix + "ARCHIVE_SEARCH_ROW_BUDGET", Path: []string{"archive", "search_row_budget"}, Type: EnvInt},

		{Name: prefix + "RATE_LIMITS_FILE", Path: []string{"rate_limits", "file"}, Type: EnvString},
		{Name: prefix + "MAX_REQUESTS_PER_SECOND", Path: []string{"rate_limits", "max_requests_per_second"}, Type: EnvString},
		{Name: prefix + "HARD_LIMIT", Path: []string{"rate_limits", "hard_limit"}, Type: EnvInt},
		{Name: prefix + "MAX_WAIT_SECONDS", Path: []string{"rate_limits", "max_wait_seconds"}, Type: EnvString},

		{Name: prefix + "SLACK_WEBHOOK_URL", Path: []string{"notify", "slack_webhook_url"}, Type: EnvString},
	}
}
