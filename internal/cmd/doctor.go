package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/chestnutforty/mcp-webarchive/internal/config"
	"github.com/chestnutforty/mcp-webarchive/internal/core"
	errwrap "github.com/chestnutforty/mcp-webarchive/internal/errors"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

const doctorProbeTool = "doctor"

var (
	doctorProbe       bool
	doctorProbeURL    string
	doctorInitForce   bool
	doctorResetConfig bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("=== " + config.AppName + " doctor ===")
		log.Info("")
		log.Info("Running diagnostic checks...")
		log.Info("")

		allChecks := true
		totalChecks := 7

		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			log.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			log.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		version := crucible.GetVersion()
		if version.Crucible != "" {
			log.Info(fmt.Sprintf("[2/%d] Checking Crucible access... ✅ v%s", totalChecks, version.Crucible), zap.String("crucible_version", version.Crucible))
		} else {
			log.Error(fmt.Sprintf("[2/%d] Checking Crucible access... ❌ Cannot access Crucible", totalChecks))
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible", errwrap.NewServiceUnavailableError("Crucible unavailable"))
			allChecks = false
		}

		if version.Gofulmen != "" {
			log.Info(fmt.Sprintf("[3/%d] Checking Gofulmen access... ✅ v%s", totalChecks, version.Gofulmen), zap.String("gofulmen_version", version.Gofulmen))
		} else {
			log.Error(fmt.Sprintf("[3/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", totalChecks))
			allChecks = false
		}

		configPath := config.DefaultConfigPath()
		if configPath == "" {
			log.Error(fmt.Sprintf("[4/%d] Checking config directory... ❌ Cannot resolve config directory", totalChecks))
			ExitWithCode(log, foundry.ExitFileNotFound, "Cannot resolve config directory", errwrap.NewInternalError("config directory not resolved"))
			allChecks = false
		} else {
			configDir := filepath.Dir(configPath)
			log.Info(fmt.Sprintf("[4/%d] Checking config directory... ✅ %s", totalChecks, configDir), zap.String("config_dir", configDir))
		}

		log.Info(fmt.Sprintf("[5/%d] Checking environment... ✅ %s/%s", totalChecks, runtime.GOOS, runtime.GOARCH),
			zap.String("os", runtime.GOOS),
			zap.String("arch", runtime.GOARCH))

		cfg, cfgErr := config.Load(cmd.Context(), cfgFile)
		if cfgErr != nil {
			log.Warn(fmt.Sprintf("[6/%d] Checking configuration... ⚠️  %v", totalChecks, cfgErr), zap.Error(cfgErr))
			allChecks = false
		} else {
			policy := cfg.RateLimits.RatePolicy
			log.Info(fmt.Sprintf("[6/%d] Checking configuration... ✅ %g req/s, %d tool overrides", totalChecks, policy.MaxRequestsPerSecond, len(policy.Tools)),
				zap.Float64("max_requests_per_second", policy.MaxRequestsPerSecond))
		}

		switch {
		case cfgErr != nil:
			log.Warn(fmt.Sprintf("[7/%d] Checking archive reachability... ⚠️  skipped (config not loaded)", totalChecks))
		case !doctorProbe:
			log.Info(fmt.Sprintf("[7/%d] Checking archive reachability... skipped (use --probe)", totalChecks))
		default:
			started := time.Now()
			if err := probeArchive(cmd.Context(), cfg, doctorProbeURL); err != nil {
				log.Warn(fmt.Sprintf("[7/%d] Checking archive reachability... ⚠️  %v", totalChecks, err), zap.Error(err))
				allChecks = false
			} else {
				log.Info(fmt.Sprintf("[7/%d] Checking archive reachability... ✅ %s (%s)", totalChecks, cfg.Archive.BaseURL, time.Since(started).Round(time.Millisecond)),
					zap.String("base_url", cfg.Archive.BaseURL))
			}
		}

		log.Info("")
		if allChecks {
			log.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", config.AppName))
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		log.Info("")
		log.Info("=== End Diagnostics ===")
	},
}

// probeArchive issues a single index lookup through the configured stack.
// A target with no captures still proves the archive answered.
func probeArchive(ctx context.Context, cfg *config.Config, target string) error {
	stack, err := buildStack(cfg)
	if err != nil {
		return err
	}
	_, err = stack.Client.ListRange(ctx, doctorProbeTool, core.RangeQuery{
		URL:   target,
		To:    time.Now().UTC(),
		Limit: 1,
	})
	return err
}

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(buildInitConfig()), 0644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		configPath := config.DefaultConfigPath()

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Config file:   %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if used := config.ConfigFileUsed(cfgFile); used != "" && used != configPath {
			log.Info("  Active file:   " + used)
		}

		cfg, err := config.Load(cmd.Context(), cfgFile)
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return nil
		}

		log.Info("")
		log.Info("Environment:")
		for _, name := range []string{
			config.EnvPrefix + "AUTH_TOKEN",
			config.EnvPrefix + "PROXY_URL",
			config.EnvPrefix + "SLACK_WEBHOOK_URL",
			config.EnvPrefix + "RATE_LIMITS_FILE",
		} {
			log.Info(fmt.Sprintf("  %s: %s", name, setStatus(os.Getenv(name))))
		}

		log.Info("")
		log.Info("Effective Settings:")
		log.Info("  archive.base_url: " + cfg.Archive.BaseURL)
		log.Info(fmt.Sprintf("  rate_limits.max_requests_per_second: %g", cfg.RateLimits.MaxRequestsPerSecond))
		log.Info(fmt.Sprintf("  rate_limits.max_wait_seconds: %g", cfg.RateLimits.MaxWaitSeconds))
		log.Info(fmt.Sprintf("  server.auth_token: %s", setStatus(cfg.Server.AuthToken)))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !doctorResetConfig {
			return fmt.Errorf("specify --config")
		}

		configPath := config.DefaultConfigPath()
		if configPath == "" {
			observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			return nil
		}
		if err := os.Remove(configPath); err == nil {
			observability.CLILogger.Info("Config removed", zap.String("path", configPath))
		} else if os.IsNotExist(err) {
			observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
		} else {
			return fmt.Errorf("remove config file: %w", err)
		}
		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.ConfigFileUsed(cfgFile)
		if configPath == "" {
			return fmt.Errorf("config file not found: %s", config.DefaultConfigPath())
		}

		if _, err := config.Load(cmd.Context(), configPath); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorCmd.Flags().BoolVar(&doctorProbe, "probe", false, "issue one live archive lookup")
	doctorCmd.Flags().StringVar(&doctorProbeURL, "probe-url", "example.com", "URL used by --probe")

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
}

func buildInitConfig() string {
	lines := []string{
		"# webarchive config - created by 'webarchive doctor init'",
		"server:",
		"  host: localhost",
		"  port: 8080",
		"  # auth_token: \"\"  # or WEBARCHIVE_AUTH_TOKEN",
		"archive:",
		"  base_url: https://web.archive.org",
		"  # proxy_url: \"\"  # or WEBARCHIVE_PROXY_URL",
		"rate_limits:",
		fmt.Sprintf("  max_requests_per_second: %d", core.DefaultMaxRequestsPerSecond),
		fmt.Sprintf("  max_wait_seconds: %d", core.DefaultMaxWaitSeconds),
		"  tools:",
		"    " + core.ToolSearchSite + ":",
		"      max_requests_per_second: 2",
		"notify:",
		"  # slack_webhook_url: \"\"  # or WEBARCHIVE_SLACK_WEBHOOK_URL",
	}
	return strings.Join(lines, "\n") + "\n"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}
