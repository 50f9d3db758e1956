package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/chestnutforty/mcp-webarchive/internal/config"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		log := observability.CLILogger

		log.Info("=== webarchive Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg := config.GetConfig()

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Auth Token:     " + setStatus(cfg.Server.AuthToken))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("  Config File:    "+configFileLabel(), zap.String("config_file", configFileLabel()))
		log.Info("")

		log.Info("Archive:")
		log.Info("  Base URL:          "+cfg.Archive.BaseURL, zap.String("base_url", cfg.Archive.BaseURL))
		log.Info("  Proxy:             " + setStatus(cfg.Archive.ProxyURL))
		log.Info("  Timeout:           " + cfg.Archive.Timeout.String())
		log.Info("  Content Timeout:   " + cfg.Archive.ContentTimeout.String())
		log.Info(fmt.Sprintf("  Max Content Chars: %d", cfg.Archive.MaxContentChars))
		log.Info(fmt.Sprintf("  Search Row Budget: %d", cfg.Archive.SearchRowBudget))
		log.Info("")

		policy := cfg.RateLimits.RatePolicy
		log.Info("Rate Limits:")
		if strings.TrimSpace(cfg.RateLimits.File) != "" {
			log.Info("  Policy File:       " + cfg.RateLimits.File)
		}
		log.Info(fmt.Sprintf("  Max Requests/s:    %g", policy.MaxRequestsPerSecond))
		log.Info(fmt.Sprintf("  Max Wait Seconds:  %g", policy.MaxWaitSeconds))
		if policy.HardLimit != nil {
			log.Info(fmt.Sprintf("  Hard Limit:        %d", *policy.HardLimit))
		} else {
			log.Info("  Hard Limit:        (none)")
		}
		log.Info(fmt.Sprintf("  Tool Overrides:    %d", len(policy.Tools)))
		log.Info("")

		log.Info("Notify:")
		log.Info("  Slack Webhook:     " + setStatus(cfg.Notify.SlackWebhookURL))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func configFileLabel() string {
	if used := config.ConfigFileUsed(cfgFile); used != "" {
		return used
	}
	return config.DefaultConfigPath() + " (not found)"
}

func setStatus(value string) string {
	if strings.TrimSpace(value) != "" {
		return "(set)"
	}
	return "(not set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
