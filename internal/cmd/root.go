package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/config"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Cutoff-aware access to Wayback Machine snapshots",
	Long: `webarchive retrieves archived web pages from the Internet Archive Wayback Machine.

Every lookup is bounded by a cutoff date: nothing captured after it is ever
returned. Outbound requests are paced by a per-process request governor.

Use the subcommands to query the archive directly or run the HTTP tool server.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/webarchive/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initConfig initializes the CLI logger and loads configuration.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)

	cfg, err := config.Load(rootCmd.Context(), cfgFile)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}

	if verbose {
		if used := config.ConfigFileUsed(cfgFile); used != "" {
			observability.CLILogger.Debug("Using config file", zap.String("path", used))
		} else {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		}
		observability.CLILogger.Debug("Rate policy loaded",
			zap.Float64("max_requests_per_second", cfg.RateLimits.MaxRequestsPerSecond),
			zap.Float64("max_wait_seconds", cfg.RateLimits.MaxWaitSeconds),
			zap.Int("tool_overrides", len(cfg.RateLimits.Tools)))
	}
}
