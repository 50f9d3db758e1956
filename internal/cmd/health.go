package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/config"
	errwrap "github.com/chestnutforty/mcp-webarchive/internal/errors"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the application can start successfully.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		observability.CLILogger.Info("Running health check...")

		if versionInfo.Version == "" {
			observability.CLILogger.Error("❌ FAIL: Version information missing")
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		observability.CLILogger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		observability.CLILogger.Info("✅ Version information available")

		cfg := config.GetConfig()
		if err := cfg.RateLimits.RatePolicy.Validate(); err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Rate policy invalid", errwrap.WrapConfigInvalid(cmd.Context(), err, "rate policy invalid"))
			return
		}
		observability.CLILogger.Info("✅ Rate policy valid")

		stack, err := buildStack(cfg)
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Archive client invalid", errwrap.WrapConfigInvalid(cmd.Context(), err, "archive client invalid"))
			return
		}
		observability.CLILogger.Info("✅ Snapshot service ready",
			zap.Int("buckets", len(stack.Governor.Status().Buckets)))

		observability.CLILogger.Info("")
		observability.CLILogger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
