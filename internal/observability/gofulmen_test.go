package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggers(t *testing.T) {
	t.Cleanup(func() {
		CLILogger = nil
		ServerLogger = nil
	})

	t.Run("CLI logger", func(t *testing.T) {
		InitCLILogger("webarchive-test", true)
		require.NotNil(t, CLILogger)
		require.Same(t, CLILogger, Logger())
		CLILogger.Debug("cli debug", zap.String("mode", "verbose"))
	})

	t.Run("Structured server logger", func(t *testing.T) {
		InitServerLogger("webarchive-test", "debug", "structured", "webarchive")
		require.NotNil(t, ServerLogger)
		require.Same(t, ServerLogger, Logger())
		ServerLogger.Info("tool invoked",
			zap.String("tool", "webarchive_get_snapshot"),
			zap.String("cutoff", "2024-01-01"))
	})

	t.Run("Simple server logger", func(t *testing.T) {
		InitServerLogger("webarchive-test", "warn", "SIMPLE")
		require.NotNil(t, ServerLogger)
		ServerLogger.Warn("governor rejected request", zap.String("bucket", "global"))
	})
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLogLevel(" Debug "))
	require.Equal(t, "WARN", parseLogLevel("warning"))
	require.Equal(t, "INFO", parseLogLevel("loud"))
}

func TestCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	require.NotEmpty(t, version.Gofulmen)
	require.NotEmpty(t, version.Crucible)
	require.NotEmpty(t, crucible.GetVersionString())
}
