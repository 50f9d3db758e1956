package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger serves the one-shot commands.
	CLILogger *logging.Logger

	// ServerLogger serves the HTTP transport and everything it drives.
	ServerLogger *logging.Logger
)

func stderrSink(format string) logging.SinkConfig {
	return logging.SinkConfig{
		Type:    "console",
		Format:  format,
		Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
	}
}

// InitCLILogger installs CLILogger. verbose lowers the level to DEBUG.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger installs ServerLogger. profile "simple" writes console
// lines; anything else selects JSON lines with request correlation and an
// optional namespace field.
func InitServerLogger(serviceName, logLevel, profile string, namespace ...string) {
	cfg := &logging.LoggerConfig{
		Profile:      logging.ProfileSimple,
		DefaultLevel: parseLogLevel(logLevel),
		Service:      serviceName,
		Sinks:        []logging.SinkConfig{stderrSink("console")},
	}

	if !strings.EqualFold(strings.TrimSpace(profile), "simple") {
		static := map[string]any{}
		if len(namespace) > 0 && namespace[0] != "" {
			static["namespace"] = namespace[0]
		}
		cfg.Profile = logging.ProfileStructured
		cfg.Environment = "production"
		cfg.StaticFields = static
		cfg.Sinks = []logging.SinkConfig{stderrSink("json")}
		cfg.Middleware = []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		}
		cfg.EnableCaller = true
		cfg.EnableStacktrace = true
	}

	logger, err := logging.New(cfg)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// Logger returns the server logger when serving, else the CLI logger. It
// may return nil before either is initialized.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

func parseLogLevel(levelStr string) string {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr reports a logger setup failure before any logger exists.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %s (exit code: %d)\n", msg, exitCode)
		}
		os.Exit(int(exitCode))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)

	os.Exit(info.Code)
}
