package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/config"
	errwrap "github.com/chestnutforty/mcp-webarchive/internal/errors"
	"github.com/chestnutforty/mcp-webarchive/internal/notify"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
	"github.com/chestnutforty/mcp-webarchive/internal/server"
	"github.com/chestnutforty/mcp-webarchive/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// checkTelemetry degrades health when the exporter has gone away; tools keep
// working without metrics.
func checkTelemetry(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return fmt.Errorf("%w: telemetry exporter not running", handlers.ErrDegraded)
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read and validate configuration

On shutdown /health reports 503 "shutting down" while in-flight requests drain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		flagOverrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			flagOverrides["host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			flagOverrides["port"] = serverPort
		}
		if len(flagOverrides) > 0 {
			overrides["server"] = flagOverrides
		}

		cfg, err := config.Load(cmd.Context(), cfgFile, overrides)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "config load failed")
		}

		namespace := config.AppName
		observability.InitServerLogger(config.AppName, cfg.Logging.Level, cfg.Logging.Profile, namespace)

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(namespace, metricsPort); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics",
					zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		stack, err := buildStack(cfg)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "snapshot service initialization failed")
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", metricsPort),
			zap.Float64("max_requests_per_second", cfg.RateLimits.MaxRequestsPerSecond),
			zap.Bool("slack_notifications", cfg.Notify.SlackWebhookURL != ""))

		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("rate_limiter", handlers.GovernorChecker(stack.Governor))
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", handlers.CheckFunc(checkTelemetry))
		}
		handlers.SetAppName(config.AppName)

		srv := server.New(server.Options{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			AuthToken:    cfg.Server.AuthToken,
			AdminToken:   cfg.Server.AdminToken,
			Service:      stack.Service,
			Limits:       stack.Governor,
			Notifier:     notify.New(cfg.Notify.SlackWebhookURL, config.AppName),
			Health:       hm,
		})

		// Get shutdown timeout from config
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Stop the metrics exporter
		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.StopMetrics(); err != nil {
				observability.ServerLogger.Warn("Metrics exporter stop failed", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// SIGHUP re-reads the config so operators can validate edits; the
		// governor policy in effect does not change until restart.
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: re-reading configuration")

			reloaded, err := config.Load(ctx, cfgFile, overrides)
			if err != nil {
				observability.ServerLogger.Error("Failed to reload configuration", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.ServerLogger.Info("Configuration re-read; restart to apply rate limit changes",
				zap.String("file", config.ConfigFileUsed(cfgFile)),
				zap.Float64("max_requests_per_second", reloaded.RateLimits.MaxRequestsPerSecond))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
