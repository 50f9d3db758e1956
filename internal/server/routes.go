package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chestnutforty/mcp-webarchive/internal/errors"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
	"github.com/chestnutforty/mcp-webarchive/internal/server/handlers"
	servermw "github.com/chestnutforty/mcp-webarchive/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.opts.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// Prometheus scrape proxy
	s.router.Get("/metrics", MetricsHandler)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(servermw.BearerAuth(s.opts.AuthToken, http.HandlerFunc(rejectUnauthorized)))
		r.Get("/tools", s.tools.ListTools)
		r.Post("/tools/{name}", s.tools.CallTool)
		r.Get("/rate-limits", s.tools.RateLimits)
	})

	s.registerAdminEndpoint()
}

func rejectUnauthorized(w http.ResponseWriter, r *http.Request) {
	apperrors.RespondWithEnvelope(w, r, apperrors.NewUnauthorizedError("missing or invalid bearer token"))
}

// registerAdminEndpoint registers the admin signal endpoint when an admin
// token is configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger

	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no server.admin_token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
