package cmd

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/config"
	"github.com/chestnutforty/mcp-webarchive/internal/core/archive"
	"github.com/chestnutforty/mcp-webarchive/internal/core/engine"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

// snapshotStack is the wired snapshot stack shared by the CLI and the server.
type snapshotStack struct {
	Governor *engine.Governor
	Client   *archive.Client
	Service  *engine.Service
}

// buildStack wires governor, archive client and service from config. The
// governor is the only one in the process.
func buildStack(cfg *config.Config) (*snapshotStack, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}

	governor := engine.NewGovernor(cfg.RateLimits.RatePolicy)
	client, err := archive.NewClient(governor, archive.Options{
		BaseURL:         cfg.Archive.BaseURL,
		UserAgent:       cfg.Archive.UserAgent,
		ProxyURL:        cfg.Archive.ProxyURL,
		Timeout:         cfg.Archive.Timeout,
		ContentTimeout:  cfg.Archive.ContentTimeout,
		MaxContentChars: cfg.Archive.MaxContentChars,
	})
	if err != nil {
		return nil, fmt.Errorf("archive client: %w", err)
	}

	service := engine.NewService(client)
	if cfg.Archive.SearchRowBudget > 0 {
		service.SearchRowBudget = cfg.Archive.SearchRowBudget
	}

	if logger := observability.Logger(); logger != nil {
		logger.Debug("Snapshot service ready",
			zap.String("archive", cfg.Archive.BaseURL),
			zap.Bool("proxy", cfg.Archive.ProxyURL != ""),
			zap.Int("search_row_budget", service.SearchRowBudget))
	}

	return &snapshotStack{Governor: governor, Client: client, Service: service}, nil
}
