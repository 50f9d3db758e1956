package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/config"
	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/metrics"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
	"github.com/chestnutforty/mcp-webarchive/internal/output"
)

// addCutoffFlag registers the hidden --cutoff flag used by backtesting runs.
func addCutoffFlag(cmd *cobra.Command) {
	cmd.Flags().String("cutoff", "", "Cutoff date YYYY-MM-DD (default today)")
	_ = cmd.Flags().MarkHidden("cutoff")
}

func resolveCutoff(cmd *cobra.Command) (core.CutoffContext, error) {
	raw, err := cmd.Flags().GetString("cutoff")
	if err != nil {
		return core.CutoffContext{}, err
	}
	return core.NewCutoffContext(raw, time.Now().UTC())
}

// runTool builds the snapshot stack, invokes call and writes the rendered
// result to the selected sink.
func runTool(cmd *cobra.Command, tool, stem string, call func(stack *snapshotStack, cutoff core.CutoffContext) (func(output.Formatter) (string, error), error)) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	cutoff, err := resolveCutoff(cmd)
	if err != nil {
		return err
	}

	stack, err := buildStack(config.GetConfig())
	if err != nil {
		return err
	}

	started := time.Now()
	render, err := call(stack, cutoff)
	metrics.RecordToolInvocation(tool, err == nil)
	if err != nil {
		return err
	}
	observability.CLILogger.Debug("Tool completed",
		zap.String("tool", tool),
		zap.String("cutoff", cutoff.String()),
		zap.String("cutoff_source", string(cutoff.Source)),
		zap.Duration("duration", time.Since(started)))

	rendered, err := render(output.NewFormatter(format))
	if err != nil {
		return err
	}

	sink, err := openCommandSink(cmd, format, stem)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	if strings.TrimSpace(rendered) == "" {
		return nil
	}
	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}
