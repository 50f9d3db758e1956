package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/output"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <url> <target-date>",
	Short: "Fetch the latest archived copy of a page on or before a date",
	Long: `Fetch the content of the latest Wayback Machine capture of a URL taken on
or before target-date (YYYY-MM-DD). www/non-www hosts and common extensions
are tried in order. When nothing is found, diagnostics describe what the
archive does hold for the domain.`,
	Example: `  webarchive snapshot example.com/team 2024-06-01
  webarchive snapshot https://example.com/pricing 2023-01-15 --output-format markdown`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTool(cmd, core.ToolGetSnapshot, "snapshot-"+args[0], func(stack *snapshotStack, cutoff core.CutoffContext) (func(output.Formatter) (string, error), error) {
			result, err := stack.Service.GetArchivedSnapshot(cmd.Context(), core.SnapshotRequest{
				URL:        args[0],
				TargetDate: args[1],
				Cutoff:     cutoff,
			})
			if err != nil {
				return nil, err
			}
			return func(f output.Formatter) (string, error) { return f.FormatSnapshot(result) }, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	addOutputFlags(snapshotCmd, "table|json|markdown")
	addCutoffFlag(snapshotCmd)
}
