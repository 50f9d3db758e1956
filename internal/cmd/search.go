package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/output"
)

var searchCmd = &cobra.Command{
	Use:   "search <domain> [path-pattern]",
	Short: "Discover archived paths on a domain",
	Long: `Search the Wayback Machine index for archived paths on a domain and its
www form. The optional pattern supports * wildcards ('*team*', '/blog/*').
Each path is reported once with its latest capture on or before the cutoff.`,
	Example: `  webarchive search nonprofit.org '*program*'
  webarchive search example.com --limit 100 --output-format json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) > 1 {
			pattern = args[1]
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		return runTool(cmd, core.ToolSearchSite, "search-"+args[0], func(stack *snapshotStack, cutoff core.CutoffContext) (func(output.Formatter) (string, error), error) {
			result, err := stack.Service.SearchSiteArchives(cmd.Context(), core.SearchRequest{
				Domain:      args[0],
				PathPattern: pattern,
				Limit:       limit,
				Cutoff:      cutoff,
			})
			if err != nil {
				return nil, err
			}
			return func(f output.Formatter) (string, error) { return f.FormatSearch(result) }, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().Int("limit", 30, "Maximum unique paths to return (max 100)")
	addOutputFlags(searchCmd, "table|json|markdown")
	addCutoffFlag(searchCmd)
}
