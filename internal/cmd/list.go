package cmd

import (
	"github.com/spf13/cobra"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list <url>",
	Short: "List archived captures of a URL",
	Long: `List Wayback Machine captures of a URL within a date range or a set of years.

--pick selects a subset: closest_to_end, closest_to_start, closest_to_date
(requires --target-date), monthly or yearly.`,
	Example: `  webarchive list example.com --years 2022,2023,2024 --pick yearly
  webarchive list org.com/team --start 2024-01-01 --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		years, err := cmd.Flags().GetIntSlice("years")
		if err != nil {
			return err
		}
		pick, _ := cmd.Flags().GetString("pick")
		target, _ := cmd.Flags().GetString("target-date")
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		return runTool(cmd, core.ToolListSnapshots, "list-"+args[0], func(stack *snapshotStack, cutoff core.CutoffContext) (func(output.Formatter) (string, error), error) {
			result, err := stack.Service.ListAvailableSnapshots(cmd.Context(), core.ListRequest{
				URL:        args[0],
				StartDate:  start,
				EndDate:    end,
				Years:      years,
				Pick:       pick,
				TargetDate: target,
				Limit:      limit,
				Cutoff:     cutoff,
			})
			if err != nil {
				return nil, err
			}
			return func(f output.Formatter) (string, error) { return f.FormatList(result) }, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("start", "", "Start date YYYY-MM-DD")
	listCmd.Flags().String("end", "", "End date YYYY-MM-DD (clamped to the cutoff)")
	listCmd.Flags().IntSlice("years", nil, "Years to query; overrides --start/--end")
	listCmd.Flags().String("pick", "", "Selection: closest_to_end, closest_to_start, closest_to_date, monthly, yearly")
	listCmd.Flags().String("target-date", "", "Target date for --pick closest_to_date")
	listCmd.Flags().Int("limit", 20, "Maximum snapshots to return (max 50)")
	addOutputFlags(listCmd, "table|json|markdown")
	addCutoffFlag(listCmd)
}
