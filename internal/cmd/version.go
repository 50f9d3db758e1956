package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/chestnutforty/mcp-webarchive/internal/config"
	"github.com/chestnutforty/mcp-webarchive/internal/server/handlers"
)

var (
	extended    bool
	versionJSON bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. --extended adds build, toolchain and tool catalog details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		deps := crucible.GetVersion()

		tools := make([]string, 0, 3)
		for _, d := range handlers.Catalog() {
			tools = append(tools, d.Name)
		}

		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"name":       config.AppName,
				"version":    versionInfo.Version,
				"git_commit": versionInfo.Commit,
				"build_date": versionInfo.BuildDate,
				"go_version": runtime.Version(),
				"gofulmen":   deps.Gofulmen,
				"crucible":   deps.Crucible,
				"tools":      tools,
			})
		}

		fmt.Fprintf(out, "%s %s\n", config.AppName, versionInfo.Version)
		if !extended {
			return nil
		}
		fmt.Fprintf(out, "Commit:   %s\nBuilt:    %s\nGo:       %s\n", versionInfo.Commit, versionInfo.BuildDate, runtime.Version())
		fmt.Fprintf(out, "Gofulmen: %s\nCrucible: %s\n", deps.Gofulmen, deps.Crucible)
		fmt.Fprintln(out, "\nTools:")
		for _, name := range tools {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show build, dependency and tool details")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print version information as JSON")
}
