package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect archive request rate limits",
}

func init() {
	rateLimitCmd.AddCommand(rateLimitShowCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
