// Package cli implements the Tally command-line interface using Cobra.
// Subcommands talk to the same services the daemon serves over HTTP,
// opened in-process against the shared SQLite state.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Tally — screen-time accountability engine",
	Long: `Tally keeps score of your screen-time promises.
Weekly credits, a flat accountability fee when you blow a limit,
streaks, achievements, and a pet whose health mirrors your usage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
