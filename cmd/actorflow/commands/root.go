package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "actorflow",
	Short: "Actor runtime and workflow interpreter CLI",
	Long: `actorflow drives a declarative workflow document through the
actor-backed interpreter to its terminal state, and queries the history
of past runs.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
