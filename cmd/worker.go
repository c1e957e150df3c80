package cmd

import "github.com/spf13/cobra"

// workerCmd is an explicit alias for the root behavior so deployments
// can spell out what the process does.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the dispatch worker loop",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
