package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/grove/internal/snapshot"
)

var showCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print the instance tree built from a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, snap, err := snapshotTarget(args[0])
		if err != nil {
			return err
		}
		return snapshot.Render(cmd.OutOrStdout(), snap)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
