package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grove/internal/middleware"
	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

var (
	enableText      bool
	validateScripts bool
	strictMatching  bool
	parallelism     int
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:           "grove",
	Short:         "Grove: snapshot a project directory into an instance tree",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.BoolVar(&enableText, "text", false, "Turn .txt files into StringValue instances")
	f.BoolVar(&validateScripts, "validate-scripts", false, "Reject .lua files with syntax errors")
	f.BoolVar(&strictMatching, "strict", false, "Fail when two formats claim the same path")
	f.IntVarP(&parallelism, "parallel", "j", 0, "Snapshot directory children with up to N goroutines")
	f.BoolVarP(&verbose, "verbose", "v", false, "Log every middleware decision")
}

func instanceContext() *snapshot.InstanceContext {
	return &snapshot.InstanceContext{
		EnableTextFiles: enableText,
		ValidateScripts: validateScripts,
		StrictMatching:  strictMatching,
		Parallelism:     parallelism,
	}
}

// snapshotTarget serves target from the host filesystem and snapshots it.
func snapshotTarget(target string) (*vfs.Root, *snapshot.InstanceSnapshot, error) {
	root, err := vfs.OpenDir(target)
	if err != nil {
		return nil, nil, err
	}
	snap, err := middleware.SnapshotFromVFS(instanceContext(), root, root.Path)
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		return nil, nil, fmt.Errorf("%s: no format recognizes this path", target)
	}
	return root, snap, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "grove:", err)
		os.Exit(1)
	}
}
