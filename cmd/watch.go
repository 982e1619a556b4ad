package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grove/internal/store"
	"github.com/agentic-research/grove/internal/vfs"
	"github.com/agentic-research/grove/internal/watch"
)

var (
	watchDB       string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the instance tree of a path current as files change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := vfs.OpenDir(args[0])
		if err != nil {
			return err
		}
		session, err := watch.NewSession(instanceContext(), root, root.Path)
		if err != nil {
			return err
		}

		var db *store.Store
		if watchDB != "" {
			if db, err = store.Open(watchDB); err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if _, err := db.Save(session.Tree()); err != nil {
				return err
			}
		}

		w, err := watch.NewWatcher(root.ToOS(root.Path), watchDebounce, func(paths []string) {
			changed := make([]string, 0, len(paths))
			for _, p := range paths {
				if vp, ok := root.FromOS(p); ok {
					changed = append(changed, vp)
				}
			}
			upd, err := session.Apply(changed)
			if err != nil {
				slog.Error("snapshot failed", "error", err)
				return
			}
			if len(upd.Rebuilt) == 0 {
				return
			}
			slog.Info("rebuilt", "instances", upd.Rebuilt)
			if db != nil {
				if _, err := db.Save(session.Tree()); err != nil {
					slog.Error("save failed", "db", watchDB, "error", err)
				}
			}
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		slog.Info("watching", "path", args[0])
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDB, "db", "", "Mirror the tree into this SQLite database after every change")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a batch of changes is applied")
	rootCmd.AddCommand(watchCmd)
}
