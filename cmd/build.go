package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grove/internal/codec"
	"github.com/agentic-research/grove/internal/codec/rbxm"
	"github.com/agentic-research/grove/internal/store"
)

var compression string

var compressions = map[string]rbxm.Compression{
	"none": rbxm.CompressNone,
	"lz4":  rbxm.CompressLZ4,
	"zstd": rbxm.CompressZstd,
}

var buildCmd = &cobra.Command{
	Use:   "build [path] [output.rbxm|output.db]",
	Short: "Build a binary model or a SQLite snapshot from a path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, output := args[0], args[1]

		start := time.Now()
		_, snap, err := snapshotTarget(source)
		if err != nil {
			return err
		}

		switch ext := filepath.Ext(output); ext {
		case ".rbxm":
			c, ok := compressions[compression]
			if !ok {
				return fmt.Errorf("unknown compression %q (want none, lz4 or zstd)", compression)
			}
			data, err := rbxm.Encode([]*codec.Instance{codec.FromSnapshot(snap)}, c)
			if err != nil {
				return fmt.Errorf("encode %s: %w", output, err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
		case ".db":
			s, err := store.Open(output)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			if _, err := s.Save(snap); err != nil {
				return fmt.Errorf("save %s: %w", output, err)
			}
		default:
			return fmt.Errorf("unsupported output %q: use .rbxm or .db", ext)
		}

		slog.Info("build done", "source", source, "output", output, "elapsed", time.Since(start))
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&compression, "compression", "lz4", "Chunk compression for .rbxm output: none, lz4 or zstd")
	rootCmd.AddCommand(buildCmd)
}
