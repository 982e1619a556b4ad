package middleware

import (
	"fmt"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// snapshotUserPlugins offers path to each context plugin in order. The
// first plugin that returns a snapshot wins. Metadata the plugin left unset
// is filled in as for a single-file instance.
func snapshotUserPlugins(ictx *snapshot.InstanceContext, fs vfs.VFS, p string) (*snapshot.InstanceSnapshot, error) {
	for _, plugin := range ictx.Plugins {
		snap, err := plugin.Snapshot(ictx, fs, p)
		if err != nil {
			return nil, decodeError(p, fmt.Errorf("plugin %s: %w", plugin.Name(), err))
		}
		if snap == nil {
			continue
		}

		out := *snap
		m := out.Metadata
		if m.InstigatingSource == "" && len(m.RelevantPaths) == 0 {
			m = m.WithInstigatingSource(p)
		}
		if m.Context == nil {
			m = m.WithContext(ictx)
		}
		out.Metadata = m
		return &out, nil
	}
	return nil, nil
}
