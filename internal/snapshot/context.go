package snapshot

import "github.com/agentic-research/grove/internal/vfs"

// InstanceContext is request-scoped configuration shared by every
// middleware call of one snapshot pass. It must not be mutated while a
// pass is running.
type InstanceContext struct {
	// NameOverrides maps a path to the instance name used for it,
	// replacing the name derived from the file name.
	NameOverrides map[string]string

	// Plugins are tried in order before the built-in file formats.
	Plugins []Plugin

	// EnableTextFiles turns .txt files into StringValue instances.
	EnableTextFiles bool

	// ValidateScripts parses script sources and rejects syntax errors.
	ValidateScripts bool

	// StrictMatching reports an ambiguous match when two format
	// middlewares claim the same path, instead of letting priority decide.
	StrictMatching bool

	// Parallelism bounds the goroutines used to snapshot the children of
	// one directory. Values below 2 snapshot children sequentially.
	Parallelism int
}

// NameFor returns the override for path, or fallback.
func (c *InstanceContext) NameFor(path, fallback string) string {
	if c == nil {
		return fallback
	}
	if name, ok := c.NameOverrides[path]; ok && name != "" {
		return name
	}
	return fallback
}

// Plugin is a user-supplied snapshot source.
// Snapshot returns nil, nil for paths the plugin does not handle.
type Plugin interface {
	Name() string
	Snapshot(ctx *InstanceContext, fs vfs.VFS, path string) (*InstanceSnapshot, error)
}
