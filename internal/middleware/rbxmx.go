package middleware

import (
	"github.com/agentic-research/grove/internal/codec"
	"github.com/agentic-research/grove/internal/codec/rbxmx"
	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// snapshotXMLModel handles XML models (.rbxmx), which hold exactly one
// top-level instance, and XML places (.rbxlx), whose top-level instances
// become the children of a DataModel.
func snapshotXMLModel(ictx *snapshot.InstanceContext, fs vfs.VFS, p string) (*snapshot.InstanceSnapshot, error) {
	isFile, err := statFile(fs, p)
	if err != nil || !isFile {
		return nil, err
	}
	name, which, ok := matchFirst(p, ".rbxmx", ".rbxlx")
	if !ok {
		return nil, nil
	}

	data, err := read(fs, p)
	if err != nil {
		return nil, err
	}
	root, err := rbxmx.Decode(data)
	if err != nil {
		return nil, decodeError(p, err)
	}

	if which == 0 {
		return singleRoot(ictx, p, name, root)
	}
	snap := root.Snapshot().
		WithName(name).
		WithClassName(codec.RootClass).
		WithMetadata(fileMetadata(ictx, p))
	return &snap, nil
}
