package middleware

import (
	"github.com/agentic-research/grove/internal/codec"
	"github.com/agentic-research/grove/internal/codec/rbxm"
	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

func snapshotBinaryModel(ictx *snapshot.InstanceContext, fs vfs.VFS, p string) (*snapshot.InstanceSnapshot, error) {
	isFile, err := statFile(fs, p)
	if err != nil || !isFile {
		return nil, err
	}
	name, ok := MatchFileName(p, ".rbxm")
	if !ok {
		return nil, nil
	}

	data, err := read(fs, p)
	if err != nil {
		return nil, err
	}
	root, err := rbxm.Decode(data)
	if err != nil {
		return nil, decodeError(p, err)
	}
	return singleRoot(ictx, p, name, root)
}

// singleRoot re-roots the only top-level instance of a decoded model under
// the name derived from its file.
func singleRoot(ictx *snapshot.InstanceContext, p, name string, root *codec.Instance) (*snapshot.InstanceSnapshot, error) {
	if n := len(root.Children); n != 1 {
		return nil, decodeErrorf(p, "model files must contain exactly one top-level instance, found %d", n)
	}
	snap := root.Children[0].Snapshot().
		WithName(name).
		WithMetadata(fileMetadata(ictx, p))
	return &snap, nil
}
