package middleware

import (
	"unicode/utf8"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// snapshotText turns .txt files into StringValue instances when the
// context enables it.
func snapshotText(ictx *snapshot.InstanceContext, fs vfs.VFS, p string) (*snapshot.InstanceSnapshot, error) {
	if !ictx.EnableTextFiles {
		return nil, nil
	}
	isFile, err := statFile(fs, p)
	if err != nil || !isFile {
		return nil, err
	}
	name, ok := MatchFileName(p, ".txt")
	if !ok {
		return nil, nil
	}

	data, err := read(fs, p)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, decodeErrorf(p, "text file is not valid UTF-8")
	}

	snap := snapshot.New(name, "StringValue").
		WithProperty("Value", snapshot.String(data)).
		WithMetadata(fileMetadata(ictx, p))
	return &snap, nil
}
