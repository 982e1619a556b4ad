package middleware

import (
	"errors"
	"io/fs"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

func stat(v vfs.VFS, p string) (vfs.Metadata, error) {
	meta, err := v.Metadata(p)
	if err != nil {
		return vfs.Metadata{}, ioError(p, err)
	}
	return meta, nil
}

func read(v vfs.VFS, p string) ([]byte, error) {
	data, err := v.Read(p)
	if err != nil {
		return nil, ioError(p, err)
	}
	return data, nil
}

// statFile returns whether p is a regular file. Directories are not
// claimed by the file middlewares.
func statFile(v vfs.VFS, p string) (bool, error) {
	meta, err := stat(v, p)
	if err != nil {
		return false, err
	}
	return !meta.IsDir, nil
}

// probe reports whether p exists as a file. A missing path is not an error.
func probe(v vfs.VFS, p string) (bool, error) {
	meta, err := v.Metadata(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioError(p, err)
	}
	return !meta.IsDir, nil
}

// fileMetadata is the metadata of an instance backed by exactly one file.
func fileMetadata(ictx *snapshot.InstanceContext, p string) snapshot.InstanceMetadata {
	return snapshot.NewMetadata().
		WithInstigatingSource(p).
		WithContext(ictx)
}
