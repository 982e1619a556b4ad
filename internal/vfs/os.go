package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
)

// Root is a BillyVFS over the host filesystem, chrooted at the parent of
// the directory being served so the served entry keeps its own name.
type Root struct {
	*BillyVFS

	// Dir is the host directory the filesystem is rooted at.
	Dir string
	// Path is the VFS path of the served entry.
	Path string
}

// OpenDir serves target (a file or directory) from the host filesystem.
func OpenDir(target string) (*Root, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	parent := filepath.Dir(abs)
	return &Root{
		BillyVFS: New(osfs.New(parent)),
		Dir:      parent,
		Path:     "/" + filepath.Base(abs),
	}, nil
}

// FromOS converts a host path into a VFS path. ok is false for paths
// outside the root.
func (r *Root) FromOS(p string) (string, bool) {
	rel, err := filepath.Rel(r.Dir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "/", true
	}
	return "/" + filepath.ToSlash(rel), true
}

// ToOS converts a VFS path into a host path.
func (r *Root) ToOS(p string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}
