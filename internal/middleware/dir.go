package middleware

import (
	"path"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// initMetaFile is the marker inside a directory that overrides the
// directory instance's class and properties.
const initMetaFile = "init.meta.json"

func snapshotDir(ictx *snapshot.InstanceContext, fs vfs.VFS, p string, open manifests) (*snapshot.InstanceSnapshot, error) {
	meta, err := stat(fs, p)
	if err != nil {
		return nil, err
	}
	if !meta.IsDir {
		return nil, nil
	}
	snap, err := snapshotDirAt(ictx, fs, p, nil, open)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// snapshotDirAt builds the folder snapshot for directory p. Children whose
// base name is in skip are left to the caller.
func snapshotDirAt(ictx *snapshot.InstanceContext, fs vfs.VFS, p string, skip []string, open manifests) (snapshot.InstanceSnapshot, error) {
	entries, err := fs.ListChildren(p)
	if err != nil {
		return snapshot.InstanceSnapshot{}, ioError(p, err)
	}
	slices.Sort(entries)

	children := entries[:0:0]
	for _, e := range entries {
		name := fileName(e)
		if strings.HasPrefix(name, ".") || name == initMetaFile || slices.Contains(skip, name) {
			continue
		}
		children = append(children, e)
	}

	results, err := snapshotChildren(ictx, fs, children, open)
	if err != nil {
		return snapshot.InstanceSnapshot{}, err
	}

	kids := make([]snapshot.InstanceSnapshot, 0, len(results))
	relevant := []string{p}
	for _, r := range results {
		if r == nil {
			continue
		}
		kids = append(kids, *r)
		relevant = snapshot.MergePaths(relevant, r.Metadata.RelevantPaths)
	}

	snap := snapshot.New(fileName(p), snapshot.DefaultContainerClass).
		WithChildren(kids).
		WithMetadata(snapshot.NewMetadata().
			WithInstigatingSource(p).
			WithRelevantPaths(relevant...).
			WithContext(ictx))

	return applyInitMeta(fs, p, snap)
}

// snapshotChildren dispatches every child path. The result slice lines up
// with children. With Parallelism set the children run concurrently, and
// the reported error is the one from the earliest child in listing order,
// so the outcome does not depend on scheduling.
func snapshotChildren(ictx *snapshot.InstanceContext, fs vfs.VFS, children []string, open manifests) ([]*snapshot.InstanceSnapshot, error) {
	results := make([]*snapshot.InstanceSnapshot, len(children))

	if ictx.Parallelism < 2 || len(children) < 2 {
		for i, c := range children {
			snap, err := snapshotFromVFS(ictx, fs, c, open)
			if err != nil {
				return nil, err
			}
			results[i] = snap
		}
		return results, nil
	}

	var (
		mu       sync.Mutex
		firstBad = len(children)
		errs     = make([]error, len(children))
		g        errgroup.Group
	)
	g.SetLimit(ictx.Parallelism)
	for i, c := range children {
		g.Go(func() error {
			mu.Lock()
			skip := i > firstBad
			mu.Unlock()
			if skip {
				return nil
			}

			snap, err := snapshotFromVFS(ictx, fs, c, open)
			if err != nil {
				mu.Lock()
				firstBad = min(firstBad, i)
				mu.Unlock()
				errs[i] = err
				return nil
			}
			results[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// applyInitMeta overlays init.meta.json from directory dir, if present.
func applyInitMeta(fs vfs.VFS, dir string, snap snapshot.InstanceSnapshot) (snapshot.InstanceSnapshot, error) {
	metaPath := path.Join(dir, initMetaFile)
	ok, err := probe(fs, metaPath)
	if err != nil || !ok {
		return snap, err
	}
	data, err := read(fs, metaPath)
	if err != nil {
		return snap, err
	}
	mf, err := parseMetaFile(data)
	if err != nil {
		return snap, decodeError(metaPath, err)
	}

	if mf.ClassName != "" {
		snap = snap.WithClassName(mf.ClassName)
	}
	snap = snap.WithProperties(mf.Properties)
	snap.Metadata = snap.Metadata.WithRelevantPaths(metaPath)
	return snap, nil
}
