// Package watch keeps a snapshot tree current as files change.
//
// A Session owns one tree and the index of its relevant paths. Apply takes
// a batch of changed paths and re-snapshots only the smallest subtrees that
// read them. A Watcher turns fsnotify events into such batches.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/agentic-research/grove/internal/middleware"
	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// Source is a VFS whose cached contents can be dropped.
type Source interface {
	vfs.VFS
	Invalidate(paths ...string)
}

// Update describes the outcome of one Apply.
type Update struct {
	// Rebuilt lists the instance paths that were snapshotted again, with
	// names joined by "/".
	Rebuilt []string
}

// Session holds the current tree for one root path.
type Session struct {
	mu    sync.Mutex
	fs    Source
	ictx  *snapshot.InstanceContext
	root  string
	tree  *snapshot.InstanceSnapshot
	index *snapshot.PathIndex
}

// NewSession snapshots root and returns a session tracking it.
func NewSession(ictx *snapshot.InstanceContext, src Source, root string) (*Session, error) {
	if ictx == nil {
		ictx = &snapshot.InstanceContext{}
	}
	s := &Session{fs: src, ictx: ictx, root: root}
	if err := s.rebuildRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

// Tree returns the current tree. The caller must not modify it. Apply
// never writes to a tree it has handed out; it works on a copy and swaps
// it in once every rebuild succeeded.
func (s *Session) Tree() *snapshot.InstanceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

func (s *Session) rebuildRoot() error {
	snap, err := middleware.SnapshotFromVFS(s.ictx, s.fs, s.root)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no middleware claims %s", s.root)
	}
	s.tree = snap
	s.index = snapshot.NewPathIndex(snap)
	return nil
}

// Apply re-snapshots the parts of the tree that depend on changed.
//
// A node is rebuilt from its instigating source. Nodes without one, nodes
// inside a declared project tree, and nodes whose source no longer exists
// hand the work to their parent. When any rebuild fails the tree and index
// stay exactly as they were before the call.
func (s *Session) Apply(changed []string) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed = slices.DeleteFunc(slices.Clone(changed), func(p string) bool { return !s.underRoot(p) })
	if len(changed) == 0 {
		return Update{}, nil
	}
	s.fs.Invalidate(changed...)

	targets := s.index.Innermost(s.index.Affected(changed...))
	if len(targets) == 0 {
		return Update{}, nil
	}

	prevTree, prevIndex := s.tree, s.index
	s.tree = prevTree.Clone()
	s.index = snapshot.NewPathIndex(s.tree)
	upd, err := s.rebuildAll(targets)
	if err != nil {
		s.tree, s.index = prevTree, prevIndex
		return Update{}, err
	}
	s.index = snapshot.NewPathIndex(s.tree)
	return upd, nil
}

func (s *Session) rebuildAll(targets []uint32) (Update, error) {
	var (
		done []uint32
		upd  Update
	)
	for _, id := range targets {
		if slices.ContainsFunc(done, func(d uint32) bool { return s.index.Contains(d, id) }) {
			continue
		}
		rebuilt, err := s.rebuild(id)
		if err != nil {
			return Update{}, err
		}
		if rebuilt == 0 {
			// The whole tree was replaced; nothing else is pending.
			return Update{Rebuilt: []string{s.tree.Name}}, nil
		}
		done = append(done, rebuilt)
		upd.Rebuilt = append(upd.Rebuilt, strings.Join(s.index.InstancePath(rebuilt), "/"))
	}
	return upd, nil
}

// rebuild replaces node id, or the nearest ancestor that can be rebuilt,
// and returns the id that was replaced.
func (s *Session) rebuild(id uint32) (uint32, error) {
	for id = s.rebuildable(id); id != 0; {
		node := s.index.Node(id)
		source := node.Metadata.InstigatingSource

		snap, err := middleware.SnapshotFromVFS(s.ictx, s.fs, source)
		switch {
		case errors.Is(err, fs.ErrNotExist), err == nil && snap == nil:
			slog.Debug("source gone, rebuilding parent", "path", source)
			parent, _ := s.index.Parent(id)
			id = s.rebuildable(parent)
			continue
		case err != nil:
			return 0, err
		}

		*node = *snap
		s.propagate(id, snap.Metadata.RelevantPaths)
		slog.Debug("rebuilt instance", "path", source, "name", snap.Name)
		return id, nil
	}

	if err := s.rebuildRoot(); err != nil {
		return 0, err
	}
	return 0, nil
}

// rebuildable walks up from id to the first node that can be snapshotted
// on its own. 0 means the root.
func (s *Session) rebuildable(id uint32) uint32 {
	for cur := id; cur != 0; {
		parent, _ := s.index.Parent(cur)
		if s.index.Node(cur).Metadata.InstigatingSource == "" || s.declaredAbove(cur) {
			cur = parent
			continue
		}
		return cur
	}
	return 0
}

func (s *Session) declaredAbove(id uint32) bool {
	for cur, ok := id, true; ok; cur, ok = s.index.Parent(cur) {
		if s.index.Node(cur).Metadata.Declared {
			return true
		}
	}
	return false
}

// propagate merges paths into the relevant paths of the ancestors of id,
// so a later change under the rebuilt subtree still reaches them.
func (s *Session) propagate(id uint32, paths []string) {
	for cur, ok := s.index.Parent(id); ok; cur, ok = s.index.Parent(cur) {
		n := s.index.Node(cur)
		n.Metadata = n.Metadata.WithRelevantPaths(paths...)
	}
}

// underRoot reports whether p is the session root or below it.
func (s *Session) underRoot(p string) bool {
	if s.root == "/" {
		return true
	}
	return p == s.root || strings.HasPrefix(p, s.root+"/")
}
