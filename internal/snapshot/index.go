package snapshot

import (
	"path"

	"github.com/RoaringBitmap/roaring"
)

// PathIndex maps filesystem paths to the instances that depend on them.
//
// Nodes are numbered in pre-order, so the descendants of node i are exactly
// the ids in (i, end[i]]. Each relevant path owns a bitmap of node ids.
type PathIndex struct {
	nodes  []*InstanceSnapshot
	parent []int32
	end    []uint32
	byPath map[string]*roaring.Bitmap
}

// NewPathIndex indexes the relevant paths of every node under root.
func NewPathIndex(root *InstanceSnapshot) *PathIndex {
	ix := &PathIndex{byPath: make(map[string]*roaring.Bitmap)}
	ix.add(root, -1)
	return ix
}

func (ix *PathIndex) add(n *InstanceSnapshot, parent int32) uint32 {
	id := uint32(len(ix.nodes))
	ix.nodes = append(ix.nodes, n)
	ix.parent = append(ix.parent, parent)
	ix.end = append(ix.end, id)

	for _, p := range n.Metadata.RelevantPaths {
		bm, ok := ix.byPath[p]
		if !ok {
			bm = roaring.New()
			ix.byPath[p] = bm
		}
		bm.Add(id)
	}

	last := id
	for i := range n.Children {
		last = ix.add(&n.Children[i], int32(id))
	}
	ix.end[id] = last
	return last
}

// Len returns the number of indexed nodes.
func (ix *PathIndex) Len() int { return len(ix.nodes) }

// Node returns the snapshot with the given id.
func (ix *PathIndex) Node(id uint32) *InstanceSnapshot { return ix.nodes[id] }

// Parent returns the parent of id. ok is false for the root.
func (ix *PathIndex) Parent(id uint32) (parent uint32, ok bool) {
	if p := ix.parent[id]; p >= 0 {
		return uint32(p), true
	}
	return 0, false
}

// Contains reports whether id is ancestor itself or one of its descendants.
func (ix *PathIndex) Contains(ancestor, id uint32) bool {
	return id >= ancestor && id <= ix.end[ancestor]
}

// InstancePath returns the names from the root down to id.
func (ix *PathIndex) InstancePath(id uint32) []string {
	var names []string
	for i := int32(id); i >= 0; i = ix.parent[i] {
		names = append([]string{ix.nodes[i].Name}, names...)
	}
	return names
}

// Affected returns the nodes invalidated by a change at any of the given
// paths. A change invalidates nodes that read the path itself and nodes
// that read its parent directory, since creating or removing an entry
// changes the parent's listing.
func (ix *PathIndex) Affected(changed ...string) *roaring.Bitmap {
	out := roaring.New()
	for _, p := range changed {
		if bm, ok := ix.byPath[p]; ok {
			out.Or(bm)
		}
		if dir := path.Dir(p); dir != p {
			if bm, ok := ix.byPath[dir]; ok {
				out.Or(bm)
			}
		}
	}
	return out
}

// Innermost reduces set to the nodes that have no descendant in set.
// These are the smallest subtrees that need to be snapshotted again.
func (ix *PathIndex) Innermost(set *roaring.Bitmap) []uint32 {
	var out []uint32
	it := set.Iterator()
	for it.HasNext() {
		id := it.Next()
		if int(id) >= len(ix.nodes) {
			continue
		}
		if ix.end[id] > id {
			sub := roaring.New()
			sub.AddRange(uint64(id)+1, uint64(ix.end[id])+1)
			if set.Intersects(sub) {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}
