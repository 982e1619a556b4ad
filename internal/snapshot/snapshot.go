// Package snapshot defines the instance tree produced from the filesystem.
//
// An InstanceSnapshot describes what an instance subtree should look like.
// It is built bottom-up by the middleware package and never mutated after
// it is handed to a caller: every With* method returns a modified copy.
package snapshot

import (
	"maps"
	"slices"
	"sort"
)

// DefaultContainerClass is the class of directories and declared-only
// project nodes.
const DefaultContainerClass = "Folder"

// InstanceSnapshot is an immutable description of one instance and its
// descendants.
type InstanceSnapshot struct {
	Name       string
	ClassName  string
	Properties map[string]Value
	Children   []InstanceSnapshot
	Metadata   InstanceMetadata
}

// New returns a snapshot with the given name and class and no properties,
// children or metadata.
func New(name, className string) InstanceSnapshot {
	return InstanceSnapshot{
		Name:       name,
		ClassName:  className,
		Properties: map[string]Value{},
	}
}

func (s InstanceSnapshot) WithName(name string) InstanceSnapshot {
	s.Name = name
	return s
}

func (s InstanceSnapshot) WithClassName(className string) InstanceSnapshot {
	s.ClassName = className
	return s
}

// WithProperty sets a single property on a copy of s.
func (s InstanceSnapshot) WithProperty(name string, v Value) InstanceSnapshot {
	props := make(map[string]Value, len(s.Properties)+1)
	maps.Copy(props, s.Properties)
	props[name] = v
	s.Properties = props
	return s
}

// WithProperties overlays props onto a copy of s. Keys in props win.
func (s InstanceSnapshot) WithProperties(props map[string]Value) InstanceSnapshot {
	merged := make(map[string]Value, len(s.Properties)+len(props))
	maps.Copy(merged, s.Properties)
	maps.Copy(merged, props)
	s.Properties = merged
	return s
}

func (s InstanceSnapshot) WithChildren(children []InstanceSnapshot) InstanceSnapshot {
	s.Children = slices.Clone(children)
	return s
}

func (s InstanceSnapshot) WithMetadata(m InstanceMetadata) InstanceSnapshot {
	s.Metadata = m
	return s
}

// Clone returns a copy of s that shares no child slices with s, so nodes
// of the copy can be replaced without affecting s. Property maps and path
// slices are shared; they are only ever replaced, never written.
func (s *InstanceSnapshot) Clone() *InstanceSnapshot {
	c := *s
	if s.Children != nil {
		c.Children = make([]InstanceSnapshot, len(s.Children))
		for i := range s.Children {
			c.Children[i] = *s.Children[i].Clone()
		}
	}
	return &c
}

// Walk visits s and its descendants depth-first, parents before children.
// Returning false from fn skips the children of that node.
func (s *InstanceSnapshot) Walk(fn func(node *InstanceSnapshot) bool) {
	if !fn(s) {
		return
	}
	for i := range s.Children {
		s.Children[i].Walk(fn)
	}
}

// InstanceMetadata records where an instance came from.
type InstanceMetadata struct {
	// InstigatingSource is the path whose removal deletes this instance.
	// Empty for synthetic nodes.
	InstigatingSource string

	// RelevantPaths is every path read to produce the instance, sorted and
	// without duplicates.
	RelevantPaths []string

	// Declared is true when the instance was declared by a project manifest
	// rather than derived from the filesystem alone.
	Declared bool

	// IgnoreUnknownInstances tells a consumer syncing this instance to keep
	// children that exist there but not in the snapshot.
	IgnoreUnknownInstances bool

	// Context is the context the instance was built with. Not owned.
	Context *InstanceContext
}

// NewMetadata returns empty metadata.
func NewMetadata() InstanceMetadata {
	return InstanceMetadata{}
}

// WithInstigatingSource sets the instigating path and adds it to the
// relevant paths.
func (m InstanceMetadata) WithInstigatingSource(path string) InstanceMetadata {
	m.InstigatingSource = path
	if path != "" {
		m.RelevantPaths = MergePaths(m.RelevantPaths, []string{path})
	}
	return m
}

// WithRelevantPaths adds paths to the relevant set.
func (m InstanceMetadata) WithRelevantPaths(paths ...string) InstanceMetadata {
	m.RelevantPaths = MergePaths(m.RelevantPaths, paths)
	return m
}

func (m InstanceMetadata) WithDeclared(declared bool) InstanceMetadata {
	m.Declared = declared
	return m
}

func (m InstanceMetadata) WithIgnoreUnknownInstances(ignore bool) InstanceMetadata {
	m.IgnoreUnknownInstances = ignore
	return m
}

func (m InstanceMetadata) WithContext(ctx *InstanceContext) InstanceMetadata {
	m.Context = ctx
	return m
}

// MergePaths returns the sorted union of a and b.
func MergePaths(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, p := range a {
		set[p] = struct{}{}
	}
	for _, p := range b {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
