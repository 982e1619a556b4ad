// Package codec holds the decoded instance tree shared by the model file
// codecs in its subpackages.
package codec

import "github.com/agentic-research/grove/internal/snapshot"

// RootClass is the class of the synthetic root the decoders return.
const RootClass = "DataModel"

// Instance is a decoded instance. Name is taken from the Name property,
// which is not repeated in Properties.
type Instance struct {
	Name       string
	ClassName  string
	Properties map[string]snapshot.Value
	Children   []*Instance
}

// NewInstance returns an instance with an empty property map.
func NewInstance(name, className string) *Instance {
	return &Instance{Name: name, ClassName: className, Properties: map[string]snapshot.Value{}}
}

// NewRoot returns an empty synthetic root.
func NewRoot() *Instance {
	return NewInstance(RootClass, RootClass)
}

// Snapshot converts the instance and its descendants to snapshots with
// empty metadata.
func (in *Instance) Snapshot() snapshot.InstanceSnapshot {
	children := make([]snapshot.InstanceSnapshot, 0, len(in.Children))
	for _, c := range in.Children {
		children = append(children, c.Snapshot())
	}
	return snapshot.New(in.Name, in.ClassName).
		WithProperties(in.Properties).
		WithChildren(children)
}

// FromSnapshot converts a snapshot tree back into codec instances.
func FromSnapshot(s *snapshot.InstanceSnapshot) *Instance {
	in := NewInstance(s.Name, s.ClassName)
	for k, v := range s.Properties {
		in.Properties[k] = v
	}
	for i := range s.Children {
		in.Children = append(in.Children, FromSnapshot(&s.Children[i]))
	}
	return in
}
