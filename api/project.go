package api

// Project is a parsed project manifest. It names the project and declares
// the instance tree it builds.
type Project struct {
	// Name of the project. Used as the root instance name.
	Name string `json:"name" yaml:"name"`
	// Tree is the root node of the declared instance tree.
	Tree *ProjectNode `json:"tree" yaml:"tree"`
}

// ProjectNode declares one instance in a project tree.
//
// A node with Path grafts whatever the filesystem produces at that path into
// the tree, then applies ClassName and Properties on top. A node without Path
// is synthesized from its declaration alone.
type ProjectNode struct {
	// ClassName overrides or sets the instance class.
	ClassName string `json:"$className,omitempty" yaml:"$className,omitempty"`
	// Path is relative to the folder holding the manifest.
	Path string `json:"$path,omitempty" yaml:"$path,omitempty"`
	// Properties are untyped or explicitly typed property values.
	Properties map[string]any `json:"$properties,omitempty" yaml:"$properties,omitempty"`
	// Children by declared name.
	Children map[string]*ProjectNode `json:"-" yaml:"-"`
	// IgnoreUnknownInstances is copied onto the snapshot metadata of the node.
	IgnoreUnknownInstances bool `json:"$ignoreUnknownInstances,omitempty" yaml:"$ignoreUnknownInstances,omitempty"`
}
