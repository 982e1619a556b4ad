package middleware

import (
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/agentic-research/grove/api"
	"github.com/agentic-research/grove/internal/project"
	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// snapshotProjectPath claims manifest files and directories that hold a
// default manifest.
func snapshotProjectPath(ictx *snapshot.InstanceContext, fs vfs.VFS, p string, open manifests) (*snapshot.InstanceSnapshot, error) {
	meta, err := stat(fs, p)
	if err != nil {
		return nil, err
	}

	manifest, fallback := "", ""
	if meta.IsDir {
		for _, ext := range project.Extensions {
			candidate := path.Join(p, project.DefaultFile+ext)
			ok, err := probe(fs, candidate)
			if err != nil {
				return nil, err
			}
			if ok {
				manifest = candidate
				break
			}
		}
		if manifest == "" {
			return nil, nil
		}
		fallback = fileName(p)
	} else {
		name, ok := project.IsManifest(p)
		if !ok || strings.HasPrefix(fileName(p), ".") {
			return nil, nil
		}
		manifest, fallback = p, name
	}

	if open.has(manifest) {
		return nil, decodeErrorf(manifest, "project includes itself via %s", strings.Join(open.with(manifest), " -> "))
	}
	data, err := read(fs, manifest)
	if err != nil {
		return nil, err
	}
	proj, err := project.Load(manifest, data)
	if err != nil {
		return nil, decodeError(manifest, err)
	}

	name := proj.Name
	if name == "" {
		name = fallback
	}
	folder := path.Dir(manifest)
	snap, err := projectNode(ictx, fs, folder, name, proj.Tree, open.with(manifest))
	if err != nil {
		return nil, err
	}
	snap.Metadata = snap.Metadata.WithRelevantPaths(manifest)
	return snap, nil
}

// SnapshotProjectNode builds the subtree declared by node. Relative $path
// references resolve against projectFolder.
//
// A node with a $path takes its snapshot from the filesystem and then
// applies the node's class and properties on top; the filesystem
// provenance is kept. A node without one becomes a declared container.
// Declared children follow any filesystem children, sorted by name. The
// result is always named name.
func SnapshotProjectNode(ictx *snapshot.InstanceContext, fs vfs.VFS, projectFolder, name string, node *api.ProjectNode) (*snapshot.InstanceSnapshot, error) {
	if ictx == nil {
		ictx = &snapshot.InstanceContext{}
	}
	return projectNode(ictx, fs, projectFolder, name, node, nil)
}

// manifests lists the project manifests being expanded on the current
// branch of a walk, outermost first. Reaching one of them again is a cycle.
type manifests []string

func (m manifests) has(p string) bool { return slices.Contains(m, p) }

// with returns m plus p without sharing m's backing array, so sibling
// branches walked in parallel never see each other's entries.
func (m manifests) with(p string) manifests {
	return append(slices.Clip(m), p)
}

// projectNode does the work of SnapshotProjectNode. open holds the
// manifests already being expanded above this node.
func projectNode(ictx *snapshot.InstanceContext, fs vfs.VFS, folder, name string, node *api.ProjectNode, open manifests) (*snapshot.InstanceSnapshot, error) {
	if node == nil {
		return nil, decodeErrorf(folder, "project node %q is empty", name)
	}

	var snap snapshot.InstanceSnapshot
	if node.Path != "" {
		target := resolveProjectPath(folder, node.Path)
		fsSnap, err := snapshotFromVFS(ictx, fs, target, open)
		if err != nil {
			return nil, err
		}
		if fsSnap == nil {
			return nil, decodeErrorf(target, "project node %q refers to a path no middleware claims", name)
		}
		snap = *fsSnap
	} else {
		class := node.ClassName
		if class == "" {
			class = snapshot.DefaultContainerClass
		}
		snap = snapshot.New(name, class).WithMetadata(snapshot.NewMetadata().
			WithDeclared(true).
			WithContext(ictx))
	}

	if node.ClassName != "" {
		snap = snap.WithClassName(node.ClassName)
	}
	if len(node.Properties) > 0 {
		raw := maps.Clone(node.Properties)
		if class, ok := raw["ClassName"]; ok {
			s, ok := class.(string)
			if !ok || s == "" {
				return nil, decodeErrorf(folder, "project node %q: ClassName must be a non-empty string", name)
			}
			snap = snap.WithClassName(s)
			delete(raw, "ClassName")
		}
		props, err := propertiesFromAny(raw)
		if err != nil {
			return nil, decodeErrorf(folder, "project node %q: %w", name, err)
		}
		snap = snap.WithProperties(props)
	}

	names := slices.Sorted(maps.Keys(node.Children))
	children := slices.Clone(snap.Children)
	relevant := snap.Metadata.RelevantPaths
	for _, childName := range names {
		child, err := projectNode(ictx, fs, folder, childName, node.Children[childName], open)
		if err != nil {
			return nil, err
		}
		children = append(children, *child)
		relevant = snapshot.MergePaths(relevant, child.Metadata.RelevantPaths)
	}
	snap = snap.WithChildren(children).WithName(name)
	snap.Metadata.RelevantPaths = relevant
	if node.IgnoreUnknownInstances {
		snap.Metadata = snap.Metadata.WithIgnoreUnknownInstances(true)
	}
	return &snap, nil
}

func resolveProjectPath(folder, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(folder, p)
}
