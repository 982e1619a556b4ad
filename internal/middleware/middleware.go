// Package middleware turns filesystem entries into instance snapshots.
//
// Each supported encoding is one Kind. SnapshotFromVFS tries the kinds in a
// fixed priority order and returns the first snapshot produced. A middleware
// that does not recognize a path returns nil, nil; an error means it
// recognized the path and failed to read or decode it.
//
// The order, most specific first:
//
//	Project      *.project.json and directories holding default.project.json
//	UserPlugins  plugins from the InstanceContext
//	JSONModel    *.model.json
//	XMLModel     *.rbxmx, *.rbxlx
//	BinaryModel  *.rbxm
//	Lua          *.server.lua, *.client.lua, *.lua, directories with init.lua
//	CSV          *.csv localization tables
//	Text         *.txt (only with EnableTextFiles)
//	Dir          any other directory
//
// Moving a kind changes how ambiguous entries are classified. A directory
// holding a project manifest is a project, not a folder, because Project is
// tried before Dir.
package middleware

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// Kind identifies one format middleware.
type Kind int

const (
	KindProject Kind = iota
	KindUserPlugins
	KindJSONModel
	KindXMLModel
	KindBinaryModel
	KindLua
	KindCSV
	KindText
	KindDir
)

var kindNames = [...]string{
	KindProject:     "project",
	KindUserPlugins: "user_plugins",
	KindJSONModel:   "json_model",
	KindXMLModel:    "xml_model",
	KindBinaryModel: "binary_model",
	KindLua:         "lua",
	KindCSV:         "csv",
	KindText:        "txt",
	KindDir:         "dir",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var order = []Kind{
	KindProject,
	KindUserPlugins,
	KindJSONModel,
	KindXMLModel,
	KindBinaryModel,
	KindLua,
	KindCSV,
	KindText,
	KindDir,
}

// Order returns the dispatch priority, most specific first.
func Order() []Kind { return slices.Clone(order) }

// FromVFS runs this middleware alone on path.
func (k Kind) FromVFS(ictx *snapshot.InstanceContext, fs vfs.VFS, path string) (*snapshot.InstanceSnapshot, error) {
	if ictx == nil {
		ictx = &snapshot.InstanceContext{}
	}
	return k.fromVFS(ictx, fs, path, nil)
}

func (k Kind) fromVFS(ictx *snapshot.InstanceContext, fs vfs.VFS, path string, open manifests) (*snapshot.InstanceSnapshot, error) {
	switch k {
	case KindProject:
		return snapshotProjectPath(ictx, fs, path, open)
	case KindUserPlugins:
		return snapshotUserPlugins(ictx, fs, path)
	case KindJSONModel:
		return snapshotJSONModel(ictx, fs, path)
	case KindXMLModel:
		return snapshotXMLModel(ictx, fs, path)
	case KindBinaryModel:
		return snapshotBinaryModel(ictx, fs, path)
	case KindLua:
		return snapshotLua(ictx, fs, path, open)
	case KindCSV:
		return snapshotCSV(ictx, fs, path)
	case KindText:
		return snapshotText(ictx, fs, path)
	case KindDir:
		return snapshotDir(ictx, fs, path, open)
	}
	return nil, fmt.Errorf("unknown middleware %v", k)
}

// SnapshotFromVFS generates a snapshot of the instances at path.
//
// It returns nil, nil when no middleware claims the path. The first error
// from any middleware is returned immediately; later middlewares are not
// tried.
func SnapshotFromVFS(ictx *snapshot.InstanceContext, fs vfs.VFS, path string) (*snapshot.InstanceSnapshot, error) {
	if ictx == nil {
		ictx = &snapshot.InstanceContext{}
	}
	return snapshotFromVFS(ictx, fs, path, nil)
}

// snapshotFromVFS is SnapshotFromVFS with the manifests whose expansion is
// in progress on this branch of the walk.
func snapshotFromVFS(ictx *snapshot.InstanceContext, fs vfs.VFS, path string, open manifests) (*snapshot.InstanceSnapshot, error) {
	for i, k := range order {
		slog.Debug("trying middleware", "middleware", k, "path", path)

		snap, err := k.fromVFS(ictx, fs, path, open)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			continue
		}
		slog.Debug("middleware success", "middleware", k, "path", path)

		if ictx.StrictMatching && k != KindDir {
			if err := checkAmbiguous(ictx, fs, path, open, k, order[i+1:]); err != nil {
				return nil, err
			}
		}

		named := snap.WithName(ictx.NameFor(path, snap.Name))
		return &named, nil
	}

	slog.Debug("no middleware returned a snapshot", "path", path)
	return nil, nil
}

// checkAmbiguous runs the remaining format middlewares and fails if any of
// them also claims path. Dir is the generic fallback and never conflicts.
func checkAmbiguous(ictx *snapshot.InstanceContext, fs vfs.VFS, path string, open manifests, winner Kind, rest []Kind) error {
	for _, k := range rest {
		if k == KindDir {
			continue
		}
		snap, err := k.fromVFS(ictx, fs, path, open)
		if err != nil {
			return err
		}
		if snap != nil {
			return &Error{
				Kind: AmbiguousMatch,
				Path: path,
				Err:  fmt.Errorf("claimed by both %s and %s middlewares", winner, k),
			}
		}
	}
	return nil
}
