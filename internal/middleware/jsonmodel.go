package middleware

import (
	"fmt"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// snapshotJSONModel handles .model.json files:
//
//	{
//	  "ClassName": "Model",
//	  "Properties": {"Value": {"Type": "Vector3", "Value": [1, 2, 3]}},
//	  "Children": [{"Name": "Part", "ClassName": "Part"}]
//	}
//
// The root's Name, if any, is replaced by the file name.
func snapshotJSONModel(ictx *snapshot.InstanceContext, fs vfs.VFS, p string) (*snapshot.InstanceSnapshot, error) {
	isFile, err := statFile(fs, p)
	if err != nil || !isFile {
		return nil, err
	}
	name, ok := MatchFileName(p, ".model.json")
	if !ok {
		return nil, nil
	}

	data, err := read(fs, p)
	if err != nil {
		return nil, err
	}
	raw, err := oj.Parse(data)
	if err != nil {
		return nil, decodeError(p, err)
	}
	snap, err := jsonModelInstance(raw, name)
	if err != nil {
		return nil, decodeError(p, err)
	}
	snap = snap.WithMetadata(fileMetadata(ictx, p))
	return &snap, nil
}

func jsonModelInstance(raw any, name string) (snapshot.InstanceSnapshot, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return snapshot.InstanceSnapshot{}, fmt.Errorf("instance must be a JSON object, got %T", raw)
	}

	className, _ := obj["ClassName"].(string)
	if className == "" {
		return snapshot.InstanceSnapshot{}, fmt.Errorf("instance %q has no ClassName", name)
	}
	if name == "" {
		name, _ = obj["Name"].(string)
		if name == "" {
			return snapshot.InstanceSnapshot{}, fmt.Errorf("child of class %s has no Name", className)
		}
	}

	snap := snapshot.New(name, className)
	if rawProps, ok := obj["Properties"]; ok {
		m, ok := rawProps.(map[string]any)
		if !ok {
			return snapshot.InstanceSnapshot{}, fmt.Errorf("%s: Properties must be an object", name)
		}
		props, err := propertiesFromAny(m)
		if err != nil {
			return snapshot.InstanceSnapshot{}, fmt.Errorf("%s: %w", name, err)
		}
		snap = snap.WithProperties(props)
	}

	if rawChildren, ok := obj["Children"]; ok {
		list, ok := rawChildren.([]any)
		if !ok {
			return snapshot.InstanceSnapshot{}, fmt.Errorf("%s: Children must be an array", name)
		}
		children := make([]snapshot.InstanceSnapshot, 0, len(list))
		for _, c := range list {
			child, err := jsonModelInstance(c, "")
			if err != nil {
				return snapshot.InstanceSnapshot{}, fmt.Errorf("%s: %w", name, err)
			}
			children = append(children, child)
		}
		snap = snap.WithChildren(children)
	}
	return snap, nil
}
