// Package project loads project manifests.
//
// Three encodings are accepted and produce the same api.Project:
//
//	*.project.json  keys starting with "$" are directives, the rest are children
//	*.project.yaml  same shape as JSON (also *.project.yml)
//	*.project.hcl   nested node "Name" { ... } blocks
package project

import (
	"errors"
	"fmt"
	"path"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/grove/api"
)

// Extensions lists the manifest suffixes, in lookup order.
var Extensions = []string{".project.json", ".project.yaml", ".project.yml", ".project.hcl"}

// DefaultFile is the manifest base name that marks a project directory.
const DefaultFile = "default"

// ErrUnknownFormat is returned for manifests with an unsupported suffix.
var ErrUnknownFormat = errors.New("unknown project manifest format")

// IsManifest reports whether p names a project manifest and returns the
// project name derived from it.
func IsManifest(p string) (string, bool) {
	base := path.Base(p)
	for _, ext := range Extensions {
		if name, ok := strings.CutSuffix(base, ext); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// Load parses a manifest. The format is picked from the suffix of p.
func Load(p string, data []byte) (*api.Project, error) {
	base := path.Base(p)
	var (
		proj *api.Project
		err  error
	)
	switch {
	case strings.HasSuffix(base, ".project.json"):
		proj, err = loadJSON(data)
	case strings.HasSuffix(base, ".project.yaml"), strings.HasSuffix(base, ".project.yml"):
		proj, err = loadYAML(data)
	case strings.HasSuffix(base, ".project.hcl"):
		proj, err = loadHCL(base, data)
	default:
		return nil, fmt.Errorf("%s: %w", p, ErrUnknownFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	if proj.Tree == nil {
		return nil, fmt.Errorf("parse %s: missing tree", p)
	}
	return proj, nil
}

func loadJSON(data []byte) (*api.Project, error) {
	var raw map[string]any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return fromMap(raw)
}

func loadYAML(data []byte) (*api.Project, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return fromMap(raw)
}

func fromMap(raw map[string]any) (*api.Project, error) {
	proj := &api.Project{}
	if name, ok := raw["name"]; ok {
		s, ok := name.(string)
		if !ok {
			return nil, fmt.Errorf("name must be a string, got %T", name)
		}
		proj.Name = s
	}
	if tree, ok := raw["tree"]; ok {
		m, ok := tree.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tree must be an object, got %T", tree)
		}
		node, err := nodeFromMap("tree", m)
		if err != nil {
			return nil, err
		}
		proj.Tree = node
	}
	return proj, nil
}

func nodeFromMap(where string, m map[string]any) (*api.ProjectNode, error) {
	node := &api.ProjectNode{}
	for key, v := range m {
		switch key {
		case "$className":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%s: $className must be a string", where)
			}
			node.ClassName = s
		case "$path":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%s: $path must be a string", where)
			}
			node.Path = s
		case "$properties":
			props, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: $properties must be an object", where)
			}
			node.Properties = props
		case "$ignoreUnknownInstances":
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%s: $ignoreUnknownInstances must be a bool", where)
			}
			node.IgnoreUnknownInstances = b
		default:
			if strings.HasPrefix(key, "$") {
				// Unknown directives are ignored so newer manifests still load.
				continue
			}
			cm, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: child %q must be an object", where, key)
			}
			child, err := nodeFromMap(where+"."+key, cm)
			if err != nil {
				return nil, err
			}
			if node.Children == nil {
				node.Children = make(map[string]*api.ProjectNode)
			}
			node.Children[key] = child
		}
	}
	return node, nil
}
