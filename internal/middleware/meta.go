package middleware

import (
	"fmt"

	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/grove/internal/snapshot"
)

// metaFile is the decoded form of an init.meta.json marker:
//
//	{"className": "Model", "properties": {"PrimaryPart": ...}}
type metaFile struct {
	ClassName  string
	Properties map[string]snapshot.Value
}

func parseMetaFile(data []byte) (metaFile, error) {
	raw, err := oj.Parse(data)
	if err != nil {
		return metaFile{}, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return metaFile{}, fmt.Errorf("meta file must be a JSON object")
	}

	var mf metaFile
	if cn, ok := obj["className"]; ok {
		s, ok := cn.(string)
		if !ok {
			return metaFile{}, fmt.Errorf("className must be a string")
		}
		mf.ClassName = s
	}
	if props, ok := obj["properties"]; ok {
		m, ok := props.(map[string]any)
		if !ok {
			return metaFile{}, fmt.Errorf("properties must be an object")
		}
		if mf.Properties, err = propertiesFromAny(m); err != nil {
			return metaFile{}, err
		}
	}
	return mf, nil
}
