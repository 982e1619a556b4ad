package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsManifest(t *testing.T) {
	name, ok := IsManifest("/game/default.project.json")
	assert.True(t, ok)
	assert.Equal(t, "default", name)

	name, ok = IsManifest("lib.project.hcl")
	assert.True(t, ok)
	assert.Equal(t, "lib", name)

	_, ok = IsManifest("/game/.project.json")
	assert.False(t, ok)
	_, ok = IsManifest("/game/project.json")
	assert.False(t, ok)
}

func TestLoadJSON(t *testing.T) {
	src := `{
		"name": "Game",
		"tree": {
			"$className": "DataModel",
			"ReplicatedStorage": {
				"$className": "ReplicatedStorage",
				"Shared": {
					"$path": "src/shared",
					"$properties": {"ClassName": "Folder", "Tag": "x"}
				}
			},
			"$ignoreUnknownInstances": true
		}
	}`
	proj, err := Load("/game/default.project.json", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "Game", proj.Name)
	require.NotNil(t, proj.Tree)
	assert.Equal(t, "DataModel", proj.Tree.ClassName)
	assert.True(t, proj.Tree.IgnoreUnknownInstances)

	rs := proj.Tree.Children["ReplicatedStorage"]
	require.NotNil(t, rs)
	assert.Equal(t, "ReplicatedStorage", rs.ClassName)

	shared := rs.Children["Shared"]
	require.NotNil(t, shared)
	assert.Equal(t, "src/shared", shared.Path)
	assert.Equal(t, map[string]any{"ClassName": "Folder", "Tag": "x"}, shared.Properties)
	assert.Empty(t, shared.Children)
}

func TestLoadYAML(t *testing.T) {
	src := `
tree:
  $className: Model
  Parts:
    $path: parts
    $properties:
      Count: 3
`
	proj, err := Load("/lib/thing.project.yaml", []byte(src))
	require.NoError(t, err)

	assert.Empty(t, proj.Name)
	assert.Equal(t, "Model", proj.Tree.ClassName)
	parts := proj.Tree.Children["Parts"]
	require.NotNil(t, parts)
	assert.Equal(t, "parts", parts.Path)
	assert.Equal(t, 3, parts.Properties["Count"])
}

func TestLoadHCL(t *testing.T) {
	src := `
name = "Game"

tree {
  class_name = "DataModel"

  node "Workspace" {
    class_name = "Workspace"
    properties = {
      Gravity = 196.2
      Label   = "main"
      Count   = 7
    }

    node "Map" {
      path = "map"
    }
  }
}
`
	proj, err := Load("/game/default.project.hcl", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "Game", proj.Name)
	assert.Equal(t, "DataModel", proj.Tree.ClassName)

	ws := proj.Tree.Children["Workspace"]
	require.NotNil(t, ws)
	assert.Equal(t, "Workspace", ws.ClassName)
	assert.Equal(t, map[string]any{"Gravity": 196.2, "Label": "main", "Count": int64(7)}, ws.Properties)
	require.Contains(t, ws.Children, "Map")
	assert.Equal(t, "map", ws.Children["Map"].Path)
	assert.Nil(t, ws.Children["Map"].Properties)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
	}{
		{"unknown suffix", "/a/default.project.toml", `x = 1`},
		{"bad json", "/a/default.project.json", `{`},
		{"missing tree", "/a/default.project.json", `{"name": "x"}`},
		{"tree not object", "/a/default.project.json", `{"tree": 4}`},
		{"child not object", "/a/default.project.json", `{"tree": {"A": "b"}}`},
		{"path not string", "/a/default.project.yml", "tree:\n  $path: 4\n"},
		{"duplicate hcl node", "/a/default.project.hcl", "tree {\n node \"A\" {}\n node \"A\" {}\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, []byte(tt.src))
			assert.Error(t, err)
		})
	}
}
