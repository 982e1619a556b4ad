package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grove/api"
	"github.com/agentic-research/grove/internal/snapshot"
)

func TestProject_OverrideKeepsProvenance(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/game/default.project.json": `{
			"name": "Game",
			"tree": {
				"$className": "DataModel",
				"Shared": {
					"$path": "src/shared",
					"$properties": {"ClassName": "Folder", "Tag": "common"}
				}
			}
		}`,
		"/game/src/shared/init.lua": "return {}",
		"/game/src/shared/Util.lua": "return 1",
	})

	snap, err := SnapshotFromVFS(nil, fs, "/game")
	require.NoError(t, err)
	assert.Equal(t, "Game", snap.Name)
	assert.Equal(t, "DataModel", snap.ClassName)
	assert.True(t, snap.Metadata.Declared)
	assert.Contains(t, snap.Metadata.RelevantPaths, "/game/default.project.json")

	require.Len(t, snap.Children, 1)
	shared := snap.Children[0]
	assert.Equal(t, "Shared", shared.Name)
	assert.Equal(t, "Folder", shared.ClassName, "ClassName property overrides the init script class")
	assert.NotContains(t, shared.Properties, "ClassName")
	assert.Equal(t, snapshot.String("common"), shared.Properties["Tag"])
	assert.Equal(t, snapshot.String("return {}"), shared.Properties["Source"], "filesystem properties survive")
	assert.Equal(t, "/game/src/shared", shared.Metadata.InstigatingSource)
	assert.False(t, shared.Metadata.Declared)
	assert.Equal(t, []string{"Util"}, childNames(&shared))
}

func TestProject_NamedManifestFile(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/lib/tools.project.yaml": "tree:\n  $path: src\n",
		"/lib/src/a.lua":          "return 1",
	})

	snap, err := SnapshotFromVFS(nil, fs, "/lib/tools.project.yaml")
	require.NoError(t, err)
	assert.Equal(t, "tools", snap.Name, "name falls back to the manifest name")
	assert.Equal(t, "Folder", snap.ClassName)
	assert.Equal(t, "/lib/src", snap.Metadata.InstigatingSource)
	assert.Equal(t, []string{"/lib/src", "/lib/src/a.lua", "/lib/tools.project.yaml"}, snap.Metadata.RelevantPaths)
}

func TestProject_DirectoryNameFallback(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/Pkg/default.project.hcl": "tree {\n  class_name = \"Model\"\n}\n",
	})

	snap, err := SnapshotFromVFS(nil, fs, "/Pkg")
	require.NoError(t, err)
	assert.Equal(t, "Pkg", snap.Name)
	assert.Equal(t, "Model", snap.ClassName)
}

func TestProject_NestedInDir(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/src/inner/default.project.json": `{"tree": {"$className": "Configuration"}}`,
		"/src/x.lua":                      "return 1",
	})

	snap, err := SnapshotFromVFS(nil, fs, "/src")
	require.NoError(t, err)
	assert.Equal(t, []string{"inner", "x"}, childNames(snap))
	assert.Equal(t, "Configuration", snap.Children[0].ClassName)
	assert.Contains(t, snap.Metadata.RelevantPaths, "/src/inner/default.project.json")
}

func TestProject_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		path  string
		want  error
	}{
		{
			name:  "invalid manifest",
			files: map[string]string{"/p/default.project.json": `{"tree": 1}`},
			path:  "/p",
			want:  ErrDecode,
		},
		{
			name:  "missing path",
			files: map[string]string{"/p/default.project.json": `{"tree": {"$path": "gone"}}`},
			path:  "/p",
			want:  ErrIO,
		},
		{
			name: "unclaimed path",
			files: map[string]string{
				"/p/default.project.json": `{"tree": {"$path": "icon.png"}}`,
				"/p/icon.png":             "png",
			},
			path: "/p",
			want: ErrDecode,
		},
		{
			name:  "path refers to own folder",
			files: map[string]string{"/p/default.project.json": `{"tree": {"$path": "."}}`},
			path:  "/p",
			want:  ErrDecode,
		},
		{
			name: "manifests include each other",
			files: map[string]string{
				"/a/default.project.json": `{"tree": {"$path": "../b"}}`,
				"/b/default.project.json": `{"tree": {"$path": "../a"}}`,
			},
			path: "/a",
			want: ErrDecode,
		},
		{
			name: "cycle through a plain directory",
			files: map[string]string{
				"/a/default.project.json":       `{"tree": {"Lib": {"$path": "../lib"}}}`,
				"/lib/x.lua":                    "return 1",
				"/lib/sub/default.project.json": `{"tree": {"$path": "/a"}}`,
			},
			path: "/a",
			want: ErrDecode,
		},
		{
			name:  "bad property",
			files: map[string]string{"/p/default.project.json": `{"tree": {"$properties": {"X": [1]}}}`},
			path:  "/p",
			want:  ErrDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newTestFS(t, tt.files)
			_, err := SnapshotFromVFS(nil, fs, tt.path)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSnapshotProjectNode_Declared(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/proj/models/Car.rbxm": encodeModel(t, part("Body")),
	})
	node := &api.ProjectNode{
		ClassName: "DataModel",
		Children: map[string]*api.ProjectNode{
			"Workspace": {
				ClassName:  "Workspace",
				Properties: map[string]any{"Gravity": 196.2},
				Children: map[string]*api.ProjectNode{
					"Vehicle": {Path: "models/Car.rbxm"},
				},
			},
			"Lighting": {ClassName: "Lighting"},
			"Assets":   {},
		},
	}

	snap, err := SnapshotProjectNode(nil, fs, "/proj", "Game", node)
	require.NoError(t, err)

	assert.Equal(t, "Game", snap.Name)
	assert.Equal(t, "DataModel", snap.ClassName)
	assert.Empty(t, snap.Metadata.InstigatingSource)
	assert.True(t, snap.Metadata.Declared)
	assert.Equal(t, []string{"Assets", "Lighting", "Workspace"}, childNames(snap), "declared children are sorted")

	assets := snap.Children[0]
	assert.Equal(t, "Folder", assets.ClassName)
	assert.True(t, assets.Metadata.Declared)

	ws := snap.Children[2]
	assert.Equal(t, snapshot.Float64(196.2), ws.Properties["Gravity"])
	require.Len(t, ws.Children, 1)
	vehicle := ws.Children[0]
	assert.Equal(t, "Vehicle", vehicle.Name)
	assert.Equal(t, "Part", vehicle.ClassName)
	assert.Equal(t, "/proj/models/Car.rbxm", vehicle.Metadata.InstigatingSource)

	assert.Equal(t, []string{"/proj/models/Car.rbxm"}, snap.Metadata.RelevantPaths)
}

func TestSnapshotProjectNode_FilesystemChildrenFirst(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/proj/src/b.lua": "return 1",
		"/proj/src/z.lua": "return 2",
	})
	node := &api.ProjectNode{
		Path: "src",
		Children: map[string]*api.ProjectNode{
			"a": {ClassName: "Configuration"},
		},
	}

	snap, err := SnapshotProjectNode(nil, fs, "/proj", "Root", node)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "z", "a"}, childNames(snap))
	assert.Equal(t, "/proj/src", snap.Metadata.InstigatingSource)
}

func TestSnapshotProjectNode_NilNode(t *testing.T) {
	fs := newTestFS(t, map[string]string{"/proj/": ""})

	_, err := SnapshotProjectNode(nil, fs, "/proj", "Root", nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestProject_CycleNamesTheChain(t *testing.T) {
	for _, parallelism := range []int{0, 4} {
		fs := newTestFS(t, map[string]string{
			"/a/default.project.json": `{"tree": {"$path": "../b"}}`,
			"/b/default.project.json": `{"tree": {"$path": "../a"}}`,
		})

		_, err := SnapshotFromVFS(&snapshot.InstanceContext{Parallelism: parallelism}, fs, "/a")
		var merr *Error
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, DecodeFailure, merr.Kind)
		assert.Equal(t, "/a/default.project.json", merr.Path)
		assert.ErrorContains(t, err, "/a/default.project.json -> /b/default.project.json -> /a/default.project.json")
	}
}

func TestProject_SharedTargetIsNotACycle(t *testing.T) {
	files := map[string]string{
		"/a/default.project.json": `{"tree": {"X": {"$path": "../b"}, "Y": {"$path": "../c"}}}`,
		"/b/x.lua":                "return 1",
		"/c/default.project.json": `{"tree": {"$path": "../b"}}`,
	}
	for _, parallelism := range []int{0, 4} {
		snap, err := SnapshotFromVFS(&snapshot.InstanceContext{Parallelism: parallelism}, newTestFS(t, files), "/a")
		require.NoError(t, err)
		assert.Equal(t, []string{"X", "Y"}, childNames(snap))
		assert.Equal(t, []string{"x"}, childNames(&snap.Children[0]))
		assert.Equal(t, []string{"x"}, childNames(&snap.Children[1]))
	}
}

func TestProject_IgnoreUnknownInstances(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"/game/default.project.json": `{
			"tree": {
				"Kept": {"$ignoreUnknownInstances": true},
				"Src": {"$path": "src", "$ignoreUnknownInstances": true},
				"Plain": {}
			}
		}`,
		"/game/src/a.lua": "return 1",
	})

	snap, err := SnapshotFromVFS(nil, fs, "/game")
	require.NoError(t, err)
	assert.False(t, snap.Metadata.IgnoreUnknownInstances)
	require.Equal(t, []string{"Kept", "Plain", "Src"}, childNames(snap))
	assert.True(t, snap.Children[0].Metadata.IgnoreUnknownInstances)
	assert.False(t, snap.Children[1].Metadata.IgnoreUnknownInstances)
	assert.True(t, snap.Children[2].Metadata.IgnoreUnknownInstances)
	assert.False(t, snap.Children[2].Children[0].Metadata.IgnoreUnknownInstances)
}
