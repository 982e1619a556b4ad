package watch

import (
	"slices"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

func newSession(t *testing.T, files map[string]string) (billy.Filesystem, *Session) {
	t.Helper()
	fs := memfs.New()
	for p, content := range files {
		require.NoError(t, util.WriteFile(fs, p, []byte(content), 0o644))
	}
	s, err := NewSession(nil, vfs.New(fs), "/src")
	require.NoError(t, err)
	return fs, s
}

func source(t *testing.T, s *Session, names ...string) string {
	t.Helper()
	node := s.Tree()
	for _, name := range names {
		var next *snapshot.InstanceSnapshot
		for i := range node.Children {
			if node.Children[i].Name == name {
				next = &node.Children[i]
			}
		}
		require.NotNil(t, next, "no child %q", name)
		node = next
	}
	src, ok := node.Properties["Source"].(snapshot.String)
	require.True(t, ok)
	return string(src)
}

func TestSession_RebuildsInnermost(t *testing.T) {
	fs, s := newSession(t, map[string]string{
		"/src/a.lua":     "return 1",
		"/src/lib/b.lua": "return 2",
	})
	assert.Equal(t, "return 2", source(t, s, "lib", "b"))

	require.NoError(t, util.WriteFile(fs, "/src/lib/b.lua", []byte("return 3"), 0o644))
	upd, err := s.Apply([]string{"/src/lib/b.lua"})
	require.NoError(t, err)

	assert.Equal(t, []string{"src/lib/b"}, upd.Rebuilt)
	assert.Equal(t, "return 3", source(t, s, "lib", "b"))
	assert.Equal(t, "return 1", source(t, s, "a"))
}

func TestSession_NewFileRebuildsParent(t *testing.T) {
	fs, s := newSession(t, map[string]string{
		"/src/lib/b.lua": "return 2",
	})

	require.NoError(t, util.WriteFile(fs, "/src/lib/c.lua", []byte("return 'c'"), 0o644))
	upd, err := s.Apply([]string{"/src/lib/c.lua"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib"}, upd.Rebuilt)
	assert.Equal(t, "return 'c'", source(t, s, "lib", "c"))

	// The new file is indexed: editing it now rebuilds only the script.
	require.NoError(t, util.WriteFile(fs, "/src/lib/c.lua", []byte("return 'd'"), 0o644))
	upd, err = s.Apply([]string{"/src/lib/c.lua"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib/c"}, upd.Rebuilt)
	assert.Equal(t, "return 'd'", source(t, s, "lib", "c"))
}

func TestSession_RemovedFileRebuildsParent(t *testing.T) {
	fs, s := newSession(t, map[string]string{
		"/src/lib/b.lua": "return 2",
		"/src/lib/c.lua": "return 3",
	})

	require.NoError(t, fs.Remove("/src/lib/c.lua"))
	upd, err := s.Apply([]string{"/src/lib/c.lua"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib"}, upd.Rebuilt)

	lib := s.Tree().Children[0]
	require.Len(t, lib.Children, 1)
	assert.Equal(t, "b", lib.Children[0].Name)
}

func TestSession_DeclaredTreeRebuildsRoot(t *testing.T) {
	fs, s := newSession(t, map[string]string{
		"/src/default.project.json": `{"name": "Game", "tree": {"Lib": {"$path": "lib"}}}`,
		"/src/lib/b.lua":            "return 2",
	})
	assert.Equal(t, "Game", s.Tree().Name)

	require.NoError(t, util.WriteFile(fs, "/src/lib/b.lua", []byte("return 5"), 0o644))
	upd, err := s.Apply([]string{"/src/lib/b.lua"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Game"}, upd.Rebuilt)
	assert.Equal(t, "return 5", source(t, s, "Lib", "b"))
}

func TestSession_IgnoresUnrelatedPaths(t *testing.T) {
	_, s := newSession(t, map[string]string{"/src/a.lua": "return 1"})

	upd, err := s.Apply([]string{"/other/x.lua", "/srcfoo/y.lua"})
	require.NoError(t, err)
	assert.Empty(t, upd.Rebuilt)
}

func TestSession_ErrorKeepsTree(t *testing.T) {
	fs, s := newSession(t, map[string]string{"/src/m.model.json": `{"ClassName": "Model"}`})
	before := s.Tree()

	require.NoError(t, util.WriteFile(fs, "/src/m.model.json", []byte(`{`), 0o644))
	_, err := s.Apply([]string{"/src/m.model.json"})
	assert.Error(t, err)
	assert.Same(t, before, s.Tree())
	assert.Equal(t, "Model", s.Tree().Children[0].ClassName)
}

func TestSession_FailedBatchLeavesTreeIntact(t *testing.T) {
	fs, s := newSession(t, map[string]string{
		"/src/A/a.lua":        "return 1",
		"/src/B/b.model.json": `{"ClassName": "Model"}`,
		"/src/B/keep.lua":     "return 'keep'",
	})
	before := s.Tree()

	// One batch touches both subtrees; the second rebuild fails.
	require.NoError(t, util.WriteFile(fs, "/src/A/new.lua", []byte("return 'new'"), 0o644))
	require.NoError(t, util.WriteFile(fs, "/src/B/b.model.json", []byte(`{`), 0o644))
	_, err := s.Apply([]string{"/src/A/new.lua", "/src/B/b.model.json"})
	require.Error(t, err)
	assert.Same(t, before, s.Tree())
	require.Len(t, s.Tree().Children[0].Children, 1, "partial rebuild leaked into the tree")

	// Later edits under the subtree that was rebuilt and rolled back are
	// still applied to the live tree.
	require.NoError(t, util.WriteFile(fs, "/src/A/a.lua", []byte("return 9"), 0o644))
	upd, err := s.Apply([]string{"/src/A/a.lua"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/A/a"}, upd.Rebuilt)
	assert.Equal(t, "return 9", source(t, s, "A", "a"))
}

func TestSession_TreeIsNotMutatedByApply(t *testing.T) {
	fs, s := newSession(t, map[string]string{
		"/src/a.lua":     "return 1",
		"/src/lib/b.lua": "return 2",
	})
	before := s.Tree()
	beforePaths := slices.Clone(before.Metadata.RelevantPaths)

	require.NoError(t, util.WriteFile(fs, "/src/lib/c.lua", []byte("return 3"), 0o644))
	_, err := s.Apply([]string{"/src/lib/c.lua"})
	require.NoError(t, err)

	assert.NotSame(t, before, s.Tree())
	assert.Len(t, before.Children[1].Children, 1)
	assert.Equal(t, beforePaths, before.Metadata.RelevantPaths)
	assert.Len(t, s.Tree().Children[1].Children, 2)
}
