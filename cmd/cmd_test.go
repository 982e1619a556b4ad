package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grove/internal/codec/rbxm"
	"github.com/agentic-research/grove/internal/store"
)

func writeTree(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Game")
	files := map[string]string{
		"main.server.lua":    "print('hi')",
		"lib/util.lua":       "return {}",
		"lib/init.meta.json": `{"className": "Configuration"}`,
		"notes.txt":          "hello",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	enableText, validateScripts, strictMatching, parallelism, verbose = false, false, false, 0, false
	compression = "lz4"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestShow(t *testing.T) {
	dir := writeTree(t)

	out, err := run(t, "show", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `Folder "Game"`)
	assert.Contains(t, out, `Script "main"`)
	assert.Contains(t, out, `Configuration "lib"`)
	assert.NotContains(t, out, `StringValue "notes"`)

	out, err = run(t, "show", "--text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `StringValue "notes"`)
}

func TestShow_MissingPath(t *testing.T) {
	_, err := run(t, "show", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestBuild_Model(t *testing.T) {
	dir := writeTree(t)
	out := filepath.Join(t.TempDir(), "game.rbxm")

	_, err := run(t, "build", dir, out, "--compression", "zstd")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	root, err := rbxm.Decode(data)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "Game", root.Children[0].Name)
	assert.Equal(t, "Folder", root.Children[0].ClassName)
	assert.Len(t, root.Children[0].Children, 2)
}

func TestBuild_Database(t *testing.T) {
	dir := writeTree(t)
	out := filepath.Join(t.TempDir(), "game.db")

	_, err := run(t, "build", dir, out)
	require.NoError(t, err)

	s, err := store.Open(out)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	tree, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "Game", tree.Name)

	names, err := s.Dependents("/Game/lib/util.lua")
	require.NoError(t, err)
	assert.Equal(t, []string{"Game", "lib", "util"}, names)
}

func TestBuild_Errors(t *testing.T) {
	dir := writeTree(t)

	_, err := run(t, "build", dir, filepath.Join(t.TempDir(), "game.zip"))
	assert.ErrorContains(t, err, "unsupported output")

	_, err = run(t, "build", dir, filepath.Join(t.TempDir(), "game.rbxm"), "--compression", "brotli")
	assert.ErrorContains(t, err, "unknown compression")
}
