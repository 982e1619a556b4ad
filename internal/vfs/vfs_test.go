package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillyVFS_MetadataAndRead(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/src/a.txt", []byte("hello"), 0o644))

	v := New(fs)

	meta, err := v.Metadata("/src")
	require.NoError(t, err)
	assert.True(t, meta.IsDir)

	meta, err = v.Metadata("/src/a.txt")
	require.NoError(t, err)
	assert.False(t, meta.IsDir)
	assert.Equal(t, int64(5), meta.Size)

	data, err := v.Read("/src/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = v.Metadata("/missing")
	assert.Error(t, err)
}

func TestBillyVFS_ListChildrenSorted(t *testing.T) {
	fs := memfs.New()
	for _, name := range []string{"/d/zeta.lua", "/d/alpha.lua", "/d/Mid/x.txt"} {
		require.NoError(t, util.WriteFile(fs, name, nil, 0o644))
	}

	v := New(fs)
	children, err := v.ListChildren("/d")
	require.NoError(t, err)
	assert.Equal(t, []string{"/d/Mid", "/d/alpha.lua", "/d/zeta.lua"}, children)

	_, err = v.ListChildren("/d/alpha.lua")
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestBillyVFS_CacheInvalidate(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/a.txt", []byte("one"), 0o644))

	v := New(fs)
	data, err := v.Read("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, util.WriteFile(fs, "/a.txt", []byte("two"), 0o644))

	data, err = v.Read("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data), "cached content is served until invalidated")

	v.Invalidate("/a.txt")
	data, err = v.Read("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestContentCache_EvictsOldest(t *testing.T) {
	c := newContentCache(2)
	c.put("a", []byte("1"))
	c.put("b", []byte("2"))
	c.put("c", []byte("3"))

	_, ok := c.get("a")
	assert.False(t, ok)
	v, ok := c.get("c")
	require.True(t, ok)
	assert.Equal(t, "3", string(v))

	c.remove("b")
	_, ok = c.get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"c"}, c.keys)
}

func TestOpenDir_PathMapping(t *testing.T) {
	tmp := t.TempDir()
	project := filepath.Join(tmp, "game")
	require.NoError(t, os.MkdirAll(filepath.Join(project, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "src", "main.lua"), []byte("return 1"), 0o644))

	root, err := OpenDir(project)
	require.NoError(t, err)
	assert.Equal(t, "/game", root.Path)

	children, err := root.ListChildren("/game")
	require.NoError(t, err)
	assert.Equal(t, []string{"/game/src"}, children)

	p, ok := root.FromOS(filepath.Join(project, "src", "main.lua"))
	require.True(t, ok)
	assert.Equal(t, "/game/src/main.lua", p)
	assert.Equal(t, filepath.Join(project, "src", "main.lua"), root.ToOS(p))

	_, ok = root.FromOS(filepath.Dir(tmp))
	assert.False(t, ok)
}
