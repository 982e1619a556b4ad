package middleware

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/grove/internal/codec"
	"github.com/agentic-research/grove/internal/codec/rbxm"
	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

// newTestFS builds an in-memory VFS from path -> content. A path ending in
// "/" creates an empty directory.
func newTestFS(t *testing.T, files map[string]string) *vfs.BillyVFS {
	t.Helper()
	fs := memfs.New()
	for p, content := range files {
		if p[len(p)-1] == '/' {
			require.NoError(t, fs.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, util.WriteFile(fs, p, []byte(content), 0o644))
	}
	return vfs.New(fs)
}

// encodeModel returns an .rbxm blob holding roots.
func encodeModel(t *testing.T, roots ...*codec.Instance) string {
	t.Helper()
	data, err := rbxm.Encode(roots, rbxm.CompressNone)
	require.NoError(t, err)
	return string(data)
}

func part(name string) *codec.Instance {
	in := codec.NewInstance(name, "Part")
	in.Properties["Anchored"] = snapshot.Bool(true)
	return in
}

// stripContext clears the context pointers so trees built with different
// contexts compare equal.
func stripContext(s *snapshot.InstanceSnapshot) {
	s.Walk(func(n *snapshot.InstanceSnapshot) bool {
		n.Metadata.Context = nil
		return true
	})
}

func childNames(s *snapshot.InstanceSnapshot) []string {
	names := make([]string, 0, len(s.Children))
	for _, c := range s.Children {
		names = append(names, c.Name)
	}
	return names
}
