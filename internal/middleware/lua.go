package middleware

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/lua"

	"github.com/agentic-research/grove/internal/snapshot"
	"github.com/agentic-research/grove/internal/vfs"
)

type scriptSuffix struct {
	suffix    string
	className string
}

// Checked in order: ".lua" would also match "x.server.lua".
var scriptSuffixes = []scriptSuffix{
	{".server.lua", "Script"},
	{".client.lua", "LocalScript"},
	{".lua", "ModuleScript"},
	{".server.luau", "Script"},
	{".client.luau", "LocalScript"},
	{".luau", "ModuleScript"},
}

// initScriptName is reserved: an init script names its directory.
const initScriptName = "init"

func matchScript(p string) (name, className string, ok bool) {
	for _, s := range scriptSuffixes {
		if name, ok := MatchFileName(p, s.suffix); ok {
			return name, s.className, true
		}
	}
	return "", "", false
}

func snapshotLua(ictx *snapshot.InstanceContext, fs vfs.VFS, p string, open manifests) (*snapshot.InstanceSnapshot, error) {
	meta, err := stat(fs, p)
	if err != nil {
		return nil, err
	}
	if meta.IsDir {
		return snapshotLuaInit(ictx, fs, p, open)
	}

	name, className, ok := matchScript(p)
	if !ok || name == initScriptName {
		return nil, nil
	}
	source, err := scriptSource(ictx, fs, p)
	if err != nil {
		return nil, err
	}
	snap := snapshot.New(name, className).
		WithProperty("Source", snapshot.String(source)).
		WithMetadata(fileMetadata(ictx, p))
	return &snap, nil
}

// snapshotLuaInit turns a directory holding an init script into that
// script, with the rest of the directory as its children.
func snapshotLuaInit(ictx *snapshot.InstanceContext, fs vfs.VFS, dir string, open manifests) (*snapshot.InstanceSnapshot, error) {
	for _, s := range scriptSuffixes {
		initPath := path.Join(dir, initScriptName+s.suffix)
		ok, err := probe(fs, initPath)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		source, err := scriptSource(ictx, fs, initPath)
		if err != nil {
			return nil, err
		}
		snap, err := snapshotDirAt(ictx, fs, dir, []string{path.Base(initPath)}, open)
		if err != nil {
			return nil, err
		}
		snap = snap.
			WithClassName(s.className).
			WithProperty("Source", snapshot.String(source))
		snap.Metadata = snap.Metadata.WithRelevantPaths(initPath)
		return &snap, nil
	}
	return nil, nil
}

func scriptSource(ictx *snapshot.InstanceContext, fs vfs.VFS, p string) (string, error) {
	data, err := read(fs, p)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", decodeErrorf(p, "script source is not valid UTF-8")
	}
	// The Lua grammar does not understand Luau type annotations.
	if ictx.ValidateScripts && strings.HasSuffix(p, ".lua") {
		if err := checkLuaSyntax(data); err != nil {
			return "", decodeError(p, err)
		}
	}
	return string(data), nil
}

func checkLuaSyntax(src []byte) error {
	parser := sitter.NewParser()
	parser.SetLanguage(lua.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return fmt.Errorf("parse lua: %w", err)
	}
	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}
	if n := firstErrorNode(root); n != nil {
		pt := n.StartPoint()
		return fmt.Errorf("syntax error at line %d, column %d", pt.Row+1, pt.Column+1)
	}
	return fmt.Errorf("syntax error")
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if found := firstErrorNode(c); found != nil {
			return found
		}
	}
	return nil
}
