// Package vfs is the filesystem capability the snapshot middleware reads
// through. BillyVFS adapts any billy.Filesystem (os-backed or in-memory)
// and caches file contents until a path is invalidated.
package vfs

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrNotDir is returned by ListChildren for paths that are not directories.
var ErrNotDir = errors.New("not a directory")

// Metadata describes one filesystem entry.
type Metadata struct {
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// VFS is the read side of a filesystem. Implementations must be safe for
// concurrent use. Paths are slash-separated.
type VFS interface {
	Metadata(p string) (Metadata, error)
	Read(p string) ([]byte, error)
	ListChildren(p string) ([]string, error)
}

const defaultCacheSize = 1024

// BillyVFS implements VFS over a billy.Filesystem.
type BillyVFS struct {
	mu    sync.Mutex // serializes access to the underlying filesystem
	fs    billy.Filesystem
	cache *contentCache
}

// New wraps fs with a bounded content cache.
func New(fs billy.Filesystem) *BillyVFS {
	return &BillyVFS{
		fs:    fs,
		cache: newContentCache(defaultCacheSize),
	}
}

// Filesystem returns the wrapped filesystem.
func (v *BillyVFS) Filesystem() billy.Filesystem { return v.fs }

func (v *BillyVFS) Metadata(p string) (Metadata, error) {
	v.mu.Lock()
	info, err := v.fs.Stat(p)
	v.mu.Unlock()
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{IsDir: info.IsDir(), Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (v *BillyVFS) Read(p string) ([]byte, error) {
	if data, ok := v.cache.get(p); ok {
		return data, nil
	}
	v.mu.Lock()
	data, err := util.ReadFile(v.fs, p)
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}
	v.cache.put(p, data)
	return data, nil
}

// ListChildren returns the full paths of the entries directly under p,
// sorted by name.
func (v *BillyVFS) ListChildren(p string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	info, err := v.fs.Stat(p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: p, Err: ErrNotDir}
	}
	entries, err := v.fs.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", p, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, path.Join(p, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate evicts cached content for the given paths.
// Called when the filesystem reports a change.
func (v *BillyVFS) Invalidate(paths ...string) {
	for _, p := range paths {
		v.cache.remove(p)
	}
}

// contentCache is a simple FIFO-evicting bounded cache for file contents.
type contentCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	keys    []string
	maxSize int
}

func newContentCache(maxSize int) *contentCache {
	return &contentCache{
		entries: make(map[string][]byte, maxSize),
		keys:    make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

func (c *contentCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *contentCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}
	if len(c.entries) >= c.maxSize {
		evict := c.keys[0]
		c.keys = c.keys[1:]
		delete(c.entries, evict)
	}
	c.entries[key] = value
	c.keys = append(c.keys, key)
}

func (c *contentCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}
