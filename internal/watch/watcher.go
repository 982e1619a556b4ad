package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last event
// before handing a batch over.
const DefaultDebounce = 100 * time.Millisecond

// Handler receives one debounced batch of changed host paths, sorted and
// without duplicates.
type Handler func(paths []string)

// Watcher watches a host directory tree and batches change events.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  Handler
	watcher  *fsnotify.Watcher
}

// NewWatcher prepares a watcher for dir. Call Run to start it.
func NewWatcher(dir string, debounce time.Duration, handler Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{dir: dir, debounce: debounce, handler: handler, watcher: fw}, nil
}

// Run watches until ctx is done. Pending changes are flushed before it
// returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	if err := w.addRecursive(w.dir); err != nil {
		return err
	}

	var (
		pending []string
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		slices.Sort(pending)
		batch := slices.Compact(pending)
		pending = nil
		w.handler(batch)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return nil
			}
			if hidden(ev.Name) {
				continue
			}
			pending = append(pending, ev.Name)
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						slog.Warn("watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				flush()
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && hidden(p) {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

// hidden matches the entries the directory middleware skips.
func hidden(p string) bool {
	return strings.HasPrefix(filepath.Base(p), ".")
}
