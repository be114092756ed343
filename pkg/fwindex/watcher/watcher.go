// Package watcher re-runs the indexer when the watched firmware tree
// changes.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
)

// ErrClosed is returned by Run once the watcher has been closed.
var ErrClosed = errors.New("watcher closed")

// Watcher watches every directory under a root and reports bursts of
// changes as a single debounced callback.
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    map[string]bool
	ignored  map[string]bool
	debounce time.Duration
	mu       sync.RWMutex
	closed   bool
	log      *logging.Logger
}

// New creates a Watcher. A debounce of zero uses the configured default.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = config.DefaultWatchDebounce
	}

	return &Watcher{
		watcher:  fsw,
		paths:    make(map[string]bool),
		ignored:  make(map[string]bool),
		debounce: debounce,
		log:      logging.Get("watcher"),
	}, nil
}

// Ignore suppresses events for the given files and the temp files written
// beside them while they are replaced. The catalog output is ignored this
// way so writing it does not trigger another run.
func (w *Watcher) Ignore(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignored[abs] = true
		}
	}
}

func (w *Watcher) isIgnored(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.ignored[path] {
		return true
	}
	dir, base := filepath.Split(path)
	for p := range w.ignored {
		pdir, pbase := filepath.Split(p)
		if dir == pdir && strings.HasPrefix(base, "."+pbase+".") && strings.HasSuffix(base, ".tmp") {
			return true
		}
	}
	return false
}

// Watch adds watches to root and all of its subdirectories.
// Symlinks are not followed to avoid loops.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "watch", Path: absRoot, Err: errors.New("not a directory")}
	}

	return w.addTree(absRoot)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.log.Warn("skipping unreadable directory", "path", path, "error", walkErr)
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return w.addWatch(path)
		}
		return nil
	})
}

// addWatch adds a single directory to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Watched returns the number of watched directories.
func (w *Watcher) Watched() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.paths)
}

// Run starts the event loop and blocks until ctx is cancelled or the
// watcher is closed. After a quiet period of the debounce duration following
// one or more relevant events, onChange is called with the number of events
// seen. onChange runs on the loop goroutine, so events arriving while it runs
// coalesce into the next call. An onChange error is logged and does not stop
// the loop.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, events int) error) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return ErrClosed
			}
			if !w.handleEvent(event) {
				continue
			}
			if pending == 0 {
				w.log.Debug("change detected", "path", event.Name, "op", event.Op.String())
			}
			pending++
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ErrClosed
			}
			w.log.Error("watcher error", "error", err)

		case <-timer.C:
			n := pending
			pending = 0
			if err := onChange(ctx, n); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.log.Error("change handler failed", "error", err)
			}
		}
	}
}

// handleEvent keeps the watch list current and reports whether the event
// should trigger a run.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod || w.isIgnored(event.Name) {
		return false
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Lstat(event.Name)
		if err == nil && info.IsDir() {
			_ = w.addTree(event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.removeTree(event.Name)
	}
	return true
}

// removeTree forgets path and every watched directory below it.
func (w *Watcher) removeTree(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
