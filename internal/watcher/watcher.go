// Package watcher reports changes to a fixed set of input files, such as a
// prompt file and its reference images, so generate --watch can rerun.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"webforge/internal/logging"
)

// Watcher monitors a set of files. It watches their parent directories so
// editors that save through a rename are still seen.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	targets   map[string]bool
	debounce  time.Duration
	onChange  Handler
	// pending maps a target to the time of its latest raw event.
	pending  map[string]time.Time
	mu       sync.Mutex
	done     chan struct{}
	running  bool
	stopOnce sync.Once
}

// New creates a watcher for paths. A debounce of zero uses DefaultDebounce.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("nothing to watch")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		targets:   make(map[string]bool, len(paths)),
		debounce:  debounce,
		pending:   make(map[string]time.Time),
		done:      make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsWatcher.Close()
			return nil, err
		}
		w.targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// OnChange sets the handler for settled changes.
func (w *Watcher) OnChange(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = h
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.processEvents()
	go w.processDebounce()
}

// Stop stops watching and releases the underlying watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// processEvents processes raw fsnotify events.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.record(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", "error", err)
		}
	}
}

// record notes a raw event for a target. Other files in the watched
// directories and chmod-only events are ignored.
func (w *Watcher) record(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	path, err := filepath.Abs(event.Name)
	if err != nil || !w.targets[path] {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounce() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending reports targets that have been quiet for the debounce
// interval. Whether the burst left the file in place is decided by looking
// at the file, not at the last raw event.
func (w *Watcher) flushPending() {
	w.mu.Lock()
	handler := w.onChange
	if handler == nil || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}

	now := time.Now()
	var settled []Change
	for path, seen := range w.pending {
		if now.Sub(seen) < w.debounce {
			continue
		}
		_, err := os.Stat(path)
		settled = append(settled, Change{Path: path, Removed: os.IsNotExist(err), At: seen})
		delete(w.pending, path)
	}
	w.mu.Unlock()

	for _, c := range settled {
		handler(c)
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
