package registry

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"codemend/internal/logging"
)

// Watcher merges externally-written snapshot updates into a live
// registry. In multi-process deployments several engines share one
// snapshot file; merge-on-change keeps their learned mappings
// converging without any process truncating another's writes.
type Watcher struct {
	registry *Registry
	fw       *fsnotify.Watcher
	done     chan struct{}
}

// Watch starts watching the registry's snapshot file. Returns an error
// when the registry has no snapshot path or the watch cannot be set up.
func Watch(r *Registry) (*Watcher, error) {
	if r.snapshotPath == "" {
		return nil, fmt.Errorf("registry has no snapshot path to watch")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors and atomic renames replace the file
	// node, which would silently drop a file-level watch.
	if err := fw.Add(filepath.Dir(r.snapshotPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch snapshot directory: %w", err)
	}

	w := &Watcher{registry: r, fw: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	target := filepath.Clean(w.registry.snapshotPath)
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.registry.Load(); err != nil {
				logging.Get(logging.CategoryRegistry).Warn("snapshot reload failed: %v", err)
			} else {
				logging.Registry("Merged external snapshot update: %s", event.Name)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryRegistry).Warn("watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
