// Package watch re-runs a callback when schema or query files change.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/satishbabariya/sqltyped/internal/debug"
)

// DefaultDelay is the quiet period before the callback runs.
const DefaultDelay = 300 * time.Millisecond

// Watcher watches files and directories for changes to .sql files.
type Watcher struct {
	callback func() error
	watcher  *fsnotify.Watcher
	// files holds watched files; events on their siblings are ignored
	// unless the directory was added too.
	files map[string]bool
	dirs  map[string]bool
	delay time.Duration
	done  chan struct{}
	stop  sync.Once
}

// NewWatcher creates a watcher over paths. Directories are watched
// recursively; for files the containing directory is watched.
func NewWatcher(paths []string, callback func() error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		callback: callback,
		watcher:  watcher,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		delay:    DefaultDelay,
		done:     make(chan struct{}),
	}
	for _, path := range paths {
		if err := w.add(path); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return w, nil
}

// SetDelay changes the debounce delay.
func (w *Watcher) SetDelay(d time.Duration) {
	w.delay = d
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.watcher.Add(filepath.Dir(abs))
	}
	return filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.addDir(p)
		}
		return nil
	})
}

// relevant reports whether an event should trigger the callback.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	path, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if w.files[path] {
		return true
	}
	return w.dirs[filepath.Dir(path)] && strings.EqualFold(filepath.Ext(path), ".sql")
}

func (w *Watcher) addDir(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	w.dirs[dir] = true
	return nil
}

// Start runs the callback once and then after every burst of changes.
func (w *Watcher) Start() error {
	if err := w.callback(); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	go func() {
		debounceTimer := time.NewTimer(w.delay)
		debounceTimer.Stop()
		var debounceCh <-chan time.Time

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && w.dirs[filepath.Dir(event.Name)] {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := w.addDir(event.Name); err != nil {
							debug.Warn("Cannot watch new directory", "path", event.Name, "error", err)
						}
					}
				}
				if w.relevant(event) {
					debug.Debug("File changed", "path", event.Name, "op", event.Op.String())
					debounceTimer.Reset(w.delay)
					debounceCh = debounceTimer.C
				}

			case <-debounceCh:
				if err := w.callback(); err != nil {
					debug.Error("Watch callback failed", "error", err)
				}
				debounceCh = nil

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				debug.Error("Watch error", "error", err)

			case <-w.done:
				debounceTimer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	var err error
	w.stop.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
