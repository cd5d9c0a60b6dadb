package rules

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source hands out the current rule tables.
type Source interface {
	Tables() *Tables
}

// Static is a Source that never changes.
type Static struct {
	T *Tables
}

// Tables implements Source.
func (s Static) Tables() *Tables { return s.T }

// Watcher is a Source backed by a YAML file that is reloaded when it
// changes on disk. A file that fails to parse leaves the previous tables
// in place.
type Watcher struct {
	path string

	mu      sync.RWMutex
	current *Tables

	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	onReload func(*Tables, error)
	debounce time.Duration
}

// NewWatcher loads path and starts watching it for changes.
func NewWatcher(path string) (*Watcher, error) {
	t, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rules watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:     path,
		current:  t,
		watcher:  fw,
		done:     make(chan struct{}),
		debounce: 100 * time.Millisecond,
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// OnReload registers a callback invoked after every reload attempt.
func (w *Watcher) OnReload(fn func(*Tables, error)) {
	w.mu.Lock()
	w.onReload = fn
	w.mu.Unlock()
}

// Tables implements Source.
func (w *Watcher) Tables() *Tables {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("rules watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	t, err := Load(w.path)

	w.mu.Lock()
	if err == nil {
		w.current = t
	}
	cb := w.onReload
	w.mu.Unlock()

	if err != nil {
		slog.Warn("rules reload failed, keeping previous tables", "path", w.path, "error", err)
	} else {
		slog.Info("rules reloaded", "path", w.path)
	}
	if cb != nil {
		cb(t, err)
	}
}
