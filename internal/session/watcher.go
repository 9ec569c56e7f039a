package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher monitors a file for changes using fsnotify with a polling
// fallback. The daemon watches both the state file and the active
// transcript so presence updates land within a tick of the hook firing.
type Watcher struct {
	// path is the absolute path to the file being monitored.
	path string
	// name is the file's base name, used to filter directory events.
	name string
	// events delivers a signal each time the file changes.
	// The channel is buffered to 1 so back-to-back writes coalesce.
	events chan struct{}
	// done is closed by [Watcher.Close] to signal goroutines to exit.
	done chan struct{}
	// fsw is the underlying fsnotify watcher; nil when polling.
	fsw *fsnotify.Watcher
	// once ensures [Watcher.Close] is idempotent.
	once sync.Once
	// polling is true when the watcher has fallen back to stat-based polling.
	polling atomic.Bool
	// pollInterval is the duration between stat calls in polling mode.
	pollInterval time.Duration
}

// NewWatcher creates a new Watcher for the given file path.
// It uses fsnotify as the primary change detection mechanism and falls
// back to polling if fsnotify is unavailable or the watch can't be added.
//
// The watch is placed on the parent directory and filtered by base name:
// the file is replaced by atomic rename on every write, and an inotify
// watch on the path itself would go stale with the old inode after the
// first replace.
func NewWatcher(path string) (*Watcher, error) {
	w := &Watcher{
		path:         path,
		name:         filepath.Base(path),
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 2 * time.Second,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	dir := filepath.Dir(path)
	w.fsw = fsw
	if err := fsw.Add(dir); err != nil {
		slog.Info("cannot watch directory, falling back to polling", "path", dir, "error", err)
		fsw.Close()
		w.fsw = nil
		w.polling.Store(true)
		go w.poll()
		return w, nil
	}

	go w.watch()
	return w, nil
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events returns a channel that receives a signal when the file changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

// watch loops over directory events, forwarding write/create
// notifications for the watched file name. A rename into place arrives
// as Create. If fsnotify encounters an error, watch closes the native
// watcher and falls back to [Watcher.poll].
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.fsw.Close()
			w.fsw = nil
			w.polling.Store(true)
			go w.poll()
			return
		}
	}
}

// poll periodically stats the file and sends a notification when the
// modification time advances. It runs as a fallback when fsnotify is
// unavailable.
func (w *Watcher) poll() {
	var lastMod time.Time
	info, err := os.Stat(w.path)
	if err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				w.notify()
			}
		}
	}
}

// notify sends a single signal to the events channel. If a signal is
// already pending the call is a no-op, coalescing rapid successive changes.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
		// Channel already has a pending event, skip
	}
}
