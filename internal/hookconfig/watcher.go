package hookconfig

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchTargets holds callbacks that fire when specific workspace files
// change. Used to hot-reload intents and config without restarting the
// host process.
type WatchTargets struct {
	// OnIntentsChange fires when active_intents.yaml settles after one or
	// more writes. The IntentStore itself re-reads on every call, so this
	// is for hosts that cache intent state (e.g. a dashboard's in-memory
	// snapshot) and need to invalidate it.
	OnIntentsChange func()

	// OnConfigChange fires when config.yaml settles after one or more
	// writes. Typically triggers a reload of dashboard bind settings and
	// ledger tunables.
	OnConfigChange func()
}

// debounceWindow bounds how long the watcher waits, after the last write
// event for a given file, before firing that file's callback. Editors
// commonly emit a burst of several Write/Create events for one logical
// save (truncate, write, chmod), and the orchestration directory also
// gets rewritten wholesale by `hookguard intents init` — without
// coalescing, a single save would trigger a reload once per burst event
// instead of once.
const debounceWindow = 150 * time.Millisecond

// Watcher monitors the .orchestration directory for file changes using
// fsnotify. It watches for modifications to active_intents.yaml and
// config.yaml, debouncing bursts of events per file before firing the
// matching callback.
//
// The watcher runs a background goroutine that processes fsnotify events.
// Call Close() to stop the watcher and release resources.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	done      chan struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
	closing bool
}

// NewWatcher creates a file watcher on the given .orchestration
// directory. It watches for changes to active_intents.yaml and
// config.yaml.
//
// The watcher immediately starts processing events in a background
// goroutine.
func NewWatcher(dir string, targets WatchTargets) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the entire .orchestration directory — fsnotify fires for
	// any file created, written, renamed, or removed within it.
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	w := &Watcher{
		fsWatcher: fw,
		done:      make(chan struct{}),
		timers:    make(map[string]*time.Timer),
	}

	go w.processEvents(targets)

	slog.Info("orchestration directory watcher started", "dir", dir, "debounce", debounceWindow)
	return w, nil
}

// processEvents reads fsnotify events and schedules a debounced callback
// dispatch per matching filename. Runs in a background goroutine until
// Close() is called.
func (w *Watcher) processEvents(targets WatchTargets) {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// Only write and create events matter — not remove or
			// rename, which indicate the file going away.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			name := filepath.Base(event.Name)
			switch name {
			case "active_intents.yaml":
				w.schedule(name, targets.OnIntentsChange)
			case "config.yaml":
				w.schedule(name, targets.OnConfigChange)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("orchestration directory watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// schedule (re)arms a debounce timer for name. Each new event for the
// same file pushes the fire time back by debounceWindow, so a burst of
// events collapses into a single callback invocation once the file has
// been quiet for debounceWindow.
func (w *Watcher) schedule(name string, fire func()) {
	if fire == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		return
	}

	if t, ok := w.timers[name]; ok {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(debounceWindow, func() {
		slog.Info("orchestration file settled, triggering reload", "file", name)
		fire()
	})
}

// Close stops the file watcher goroutine, cancels any pending debounce
// timers, and releases the underlying fsnotify watcher. Safe to call
// multiple times.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}

	w.mu.Lock()
	w.closing = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()

	return w.fsWatcher.Close()
}
