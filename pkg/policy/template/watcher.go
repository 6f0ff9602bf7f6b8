package template

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a reload fires after a
// burst of file events.
const DefaultDebounce = 100 * time.Millisecond

// Watcher hot-reloads a Registry when its template directory changes.
// Rapid event bursts (editor save dances, git checkouts) are debounced
// into a single reload.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce *debouncer
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher over the registry's directory.
func NewWatcher(registry *Registry, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		registry: registry,
		watcher:  fw,
		debounce: newDebouncer(debounce),
		logger:   slog.Default().With("component", "template_watcher"),
	}, nil
}

// Watch blocks processing file events until the context is cancelled.
// Reload failures are logged and the previous template set stays live.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.stop()
		w.watcher.Close()
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.watcher.Add(w.registry.dir); err != nil {
		return fmt.Errorf("watching template directory: %w", err)
	}
	w.logger.Info("template watcher started", "dir", w.registry.dir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("template watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("template file event", "path", event.Name, "op", event.Op.String())
			w.debounce.trigger(func() {
				if err := w.registry.Reload(); err != nil {
					w.logger.Error("template reload failed", "error", err)
					return
				}
				w.logger.Info("templates reloaded", "count", w.registry.Len())
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// Keep watching despite transient errors.
			w.logger.Error("template watcher error", "error", err)
		}
	}
}

// relevant filters out chmod noise, hidden files, and non-template
// extensions.
func relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return isTemplateFile(event.Name)
}

// debouncer collapses rapid triggers into one callback after a quiet
// interval.
type debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()
		if cb != nil && !stopped {
			cb()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
