package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is how long the watcher waits for writes to settle.
const DefaultDebounceInterval = 250 * time.Millisecond

// ReloadFunc receives the configuration before and after a reload.
type ReloadFunc func(old, updated *Config)

// Watcher reloads the configuration file when it changes. It watches the
// file's directory so editors that replace the file are picked up.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	mu      sync.Mutex
	current *Config
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher returns a watcher for path. current is the configuration in
// effect, passed to the first ReloadFunc call as old.
func NewWatcher(path string, current *Config, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		watcher:  fw,
		debounce: NewDebouncer(interval),
		logger:   logger.With("component", "config.watcher"),
		current:  current,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is done or Stop is called, calling onReload after
// each successful reload. Failed reloads are logged and the previous
// configuration stays in effect.
func (w *Watcher) Watch(ctx context.Context, onReload ReloadFunc) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("config watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path || event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("config file event", "op", event.Op.String())
			w.debounce.Trigger(func() { w.reload(onReload) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(onReload ReloadFunc) {
	updated, err := ReloadConfig(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping current configuration", "error", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = updated
	w.mu.Unlock()

	if old != nil {
		if changed := RestartRequired(old, updated); len(changed) > 0 {
			w.logger.Warn("configuration changed, restart required to apply", "sections", changed)
		}
	}
	w.logger.Info("configuration reloaded", "path", w.path)
	if onReload != nil {
		onReload(old, updated)
	}
}

// Stop ends Watch and releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// RestartRequired lists the sections that differ between old and updated,
// other than the ones applied live (the logging level).
func RestartRequired(old, updated *Config) []string {
	a, b := *old, *updated
	a.Telemetry.Logging.Level = ""
	b.Telemetry.Logging.Level = ""

	var changed []string
	check := func(name string, x, y any) {
		if !reflect.DeepEqual(x, y) {
			changed = append(changed, name)
		}
	}
	check("agent", a.Agent, b.Agent)
	check("kernel", a.Kernel, b.Kernel)
	check("index", a.Index, b.Index)
	check("store", a.Store, b.Store)
	check("journal", a.Journal, b.Journal)
	check("api", a.API, b.API)
	check("telemetry", a.Telemetry, b.Telemetry)
	return changed
}

// Debouncer runs the most recent callback once events stop arriving for the
// interval.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopped  bool
}

// NewDebouncer returns a debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger records callback and restarts the quiet interval.
func (d *Debouncer) Trigger(callback func()) {
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
		d.callback = nil
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
