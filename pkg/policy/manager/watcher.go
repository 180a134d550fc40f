package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches module policy files under a base directory and
// reports which namespace changed. Events are debounced per namespace.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	config  *FileWatcherConfig

	mu         sync.Mutex
	debouncers map[string]*Debouncer
	running    bool
	stopped    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// FileWatcherConfig contains configuration for the file watcher.
type FileWatcherConfig struct {
	// BaseDir is the resource root; each namespace is a subdirectory
	BaseDir string

	// Namespaces lists the module directories to watch
	Namespaces []string

	// FileName is the policy file name without extension
	FileName string

	// DebounceInterval is the quiet period before a namespace is reported
	// (default: 100ms)
	DebounceInterval time.Duration
}

// DefaultFileWatcherConfig returns the default watcher configuration.
func DefaultFileWatcherConfig() *FileWatcherConfig {
	return &FileWatcherConfig{
		FileName:         PolicyFileName,
		DebounceInterval: 100 * time.Millisecond,
	}
}

// NewFileWatcher creates a new file watcher.
func NewFileWatcher(config *FileWatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if config == nil {
		config = DefaultFileWatcherConfig()
	}
	if config.FileName == "" {
		config.FileName = PolicyFileName
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:    watcher,
		logger:     logger.With("component", "policy.watcher"),
		config:     config,
		debouncers: make(map[string]*Debouncer),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, invoking onChange
// with the namespace of every policy file that was written, created,
// renamed or removed. onChange errors are logged.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func(namespace string) error) error {
	fw.mu.Lock()
	if fw.running || fw.stopped {
		fw.mu.Unlock()
		return errors.New("watcher already running or stopped")
	}
	fw.running = true
	fw.mu.Unlock()

	defer close(fw.doneCh)

	for _, ns := range fw.config.Namespaces {
		dir := filepath.Join(fw.config.BaseDir, ns)
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
		fw.logger.Debug("Watching directory", "namespace", ns, "path", dir)
	}

	fw.logger.Info("File watcher started",
		"base_dir", fw.config.BaseDir,
		"namespaces", len(fw.config.Namespaces),
		"debounce_ms", fw.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("File watcher stopped (context cancelled)")
			return nil

		case <-fw.stopCh:
			fw.logger.Info("File watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}

			ns, ok := fw.namespaceFor(event)
			if !ok {
				continue
			}

			fw.logger.Debug("Policy file event", "namespace", ns, "path", event.Name, "op", event.Op.String())

			fw.debouncer(ns).Trigger(func() {
				fw.logger.Info("Reloading policy", "namespace", ns)
				if err := onChange(ns); err != nil {
					fw.logger.Error("Policy reload failed", "namespace", ns, "error", err)
				}
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

// Stop stops the watcher, cancels pending callbacks and releases the
// fsnotify handle. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	wasRunning := fw.running
	debouncers := fw.debouncers
	fw.debouncers = map[string]*Debouncer{}
	fw.mu.Unlock()

	close(fw.stopCh)
	if wasRunning {
		<-fw.doneCh
	}

	for _, d := range debouncers {
		d.Stop()
	}

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// namespaceFor maps an event on <base>/<ns>/<file>.gwt.rpc to ns.
func (fw *FileWatcher) namespaceFor(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}
	if filepath.Base(event.Name) != fw.config.FileName+PolicyFileExtension {
		return "", false
	}

	dir := filepath.Dir(event.Name)
	ns := filepath.Base(dir)
	if filepath.Clean(filepath.Dir(dir)) != filepath.Clean(fw.config.BaseDir) {
		return "", false
	}
	for _, watched := range fw.config.Namespaces {
		if watched == ns {
			return ns, true
		}
	}
	return "", false
}

func (fw *FileWatcher) debouncer(ns string) *Debouncer {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	d, ok := fw.debouncers[ns]
	if !ok {
		d = NewDebouncer(fw.config.DebounceInterval)
		fw.debouncers[ns] = d
	}
	return d
}

// Debouncer implements event debouncing to prevent reload storms.
// It collects rapid events and triggers the callback only after a quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback to run once no further Trigger call has
// happened for the debounce interval. Only the latest callback runs.
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
		d.callback = nil
		stopped := d.stopped
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
