package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// ArrivalOps reports files appearing in a directory, created in place or
// renamed into it.
const ArrivalOps = fsnotify.Create | fsnotify.Rename

// Config selects what a Watcher reports.
type Config struct {
	// Path is a directory or a file. A file is watched through its parent
	// directory so that editors replacing it by rename are still seen.
	Path string

	// Debounce is the quiet period that ends a burst of events.
	Debounce time.Duration

	// Extensions restricts events to these extensions. Empty means all.
	Extensions []string

	// SkipHidden ignores names starting with ".", which covers the temporary
	// files most backup tools write before renaming.
	SkipHidden bool

	// Ops selects the reported operations. Zero reports every operation
	// except a bare chmod.
	Ops fsnotify.Op

	// Settle delays the handler until the changed files kept their size and
	// modification time for this long. Zero calls the handler right away.
	Settle time.Duration
}

// Handler receives the distinct paths changed during one burst, sorted.
type Handler func(ctx context.Context, paths []string) error

// Watcher reports debounced filesystem changes below one path.
type Watcher struct {
	watcher  *fsnotify.Watcher
	config   Config
	dir      string
	file     string
	debounce *Debouncer
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Watcher. The path must exist.
func New(cfg Config, logger *slog.Logger) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path cannot be empty")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch path: %w", err)
	}
	dir, file := cfg.Path, ""
	if !info.IsDir() {
		dir, file = filepath.Dir(cfg.Path), filepath.Base(cfg.Path)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:  fw,
		config:   cfg,
		dir:      dir,
		file:     file,
		debounce: NewDebouncer(cfg.Debounce),
		logger:   logger.With("component", "watch", "path", cfg.Path),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, invoking handler
// once per burst of relevant events. Handler errors are logged.
func (w *Watcher) Watch(ctx context.Context, handler Handler) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.Stop()
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.dir, err)
	}
	w.logger.Info("watching for changes", "debounce", w.config.Debounce)

	// settling stops with the watcher, the handler keeps the caller's ctx
	settleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fire := func(paths []string) {
		w.logger.Debug("change detected", "paths", paths)
		if w.config.Settle > 0 {
			if err := WaitStable(settleCtx, paths, w.config.Settle); err != nil {
				w.logger.Debug("change dropped before files settled", "error", err)
				return
			}
		}
		if err := handler(ctx, paths); err != nil {
			w.logger.Error("change handler failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.debounce.Add(event.Name, fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
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
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// relevant filters out unselected operations, other files next to a watched
// file, hidden names and unwanted extensions.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if w.config.Ops != 0 {
		if event.Op&w.config.Ops == 0 {
			return false
		}
	} else if event.Op == fsnotify.Chmod {
		return false
	}

	base := filepath.Base(event.Name)
	if w.file != "" {
		return base == w.file
	}
	if w.config.SkipHidden && strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	lower := strings.ToLower(base)
	return slices.ContainsFunc(w.config.Extensions, func(ext string) bool {
		return strings.HasSuffix(lower, strings.ToLower(ext))
	})
}

// Debouncer collects paths and hands them over once no new path arrived
// for the interval.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	pending  map[string]struct{}
	stopped  bool
	mu       sync.Mutex
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		pending:  make(map[string]struct{}),
	}
}

// Add records path and restarts the quiet period. When it elapses fn is
// called with every path added since the previous call.
func (d *Debouncer) Add(path string, fn func(paths []string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending[path] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		if d.stopped || len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		paths := make([]string, 0, len(d.pending))
		for p := range d.pending {
			paths = append(paths, p)
		}
		clear(d.pending)
		d.mu.Unlock()

		slices.Sort(paths)
		fn(paths)
	})
}

// Stop cancels any pending callback. Later Adds are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	clear(d.pending)
}
