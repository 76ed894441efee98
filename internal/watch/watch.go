// Package watch re-runs preloaded script and SQL files when they change on
// disk and tells subscribers about it.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last write before a file
// is re-run.
const DefaultDebounce = 100 * time.Millisecond

// Loader runs files. *engine.Processor implements it.
type Loader interface {
	LoadFiles(ctx context.Context, paths []string) error
}

// Config holds configuration for a Watcher.
type Config struct {
	Files    []string
	Loader   Loader
	Notifier *Notifier
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher re-runs files through a Loader when they are written.
type Watcher struct {
	files    map[string]bool
	loader   Loader
	notifier *Notifier
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Watcher. Paths are made absolute so that events match
// regardless of how the file was named on the command line.
func New(cfg Config) (*Watcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}

	files := make(map[string]bool, len(cfg.Files))
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		files[abs] = true
	}

	return &Watcher{
		files:    files,
		loader:   cfg.Loader,
		notifier: notifier,
		debounce: debounce,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Notifier returns the notifier events are broadcast on.
func (w *Watcher) Notifier() *Notifier {
	return w.notifier
}

// Run watches until ctx is cancelled. The containing directories are
// watched rather than the files, since editors often replace a file
// instead of writing it in place.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.files) == 0 {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.logger.Debug("watching files", "files", len(w.files), "dirs", len(dirs))

	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !w.files[path] {
				continue
			}
			w.schedule(ctx, path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// schedule re-runs path once writes to it have settled.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("file changed, re-running", "file", path)
		err := w.loader.LoadFiles(ctx, []string{path})
		if err != nil {
			w.logger.Error("re-run failed", "file", path, "error", err)
		}
		w.notifier.Broadcast(Event{Path: path, Err: err})
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
