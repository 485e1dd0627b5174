// Package watch monitors folders for new spreadsheets and hands each one to a
// handler once writes have settled.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/klytics/sheetbot/internal/dataset"
)

// Config selects what to watch.
type Config struct {
	Directories []string      `json:"directories"`
	Pattern     string        `json:"pattern,omitempty"` // glob on the base name, e.g. "sales_*"
	Recursive   bool          `json:"recursive"`
	Debounce    time.Duration `json:"debounce"`
	// Ignore lists directories whose files are never handled, such as the
	// folder edited copies are written to.
	Ignore []string `json:"ignore,omitempty"`
}

// DefaultDebounce is the settle time after the last write to a file.
const DefaultDebounce = 500 * time.Millisecond

// Event is a file the watcher handled or skipped.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"` // "processed", "error"
	Error     string    `json:"error,omitempty"`
}

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Watcher monitors directories for spreadsheet files.
type Watcher struct {
	Config  Config
	Handler Handler

	logger   *zap.Logger
	mu       sync.Mutex
	events   []Event
	watcher  *fsnotify.Watcher
	debounce map[string]*time.Timer
	ready    chan struct{}
}

// New creates a watcher. Nothing is watched until Start.
func New(config Config, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		Config:   config,
		logger:   logger.Named("watch"),
		watcher:  fsw,
		debounce: make(map[string]*time.Timer),
		ready:    make(chan struct{}),
	}, nil
}

// Ready is closed once every directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Start watches the configured directories. It blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.Config.Directories {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}
		if w.Config.Recursive {
			err = w.addRecursive(absDir)
		} else {
			err = w.watcher.Add(absDir)
		}
		if err != nil {
			w.watcher.Close()
			return fmt.Errorf("could not watch %s: %w", absDir, err)
		}
	}
	close(w.ready)
	w.logger.Info("watching", zap.Strings("directories", w.Config.Directories), zap.Bool("recursive", w.Config.Recursive))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping watcher")
			w.stopTimers()
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if w.Config.Recursive && event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("could not watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	path := event.Name
	if !w.Matches(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	op := event.Op.String()
	w.debounce[path] = time.AfterFunc(w.Config.Debounce, func() {
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.processFile(ctx, path, op)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.debounce {
		timer.Stop()
		delete(w.debounce, path)
	}
}

// Matches reports whether path is a spreadsheet the watcher handles.
func (w *Watcher) Matches(path string) bool {
	if !dataset.Supported(path) {
		return false
	}
	base := filepath.Base(path)
	// Office lock files and editor temporaries.
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	if w.Config.Pattern != "" {
		if ok, _ := filepath.Match(w.Config.Pattern, base); !ok {
			return false
		}
	}
	for _, dir := range w.Config.Ignore {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if rel, err := filepath.Rel(abs, path); err == nil && !strings.HasPrefix(rel, "..") {
			return false
		}
	}
	return true
}

func (w *Watcher) processFile(ctx context.Context, path, operation string) {
	evt := Event{Time: time.Now(), Path: path, Operation: operation, Status: "processed"}
	if w.Handler != nil {
		if err := w.Handler(ctx, path); err != nil {
			evt.Status = "error"
			evt.Error = err.Error()
			w.logger.Warn("could not process file", zap.String("path", path), zap.Error(err))
		} else {
			w.logger.Info("processed file", zap.String("path", path))
		}
	}

	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

// Events returns every handled file so far.
func (w *Watcher) Events() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}
