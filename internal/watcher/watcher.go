package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"digistation/internal/capture"
	"digistation/internal/config"
	"digistation/internal/fileutil"
	"digistation/internal/logging"
)

// Watcher emits normalized file events for one directory.
type Watcher struct {
	dir    string
	ignore []string
	settle time.Duration
	buffer int
	logger *slog.Logger

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	events  chan capture.FileEvent
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// New creates a watcher for dir using the capture settings in cfg.
func New(dir string, cfg *config.Config, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch dir: %w", err)
	}
	w := &Watcher{
		dir:    abs,
		buffer: 256,
		logger: logging.NewComponentLogger(logger, "watcher"),
	}
	if cfg != nil {
		w.ignore = append([]string(nil), cfg.Capture.IgnorePatterns...)
		w.settle = time.Duration(cfg.Capture.SettleMillis) * time.Millisecond
		if cfg.Capture.EventBuffer > 0 {
			w.buffer = cfg.Capture.EventBuffer
		}
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start begins watching. Events are delivered on the returned channel, which
// is closed after Stop or when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) (<-chan capture.FileEvent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return w.events, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.fs = fsw
	w.events = make(chan capture.FileEvent, w.buffer)
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx, fsw, w.events, w.quit, w.done)

	w.logger.Info("watcher started",
		logging.String(logging.FieldPath, w.dir),
		logging.String(logging.FieldEventType, "watcher_started"),
	)
	return w.events, nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.quit)
	done := w.done
	fsw := w.fs
	w.fs = nil
	w.running = false
	w.mu.Unlock()

	<-done
	_ = fsw.Close()
	w.logger.Info("watcher stopped", logging.String(logging.FieldEventType, "watcher_stopped"))
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- capture.FileEvent, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	settled := make(chan string)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	send := func(ev capture.FileEvent) bool {
		select {
		case out <- ev:
			return true
		case <-quit:
			return false
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case path := <-settled:
			delete(pending, path)
			if !send(capture.FileEvent{Kind: capture.FileModified, Path: path}) {
				return
			}
		case raw, ok := <-fsw.Events:
			if !ok {
				return
			}
			ev, ok := w.Normalize(raw)
			if !ok {
				continue
			}
			if ev.Kind == capture.FileModified && w.settle > 0 {
				w.debounce(pending, settled, quit, ev.Path)
				continue
			}
			if ev.Kind == capture.FileDeleted {
				if t, ok := pending[ev.Path]; ok {
					t.Stop()
					delete(pending, ev.Path)
				}
			}
			if !send(ev) {
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "filesystem watcher error", "watcher_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the session with scan_existing enabled to pick up missed files"),
				logging.String(logging.FieldImpact, "some file notifications may have been lost"),
			)
		}
	}
}

func (w *Watcher) debounce(pending map[string]*time.Timer, settled chan<- string, quit <-chan struct{}, path string) {
	if t, ok := pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	pending[path] = time.AfterFunc(w.settle, func() {
		select {
		case settled <- path:
		case <-quit:
		}
	})
}

// Normalize maps an fsnotify event to a capture.FileEvent. The second result
// is false for notifications the capture engine never needs: ignored names,
// directories, attribute changes, and the source side of renames.
func (w *Watcher) Normalize(ev fsnotify.Event) (capture.FileEvent, bool) {
	name := filepath.Base(ev.Name)
	if w.Ignored(name) {
		return capture.FileEvent{}, false
	}
	path := ev.Name
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.dir, path)
	}

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return capture.FileEvent{}, false
		}
		return capture.FileEvent{Kind: capture.FileCreated, Path: path}, true
	case ev.Has(fsnotify.Write):
		return capture.FileEvent{Kind: capture.FileModified, Path: path}, true
	case ev.Has(fsnotify.Remove):
		return capture.FileEvent{Kind: capture.FileDeleted, Path: path}, true
	case ev.Has(fsnotify.Rename):
		// fsnotify reports the old name here; the new name arrives as Create.
		w.logger.Debug("move source ignored", logging.String(logging.FieldPath, path))
		return capture.FileEvent{}, false
	default:
		return capture.FileEvent{}, false
	}
}

// Ignored reports whether a base name matches an ignore pattern or is an
// in-flight atomic write.
func (w *Watcher) Ignored(name string) bool {
	if strings.HasPrefix(name, fileutil.TempPrefix) {
		return true
	}
	for _, pattern := range w.ignore {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
