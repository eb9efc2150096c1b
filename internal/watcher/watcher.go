// Package watcher reports changes under collection source directories using fsnotify.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher watches the source directory of each collection and calls onChange once per burst of
// changes to a collection.
type Watcher struct {
	roots      map[string]string // collection -> source dir
	extensions []string
	onChange   func(collection, path string)
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timers   map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a collection must be quiet before onChange fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over roots, a map of collection name to source directory.
// extensions filters which files count as changes; empty means all.
func New(roots map[string]string, extensions []string, onChange func(collection, path string), opts ...Option) *Watcher {
	w := &Watcher{
		roots:      make(map[string]string, len(roots)),
		extensions: extensions,
		onChange:   onChange,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		timers:     make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for name, dir := range roots {
		w.roots[name] = filepath.Clean(dir)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Missing source directories are skipped with a warning.
// It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for name, root := range w.roots {
		if err := addTree(fw, root); err != nil {
			w.logger.Warn("Not watching collection source",
				zap.String("collection", name), zap.String("dir", root), zap.Error(err))
		}
	}
	w.watcher = fw
	w.started = true
	go w.run(ctx, fw)
	return nil
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	collection, ok := w.collectionFor(ev.Name)
	if !ok {
		return
	}
	w.logger.Debug("Watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addTree(fw, ev.Name); err != nil {
				w.logger.Debug("Watcher failed to add directory", zap.String("path", ev.Name), zap.Error(err))
			}
			w.schedule(collection, ev.Name)
			return
		}
	}
	if ev.Op == fsnotify.Chmod || !matchExtension(ev.Name, w.extensions) {
		return
	}
	w.schedule(collection, ev.Name)
}

// collectionFor returns the collection whose source directory contains path.
func (w *Watcher) collectionFor(path string) (string, bool) {
	clean := filepath.Clean(path)
	for name, root := range w.roots {
		if clean == root || inDir(root, clean) {
			return name, true
		}
	}
	return "", false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// schedule debounces changes per collection.
func (w *Watcher) schedule(collection, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.timers[collection]; ok {
		t.Stop()
	}
	w.timers[collection] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, collection)
		w.mu.Unlock()
		if w.onChange != nil {
			w.onChange(collection, path)
		}
	})
}

// Directories returns the watched source directory of each collection.
func (w *Watcher) Directories() map[string]string {
	out := make(map[string]string, len(w.roots))
	for name, dir := range w.roots {
		out[name] = dir
	}
	return out
}

// Stop stops the watcher and drops pending notifications.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
