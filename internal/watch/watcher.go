// Package watch re-runs work when source or script files change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codeaug/internal/logging"
	"codeaug/internal/world"
)

// Handler receives the paths that changed since the previous call, sorted.
type Handler func(ctx context.Context, paths []string) error

// Options configures a Watcher.
type Options struct {
	// Sources are watched recursively; only files the set selects trigger.
	Sources []world.SourceSet
	// Files are watched individually, e.g. evaluation scripts.
	Files []string
	// Ignore lists directories whose events never trigger, e.g. the destination
	// directory when it lives inside a source directory.
	Ignore []string
	// Debounce is how long a path must stay quiet before it is handed over.
	Debounce time.Duration
}

// Stats tracks watcher activity.
type Stats struct {
	Events   int
	Batches  int
	Errors   int
	LastPath string
}

// Watcher batches filesystem events and hands settled paths to a handler.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	opts        Options
	handler     Handler
	files       map[string]bool
	debounceMap map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closeOnce   sync.Once
	stats       Stats
}

// New creates a Watcher. Nothing is watched until Start.
func New(opts Options, handler Handler) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}

	w := &Watcher{
		watcher:     watcher,
		opts:        opts,
		handler:     handler,
		files:       make(map[string]bool),
		debounceMap: make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	w.opts.Ignore = make([]string, 0, len(opts.Ignore))
	for _, dir := range opts.Ignore {
		w.opts.Ignore = append(w.opts.Ignore, filepath.Clean(dir))
	}
	for _, f := range opts.Files {
		w.files[filepath.Clean(f)] = true
	}
	return w, nil
}

// Start registers every watched directory and starts the event loop. It does not
// block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	log := logging.Get(logging.CategoryWatch)
	for _, set := range w.opts.Sources {
		if err := w.addTree(set.BaseDir, set); err != nil {
			log.Warn("Failed to watch %s: %v", set.BaseDir, err)
		}
	}
	// Scripts are watched through their directory so editors that replace the file
	// on save keep triggering.
	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			log.Warn("Failed to watch %s: %v", dir, err)
		}
	}
	log.Info("Watching %d director(ies)", len(w.watcher.WatchList()))

	go w.run(ctx)
	return nil
}

// Stop stops the event loop, waits for it to exit and releases the underlying
// watcher. A Watcher cannot be restarted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	w.closeOnce.Do(func() {
		if err := w.watcher.Close(); err != nil {
			logging.Get(logging.CategoryWatch).Error("Error closing watcher: %v", err)
		}
		logging.Get(logging.CategoryWatch).Debug("Watcher stopped")
	})
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// addTree watches root and every directory below it the set does not skip.
func (w *Watcher) addTree(root string, set world.SourceSet) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			rel, err := filepath.Rel(set.BaseDir, path)
			if err != nil {
				return err
			}
			if set.Skips(rel) || w.ignored(path) {
				return filepath.SkipDir
			}
		}
		logging.Get(logging.CategoryWatch).Debug("Watching %s", path)
		return w.watcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// Settled paths are collected on every tick.
	tick := w.opts.Debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	log := logging.Get(logging.CategoryWatch)
	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	path := filepath.Clean(event.Name)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if set, rel, ok := w.sourceFor(path); ok && !set.Skips(rel) && !w.ignored(path) {
				if err := w.addTree(path, set); err != nil {
					logging.Get(logging.CategoryWatch).Warn("Failed to watch %s: %v", path, err)
				}
			}
			return
		}
	}
	if !w.relevant(path) {
		return
	}

	logging.Get(logging.CategoryWatch).Debug("%s event for %s", event.Op, path)
	w.mu.Lock()
	w.stats.Events++
	w.stats.LastPath = path
	w.debounceMap[path] = time.Now()
	w.mu.Unlock()
}

// relevant reports whether a file path is a watched script or selected source.
func (w *Watcher) relevant(path string) bool {
	if w.files[path] {
		return true
	}
	if w.ignored(path) {
		return false
	}
	set, rel, ok := w.sourceFor(path)
	return ok && set.Selects(rel)
}

// sourceFor finds the first source set containing path.
func (w *Watcher) sourceFor(path string) (world.SourceSet, string, bool) {
	for _, set := range w.opts.Sources {
		rel, err := filepath.Rel(set.BaseDir, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return set, rel, true
	}
	return world.SourceSet{}, "", false
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.opts.Ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// processDebouncedEvents hands every path quiet for the debounce interval to the
// handler in one batch.
func (w *Watcher) processDebouncedEvents(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.opts.Debounce {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	if len(settled) > 0 {
		w.stats.Batches++
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	sort.Strings(settled)
	logging.Get(logging.CategoryWatch).Info("%d changed file(s), re-running", len(settled))
	if err := w.handler(ctx, settled); err != nil {
		logging.Get(logging.CategoryWatch).Error("Run after change failed: %v", err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
	}
}

// GetStats returns the current watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching returns true if the watcher is currently running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	dirs := w.watcher.WatchList()
	sort.Strings(dirs)
	return dirs
}
