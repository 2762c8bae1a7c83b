// Package watch re-runs the global update whenever per-document extraction
// output under the data root changes.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/paths"
)

// UpdateFunc rebuilds the global state
type UpdateFunc func(ctx context.Context) error

// Stats tracks watcher activity
type Stats struct {
	Events        int
	Updates       int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches every record directory below a data root
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration
	update   UpdateFunc
	logger   *zap.Logger

	pending   bool
	lastEvent time.Time
	stats     Stats
}

// New creates a watcher for dataRoot. update runs once per quiet period of debounce.
func New(dataRoot string, debounce time.Duration, update UpdateFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	root, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		watcher:  fw,
		root:     root,
		debounce: debounce,
		update:   update,
		logger:   logger,
	}, nil
}

// Run watches until ctx is done. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn("close watcher", zap.Error(err))
		}
	}()

	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("create data root: %w", err)
	}
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("watching data root", zap.String("root", w.root), zap.Duration("debounce", w.debounce))

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case now := <-ticker.C:
			if w.due(now) {
				w.runUpdate(ctx)
			}
		}
	}
}

// Stats returns a snapshot of watcher activity
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	// New month and record directories must be watched too
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !Relevant(w.root, event.Name) {
		return
	}

	w.logger.Debug("extraction output changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = true
	w.lastEvent = time.Now()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = w.lastEvent
}

// Relevant reports whether path is per-document extraction output below root.
// Global artifacts in root itself are written by the update and never trigger it.
func Relevant(root, path string) bool {
	if filepath.Dir(path) == filepath.Clean(root) {
		return false
	}
	switch filepath.Base(path) {
	case paths.EntitiesFile, paths.EvidenceFile:
		return true
	default:
		return false
	}
}

func (w *Watcher) due(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending || now.Sub(w.lastEvent) < w.debounce {
		return false
	}
	w.pending = false
	return true
}

func (w *Watcher) runUpdate(ctx context.Context) {
	w.logger.Info("running global update")
	err := w.update(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Updates++
	if err != nil {
		w.stats.Errors++
		w.logger.Error("global update failed", zap.Error(err))
	}
}

func (w *Watcher) tick() time.Duration {
	if t := w.debounce / 5; t > 0 && t < 100*time.Millisecond {
		return t
	}
	return 100 * time.Millisecond
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// vanished between event and walk
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
