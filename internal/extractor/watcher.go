package extractor

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/lexmatch/internal/debug"
	"github.com/standardbeagle/lexmatch/internal/source"
)

// Watcher reloads an Extractor when files backing its sources change.
// Events are debounced so an editor saving several files triggers one reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	ex       *Extractor
	debounce time.Duration
	patterns []string
	onReload func(error)

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	statsMu         sync.RWMutex
	eventsProcessed int64
	reloads         int64
	errorCount      int64
	lastEventTime   time.Time
}

// WatchStats contains statistics about file watching
type WatchStats struct {
	Patterns        []string  `json:"patterns"`
	EventsProcessed int64     `json:"events_processed"`
	Reloads         int64     `json:"reloads"`
	ErrorCount      int64     `json:"error_count"`
	LastEventTime   time.Time `json:"last_event_time"`
	IsActive        bool      `json:"is_active"`
}

// NewWatcher creates a watcher for every file-backed source of ex.
func NewWatcher(ex *Extractor, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, src := range ex.Sources() {
		if fs, ok := src.(source.FileSource); ok {
			for _, p := range fs.WatchPatterns() {
				patterns = append(patterns, filepath.Clean(p))
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher:  fsw,
		ex:       ex,
		debounce: debounce,
		patterns: patterns,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// OnReload registers a callback invoked after every watcher-triggered
// reload with its result. Must be called before Start.
func (w *Watcher) OnReload(fn func(error)) {
	w.onReload = fn
}

// Patterns returns the watched paths and globs.
func (w *Watcher) Patterns() []string {
	return w.patterns
}

// Start adds watches for the directories holding the watched files and
// begins processing events.
func (w *Watcher) Start() error {
	if len(w.patterns) == 0 {
		log.Printf("No file-backed vocabulary sources; nothing to watch")
	}
	for _, p := range w.patterns {
		if err := w.addWatches(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}

	w.wg.Add(1)
	go w.processEvents()

	debug.LogWatch("watching %d patterns\n", len(w.patterns))
	return nil
}

// Stop stops the watcher and waits for an in-flight reload to finish.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

// addWatches watches the static base directory of pattern, and every
// directory below it when the pattern spans directories.
func (w *Watcher) addWatches(pattern string) error {
	base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
	base = filepath.FromSlash(base)

	info, err := os.Stat(base)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", base)
	}
	if !strings.Contains(rest, "/") {
		return w.watcher.Add(base)
	}
	return w.addRecursive(base)
}

func (w *Watcher) addRecursive(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[resolved] {
			return filepath.SkipDir
		}
		visited[resolved] = true

		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.handleEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.incrementStats(0, 0, 1)
			log.Printf("File watcher error: %v", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

// handleEvent reports whether the event concerns a watched file.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	debug.LogWatch("received %v for %s\n", event.Op, event.Name)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.coversDirectory(event.Name) {
				if err := w.addRecursive(event.Name); err != nil {
					log.Printf("Warning: failed to add watch for new directory %s: %v", event.Name, err)
				}
			}
			return false
		}
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if !w.matches(event.Name) {
		return false
	}
	w.incrementStats(1, 0, 0)
	return true
}

func (w *Watcher) matches(path string) bool {
	path = filepath.Clean(path)
	for _, p := range w.patterns {
		if p == path {
			return true
		}
		if ok, _ := doublestar.PathMatch(p, path); ok {
			return true
		}
	}
	return false
}

// coversDirectory reports whether a new directory lies below the base of a
// pattern that spans directories.
func (w *Watcher) coversDirectory(dir string) bool {
	for _, p := range w.patterns {
		base, rest := doublestar.SplitPattern(filepath.ToSlash(p))
		if !strings.Contains(rest, "/") {
			continue
		}
		rel, err := filepath.Rel(filepath.FromSlash(base), dir)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

func (w *Watcher) reload() {
	start := time.Now()
	err := w.ex.Reload(w.ctx)
	if err != nil {
		w.incrementStats(0, 1, 1)
		log.Printf("Vocabulary reload finished with errors: %v", err)
	} else {
		w.incrementStats(0, 1, 0)
		debug.LogWatch("reload done in %v\n", time.Since(start))
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

func (w *Watcher) incrementStats(events, reloads, errs int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.eventsProcessed += events
	w.reloads += reloads
	w.errorCount += errs
	if events > 0 {
		w.lastEventTime = time.Now()
	}
}

// GetStats returns current watch statistics
func (w *Watcher) GetStats() WatchStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()

	return WatchStats{
		Patterns:        append([]string(nil), w.patterns...),
		EventsProcessed: w.eventsProcessed,
		Reloads:         w.reloads,
		ErrorCount:      w.errorCount,
		LastEventTime:   w.lastEventTime,
		IsActive:        w.ctx.Err() == nil,
	}
}
