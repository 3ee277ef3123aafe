// Package watch reports changes to the persisted store files.
//
// Writers append to the log from other processes; the watcher lets a
// long-running reader (primes store watch) pick them up without polling.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"primekit/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must be quiet before its change is
// reported.
const DefaultDebounce = 250 * time.Millisecond

// ChangeFunc is called with the settled paths, sorted.
type ChangeFunc func(ctx context.Context, paths []string)

// StoreWatcher watches a fixed set of store files. It watches their parent
// directories so that files created, removed or replaced by rename are seen.
type StoreWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	files       map[string]bool // cleaned absolute paths of interest
	dirs        []string
	onChange    ChangeFunc
	debounceMap map[string]time.Time
	debounceDur time.Duration
	tick        time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Notifications int
	Errors        int
	LastEventPath string
	LastEventType string
	LastEventTime time.Time
}

// New creates a watcher for files. onChange runs on the watcher goroutine.
func New(files []string, onChange ChangeFunc) (*StoreWatcher, error) {
	if len(files) == 0 {
		return nil, errors.New("watch: no files given")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sw := &StoreWatcher{
		watcher:     w,
		files:       make(map[string]bool, len(files)),
		onChange:    onChange,
		debounceMap: make(map[string]time.Time),
		debounceDur: DefaultDebounce,
		tick:        50 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	seen := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			w.Close()
			return nil, err
		}
		sw.files[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			sw.dirs = append(sw.dirs, dir)
		}
	}
	return sw, nil
}

// SetDebounce changes the quiet period. Call before Start.
func (sw *StoreWatcher) SetDebounce(d time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if d > 0 {
		sw.debounceDur = d
		if d < sw.tick {
			sw.tick = d
		}
	}
}

// Start begins watching. It does not block.
func (sw *StoreWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = true
	sw.mu.Unlock()

	for _, dir := range sw.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.WatchWarn("failed to create %s: %v", dir, err)
		}
		if err := sw.watcher.Add(dir); err != nil {
			sw.mu.Lock()
			sw.running = false
			sw.mu.Unlock()
			return err
		}
		logging.Watch("watching %s", dir)
	}

	go sw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (sw *StoreWatcher) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		sw.watcher.Close()
		return
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.stopCh)
	<-sw.doneCh

	if err := sw.watcher.Close(); err != nil {
		logging.WatchWarn("error closing watcher: %v", err)
	}
	logging.WatchDebug("watcher stopped")
}

// Done is closed when the watcher goroutine exits.
func (sw *StoreWatcher) Done() <-chan struct{} {
	return sw.doneCh
}

// Stats returns a copy of the activity counters.
func (sw *StoreWatcher) Stats() Stats {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.stats
}

func (sw *StoreWatcher) run(ctx context.Context) {
	defer close(sw.doneCh)

	ticker := time.NewTicker(sw.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-sw.stopCh:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleEvent(event)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchWarn("watcher error: %v", err)
			sw.mu.Lock()
			sw.stats.Errors++
			sw.mu.Unlock()

		case <-ticker.C:
			sw.processDebounced(ctx)
		}
	}
}

func (sw *StoreWatcher) handleEvent(event fsnotify.Event) {
	if !sw.files[filepath.Clean(event.Name)] {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "write"
	case event.Op&fsnotify.Remove != 0:
		eventType = "remove"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return // chmod
	}
	logging.WatchDebug("%s %s", eventType, event.Name)

	sw.mu.Lock()
	sw.stats.Events++
	sw.stats.LastEventPath = event.Name
	sw.stats.LastEventType = eventType
	sw.stats.LastEventTime = time.Now()
	sw.debounceMap[filepath.Clean(event.Name)] = time.Now()
	sw.mu.Unlock()
}

func (sw *StoreWatcher) processDebounced(ctx context.Context) {
	sw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range sw.debounceMap {
		if now.Sub(at) >= sw.debounceDur {
			settled = append(settled, path)
			delete(sw.debounceMap, path)
		}
	}
	if len(settled) > 0 {
		sw.stats.Notifications++
	}
	sw.mu.Unlock()

	if len(settled) == 0 || sw.onChange == nil {
		return
	}
	sort.Strings(settled)
	sw.onChange(ctx, settled)
}
