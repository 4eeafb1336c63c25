// Package watch re-runs an action when a source file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"expandinator/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Handler is called with the changed file once its events have settled.
type Handler func(ctx context.Context, path string)

// FileWatcher watches individual files. It watches their directories so that
// editors that save by renaming a temp file over the original are seen.
type FileWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	files       map[string]bool
	handler     Handler
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// Stats tracks watcher activity.
type Stats struct {
	Events    int
	Triggered int
	Errors    int
}

// New creates a watcher for files. handler runs on the watcher goroutine.
func New(handler Handler, debounce time.Duration, files ...string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:     watcher,
		files:       make(map[string]bool),
		handler:     handler,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		fw.files[abs] = true
	}
	return fw, nil
}

// Start begins watching. It does not block.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = true
	fw.mu.Unlock()

	dirs := make(map[string]bool)
	for f := range fw.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			fw.mu.Lock()
			fw.running = false
			fw.mu.Unlock()
			fw.watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logging.Watch("watching %s", dir)
	}

	go fw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.stopCh)
	<-fw.doneCh

	if err := fw.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
}

// Done is closed when the event loop exits.
func (fw *FileWatcher) Done() <-chan struct{} {
	return fw.doneCh
}

// Stats returns a snapshot of the counters.
func (fw *FileWatcher) Stats() Stats {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.stats
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.doneCh)

	ticker := time.NewTicker(fw.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watcher error: %v", err)
			fw.mu.Lock()
			fw.stats.Errors++
			fw.mu.Unlock()

		case <-ticker.C:
			fw.processDebouncedEvents(ctx)
		}
	}
}

func (fw *FileWatcher) tick() time.Duration {
	if d := fw.debounceDur / 5; d > 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	path := filepath.Clean(event.Name)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.files[path] {
		return
	}
	fw.stats.Events++
	fw.debounceMap[path] = time.Now()
}

func (fw *FileWatcher) processDebouncedEvents(ctx context.Context) {
	fw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range fw.debounceMap {
		if now.Sub(at) >= fw.debounceDur {
			settled = append(settled, path)
			delete(fw.debounceMap, path)
		}
	}
	fw.stats.Triggered += len(settled)
	fw.mu.Unlock()

	for _, path := range settled {
		logging.Watch("%s changed", path)
		fw.handler(ctx, path)
	}
}
