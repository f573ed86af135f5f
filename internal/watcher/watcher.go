// Package watcher monitors the configured media folders and triggers an
// index sweep when files disappear.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/medley-server/medley/internal/logging"
)

// Watcher watches media roots recursively. Remove and rename events are
// debounced into a single sweep callback so bulk deletions cost one sweep.
type Watcher struct {
	fsw     *fsnotify.Watcher
	onSweep func()

	sweepMu    sync.Mutex
	sweepTimer *time.Timer
	sweepDelay time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New starts a watcher over the given root directories. Roots that cannot be
// watched are logged and skipped.
func New(roots []string, debounce time.Duration, onSweep func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	w := &Watcher{
		fsw:        fsw,
		onSweep:    onSweep,
		sweepDelay: debounce,
		done:       make(chan struct{}),
	}

	for _, root := range roots {
		w.addRecursive(root)
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.sweepMu.Lock()
		if w.sweepTimer != nil {
			w.sweepTimer.Stop()
			w.sweepTimer = nil
		}
		w.sweepMu.Unlock()

		w.closeErr = w.fsw.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addRecursive(event.Name)
		}
	}

	// Only disappearing paths invalidate index entries; new files are
	// picked up lazily on the next browse.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		logging.Debug("path removed", zap.String("path", event.Name))
		w.scheduleSweep()
	}
}

func (w *Watcher) scheduleSweep() {
	select {
	case <-w.done:
		return
	default:
	}

	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()

	if w.sweepTimer != nil {
		w.sweepTimer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.sweepDelay, func() {
		w.onSweep()

		w.sweepMu.Lock()
		if w.sweepTimer == timer {
			w.sweepTimer = nil
		}
		w.sweepMu.Unlock()
	})

	w.sweepTimer = timer
}

func (w *Watcher) addRecursive(root string) {
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logging.Warn("walk error", zap.String("path", path), zap.Error(err))
			return nil
		}

		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				logging.Warn("watch add failed", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
}
