package storage

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/pairing"
)

// DefaultDebounce coalesces bursts of filesystem events.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports the store's file list whenever accepted files in the
// upload directory are created, written, removed or renamed.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	onChange func([]pairing.File)
	debounce time.Duration
	logger   *logging.Logger

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches store's directory. onChange runs on the watcher's
// goroutine with the full current listing.
func NewWatcher(store *Store, onChange func([]pairing.File), logger *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(store.Dir()); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{
		store:    store,
		watcher:  fw,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger.WithComponent("watcher"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in a new goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	<-w.done
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	timer := time.NewTimer(0)
	<-timer.C
	pending := false

	for {
		select {
		case <-w.stopCh:
			timer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.store.Accepts(filepath.Base(ev.Name)) {
				continue
			}
			pending = true
			timer.Reset(w.debounce)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			files, err := w.store.List()
			if err != nil {
				w.logger.Warn("rescan failed", "error", err)
				continue
			}
			w.logger.Debug("upload directory changed", "files", len(files))
			if w.onChange != nil {
				w.onChange(files)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}
