package identity

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// OptOutWatcher observes the opt-out marker file and reports changes, so
// a long-running host can honor an opt-out written by another process
// without restarting.
type OptOutWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchOptOut starts watching the store's opt-out marker. onChange is
// invoked with the new opt-out state whenever the marker appears or
// disappears. Stop must be called to release the watcher.
func WatchOptOut(store *FileStore, onChange func(optedOut bool)) (*OptOutWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("identity: create watcher: %w", err)
	}

	target := store.OptOutPath()
	// Watch the containing directory: the marker itself may not exist yet.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("identity: watch %s: %w", filepath.Dir(target), err)
	}

	w := &OptOutWatcher{watcher: watcher, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != target {
					continue
				}
				switch {
				case ev.Op.Has(fsnotify.Create):
					onChange(true)
				case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
					onChange(false)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}

// Stop releases the underlying watcher. It is safe to call once the
// watcher has already stopped.
func (w *OptOutWatcher) Stop() {
	_ = w.watcher.Close()
	<-w.done
}
