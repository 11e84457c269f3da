// Package configwatch signals edits to the panel configuration record made
// outside the controller, such as by the settings surface.
package configwatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
)

// DefaultDebounce coalesces bursts of writes into one signal.
const DefaultDebounce = 100 * time.Millisecond

// Watcher monitors the config record's directory.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange chan struct{}
	done     chan struct{}
	once     sync.Once
	log      pslog.Logger
}

// New creates a watcher for path. The parent directory is created if needed
// and watched so atomic replacements are seen.
func New(path string, logger pslog.Logger) (*Watcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	watcher := &Watcher{
		watcher:  w,
		path:     path,
		debounce: DefaultDebounce,
		onChange: make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      logger.With("config_path", path),
	}
	go watcher.loop()
	return watcher, nil
}

// Changes returns a channel that receives a signal when the record changes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.onChange
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.signal)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", "err", err)
		}
	}
}

func (w *Watcher) signal() {
	select {
	case w.onChange <- struct{}{}:
	default:
	}
}
