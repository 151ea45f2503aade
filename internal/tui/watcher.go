package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports changes to the loop state file. The state directory may
// not exist yet; the watcher then watches the project directory and picks
// the state directory up once it is created.
type Watcher struct {
	path    string
	dir     string
	project string
	fs      *fsnotify.Watcher
	changes chan struct{}
	log     zerolog.Logger
}

// NewWatcher watches the state file at path, which lives in a directory
// directly below the project directory.
func NewWatcher(path string, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	w := &Watcher{
		path:    path,
		dir:     dir,
		project: filepath.Dir(dir),
		fs:      fw,
		changes: make(chan struct{}, 1),
		log:     log,
	}

	if err := fw.Add(w.project); err != nil {
		fw.Close()
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Changes delivers a value after the state file was written or removed.
// Bursts of events coalesce into one pending notification.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Run forwards file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("state watcher error")
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch filepath.Clean(ev.Name) {
	case w.dir:
		if ev.Has(fsnotify.Create) {
			if err := w.fs.Add(w.dir); err != nil && !errors.Is(err, os.ErrNotExist) {
				w.log.Warn().Err(err).Str("dir", w.dir).Msg("watch state dir")
			}
			// The file may have been written before the directory was watched.
			w.notify()
		}
		if ev.Has(fsnotify.Remove) {
			w.notify()
		}
	case w.path:
		w.notify()
	}
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
