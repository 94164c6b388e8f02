package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// Reloader is satisfied by *catalog.Manager; kept as a narrow
// interface here so this package doesn't need to import catalog.
type Reloader interface {
	Reload()
}

// Watcher watches the configured catalog files (and, if set, the
// property file) for changes and calls Reloader.Reload on every
// write, so a long-running embedder picks up edited catalogs without
// restarting.
type Watcher struct {
	watcher *fsnotify.Watcher
	reload  Reloader
	logger  logr.Logger
	done    chan struct{}
}

// NewWatcher starts watching paths and returns a Watcher the caller
// must Close when finished.
func NewWatcher(reload Reloader, logger logr.Logger, paths ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := fw.Add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}

	w := &Watcher{watcher: fw, reload: reload, logger: logger, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.logger.Info("catalog source changed, reloading", "path", event.Name, "op", event.Op.String())
				w.reload.Reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Info("catalog watcher error", "error", err.Error())
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
