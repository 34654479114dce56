package lifecycle

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ConfigWatcher watches a config file path for edits and invokes onChange,
// supplementing SIGHUP: a config edit without a signal is picked up the
// same way, since not every deployment sends HUP on file change.
type ConfigWatcher struct {
	w        *fsnotify.Watcher
	path     string
	onChange func()
	logger   *zap.Logger
	done     chan struct{}
}

// WatchConfig starts watching path's containing directory (editors
// commonly replace a file via rename-over, which fsnotify only reports
// reliably when the directory itself is watched) and invokes onChange
// whenever path is written or replaced.
func WatchConfig(path string, logger *zap.Logger, onChange func()) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	cw := &ConfigWatcher{w: w, path: filepath.Clean(path), onChange: onChange, logger: logger, done: make(chan struct{})}
	go cw.run()
	return cw, nil
}

func (cw *ConfigWatcher) run() {
	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if cw.logger != nil {
					cw.logger.Info("config file changed, reloading", zap.String("path", cw.path))
				}
				cw.onChange()
			}
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			if cw.logger != nil {
				cw.logger.Warn("config watcher error", zap.Error(err))
			}
		case <-cw.done:
			return
		}
	}
}

// Close stops the watcher.
func (cw *ConfigWatcher) Close() error {
	close(cw.done)
	return cw.w.Close()
}
