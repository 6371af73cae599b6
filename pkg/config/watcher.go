package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ripnet/ripd/pkg/errs"
)

// debounceWindow coalesces the burst of write/rename events most editors
// and config-management tools produce for a single logical save, spec.md
// §4.5. Grounded on vsrinivas-fuchsia's pm/cmd/pm/serve/serve.go, the
// pack's one real fsnotify.NewWatcher() call site, which re-triggers a
// publish on any write event to the served directory.
const debounceWindow = 500 * time.Millisecond

// Watcher watches a configuration file for changes and emits a freshly
// validated, version-incremented Snapshot on every settled change.
type Watcher struct {
	path    string
	log     *logrus.Entry
	fsw     *fsnotify.Watcher
	changes chan Snapshot
	version int
	close   chan struct{}
}

// NewWatcher starts watching path. The first Load has already produced
// version 1; the watcher mints version 2, 3, ... on each settled change.
func NewWatcher(path string, log *logrus.Entry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Wrap(errs.KindConfigWatch, "create fsnotify watcher", err)
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, errs.Wrap(errs.KindConfigWatch, "watch "+path, err)
	}

	w := &Watcher{
		path:    path,
		log:     log,
		fsw:     fsw,
		changes: make(chan Snapshot),
		version: 1,
		close:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Changes delivers one validated Snapshot per settled on-disk change.
// Invalid edits are logged and dropped -- the previously active
// configuration keeps running, spec.md §4.5 "a rejected reload never
// tears down what is already up".
func (w *Watcher) Changes() <-chan Snapshot { return w.changes }

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.close)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.close:
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("config watcher error")
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceWindow)
			}
		case <-timerC:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	w.version++
	fc, err := readFile(w.path)
	if err != nil {
		w.log.WithError(err).Warn("reload config: read failed, keeping previous configuration")
		w.version--
		return
	}
	snap, err := Validate(fc, w.version)
	if err != nil {
		w.log.WithError(err).Warn("reload config: validation failed, keeping previous configuration")
		w.version--
		return
	}
	select {
	case w.changes <- snap:
	case <-w.close:
	}
}

func readFile(path string) (FileConfig, error) {
	snap, err := Load(path)
	if err != nil {
		return FileConfig{}, err
	}
	return snap.raw, nil
}
