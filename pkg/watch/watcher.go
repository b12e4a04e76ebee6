// Package watch re-runs dev transforms when stylesheets change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/dyntheme/pkg/build"
	"github.com/gnana997/dyntheme/pkg/plugin"
	"github.com/gnana997/dyntheme/pkg/session"
	"github.com/gnana997/dyntheme/pkg/util"
)

const defaultDebounce = 200 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Debounce groups rapid writes to one file. Zero selects 200ms.
	Debounce time.Duration
	// Discovery selects the watched stylesheets.
	Discovery build.DiscoveryConfig
	// OnRemove is called with the id of a deleted or renamed stylesheet.
	OnRemove func(id string)
}

// Watcher transforms every stylesheet once at Start and again whenever it
// changes, feeding the session's dev sink.
type Watcher struct {
	watcher *fsnotify.Watcher
	sess    *session.Session
	plugins []plugin.Plugin
	files   util.FileCache
	options Options
	root    string
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopped atomic.Bool
	wg      sync.WaitGroup

	transforms atomic.Int64
	failures   atomic.Int64
}

// New creates a Watcher for a dev session. Plugins run in their enforced
// order.
func New(sess *session.Session, plugins []plugin.Plugin, files util.FileCache, options Options) (*Watcher, error) {
	if !sess.Env().IsDev() {
		return nil, errors.New("watch requires a serve session")
	}

	root, err := filepath.Abs(sess.Env().Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if options.Debounce == 0 {
		options.Debounce = defaultDebounce
	}
	if len(options.Discovery.Include) == 0 && len(options.Discovery.Exclude) == 0 {
		options.Discovery = build.DefaultDiscoveryConfig()
	}

	return &Watcher{
		watcher:        fsw,
		sess:           sess,
		plugins:        plugin.Sort(plugins),
		files:          files,
		options:        options,
		root:           root,
		logger:         sess.Logger().With("component", "watch"),
		debounceTimers: make(map[string]*time.Timer),
	}, nil
}

// Start resolves the plugins, transforms every discovered stylesheet and
// begins watching. Cancelling ctx has the same effect as Stop.
func (w *Watcher) Start(ctx context.Context) error {
	if w.stopped.Load() {
		return fmt.Errorf("watcher already stopped")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)

	for _, p := range w.plugins {
		if err := p.ConfigResolved(w.ctx, w.sess); err != nil {
			return fmt.Errorf("[%s] config: %w", p.Name(), err)
		}
	}

	files, err := build.DiscoverFiles(w.root, w.options.Discovery)
	if err != nil {
		return err
	}
	for _, path := range files {
		w.transform(path)
	}

	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}

	w.logger.Info("watching stylesheets", "root", w.root, "initial", len(files))

	w.wg.Add(1)
	go w.eventLoop()
	return nil
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() error {
	if !w.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if w.cancel != nil {
		w.cancel()
	}

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	w.logger.Info("watcher stopped", "transforms", w.transforms.Load(), "failures", w.failures.Load())
	return err
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.ignoredDir(path) {
				if err := w.watcher.Add(path); err != nil {
					w.logger.Warn("failed to watch directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if !w.watched(path) {
		return
	}

	w.logger.Debug("file event", "op", event.Op.String(), "file", path)

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		w.debounceTransform(path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.remove(path)
	}
}

func (w *Watcher) debounceTransform(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounceTimers[path]; ok {
		timer.Stop()
	}

	w.debounceTimers[path] = time.AfterFunc(w.options.Debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		if w.stopped.Load() {
			return
		}
		w.transform(path)
	})
}

func (w *Watcher) transform(path string) {
	if w.files != nil {
		w.files.Invalidate(path)
	}

	var (
		content string
		err     error
	)
	if w.files != nil {
		content, err = w.files.ReadFile(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		content = string(data)
	}
	if err != nil {
		w.failures.Add(1)
		w.logger.Warn("failed to read stylesheet", "file", path, "error", err)
		return
	}

	if _, err := build.Transform(w.ctx, w.plugins, path, content); err != nil {
		w.failures.Add(1)
		w.logger.Error("transform failed", "file", path, "error", err)
		return
	}
	w.transforms.Add(1)
}

func (w *Watcher) remove(path string) {
	w.debounceMu.Lock()
	if timer, ok := w.debounceTimers[path]; ok {
		timer.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()

	if w.files != nil {
		w.files.Invalidate(path)
	}
	if w.options.OnRemove != nil {
		w.options.OnRemove(path)
	}
	w.logger.Debug("stylesheet removed", "file", path)
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func (w *Watcher) watched(path string) bool {
	rel, ok := w.rel(path)
	return ok && w.options.Discovery.Included(rel)
}

func (w *Watcher) ignoredDir(path string) bool {
	rel, ok := w.rel(path)
	return !ok || build.Excluded(rel, w.options.Discovery.Exclude)
}

// GetStats returns watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.debounceMu.Lock()
	pending := len(w.debounceTimers)
	w.debounceMu.Unlock()

	return Stats{
		Pending:    pending,
		Transforms: w.transforms.Load(),
		Failures:   w.failures.Load(),
		Running:    !w.stopped.Load(),
	}
}

// Stats contains watcher statistics.
type Stats struct {
	Pending    int
	Transforms int64
	Failures   int64
	Running    bool
}
