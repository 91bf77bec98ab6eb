package loader

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadHandler receives the outcome of every reload. doc is nil when err is set; the loader keeps serving the
// previous document in that case.
type ReloadHandler func(path string, doc *Document, err error)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	mu sync.Mutex

	loader   Loader
	handler  ReloadHandler
	logger   *zap.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher

	files   map[string]bool
	dirs    map[string]bool
	pending map[string]bool
}

// Watcher reloads documents when their files change. Bursts of writes to one file, as editors produce when
// saving, are collapsed into a single reload after the debounce window.
type Watcher interface {
	// Add watches path for changes and loads the document. A path that fails to load stays watched, so fixing
	// the file triggers a reload.
	//
	// Parameters:
	//   - path: the document path
	//
	// Returns:
	//   - *Document: the loaded document
	//   - error: the load error, or an error if the directory cannot be watched
	Add(path string) (*Document, error)

	// Run delivers reloads to the handler until ctx is done or Close is called.
	Run(ctx context.Context) error

	// Close stops watching.
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher creates a Watcher reloading through l.
//
// Parameters:
//   - l: the loader whose cache is refreshed
//   - handler: called once per reload
//   - options: variadic list of WatcherBuilderOption functions
//
// Returns:
//   - Watcher: the watcher
//   - error: an error if the platform watcher cannot be created
func NewWatcher(l Loader, handler ReloadHandler, options ...WatcherBuilderOption) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		loader:   l,
		handler:  handler,
		logger:   common.Logger().Named("watcher"),
		debounce: 100 * time.Millisecond,
		fs:       fsw,
		files:    map[string]bool{},
		dirs:     map[string]bool{},
		pending:  map[string]bool{},
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

func (w *watcher) Add(path string) (*Document, error) {
	path = filepath.Clean(path)

	w.mu.Lock()
	// Directories are watched rather than files so replace-on-save keeps being observed.
	dir := filepath.Dir(path)
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			w.mu.Unlock()
			return nil, err
		}
		w.dirs[dir] = true
	}
	w.files[path] = true
	w.mu.Unlock()

	return w.loader.Load(path)
}

func (w *watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.event(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			w.flush()
		}
	}
}

func (w *watcher) Close() error {
	return w.fs.Close()
}

// event records a change to a watched file and reports whether a reload is now pending.
func (w *watcher) event(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return false
	}
	w.pending[path] = true
	return true
}

// flush reloads every pending document in path order.
func (w *watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	slices.Sort(paths)
	for _, p := range paths {
		doc, err := w.loader.Reload(p)
		if err != nil {
			w.logger.Warn("reload failed", zap.String("path", p), zap.Error(err))
		}
		w.handler(p, doc, err)
	}
}
