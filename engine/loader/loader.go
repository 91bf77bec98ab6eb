package loader

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"go.uber.org/zap"
)

// LoaderBackendType identifies the document format backend to use.
type LoaderBackendType int

const (
	// BackendTypeYAML selects the YAML backend, which also reads JSON.
	BackendTypeYAML LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	logger   *zap.Logger
	open     func(name string) (io.ReadCloser, error)
	executor *common.Executor

	documents map[string]*Document

	backend loaderBackend
}

// Loader reads graph documents and caches the result by path. A document declares named nodes and binds them
// to material slots; loading builds the nodes and the material once and hands the same Document to every caller.
type Loader interface {
	// Load reads and builds the document at path, or returns the cached one. The backend is selected by the file
	// extension (.yaml, .yml and .json).
	//
	// Parameters:
	//   - path: the document path
	//
	// Returns:
	//   - *Document: the built document
	//   - error: ErrUnsupportedFormat for unknown extensions, a decode error, or every NodeError found
	Load(path string) (*Document, error)

	// LoadReader builds a document from a reader and caches it under name. Relative texture files are resolved
	// against the working directory.
	//
	// Parameters:
	//   - name: the cache key
	//   - r: the reader providing the document
	//
	// Returns:
	//   - *Document: the built document
	//   - error: a decode error or every NodeError found
	LoadReader(name string, r io.Reader) (*Document, error)

	// Reload rebuilds the document at path, replacing and disposing the cached one only when the rebuild
	// succeeds.
	//
	// Parameters:
	//   - path: the document path
	//
	// Returns:
	//   - *Document: the rebuilt document
	//   - error: the load error; the cached document stays in place
	Reload(path string) (*Document, error)

	// Get returns a cached document, nil when none is cached under name.
	Get(name string) *Document

	// Documents returns a copy of the cache.
	Documents() map[string]*Document

	// Evict removes a document from the cache and disposes it.
	Evict(name string)

	// Dispose evicts every document.
	Dispose()
}

var _ Loader = &loader{}

// NewLoader creates a Loader with the given backend and options applied.
//
// Parameters:
//   - backendType: the document format backend
//   - options: variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Loader: the loader
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		logger:    common.Logger().Named("loader"),
		open:      func(name string) (io.ReadCloser, error) { return os.Open(name) },
		documents: make(map[string]*Document),
	}

	switch backendType {
	case BackendTypeYAML:
		l.backend = newYAMLLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (*Document, error) {
	if doc := l.Get(path); doc != nil {
		return doc, nil
	}
	doc, err := l.loadFile(path)
	if err != nil {
		return nil, err
	}
	return l.store(path, doc), nil
}

func (l *loader) LoadReader(name string, r io.Reader) (*Document, error) {
	if doc := l.Get(name); doc != nil {
		return doc, nil
	}
	doc, err := l.decode(name, "", r)
	if err != nil {
		return nil, err
	}
	return l.store(name, doc), nil
}

func (l *loader) Reload(path string) (*Document, error) {
	doc, err := l.loadFile(path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	old := l.documents[path]
	l.documents[path] = doc
	l.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
	l.logger.Info("document reloaded", zap.String("path", path))
	return doc, nil
}

func (l *loader) Get(name string) *Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.documents[name]
}

func (l *loader) Documents() map[string]*Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.documents)
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	doc := l.documents[name]
	delete(l.documents, name)
	l.mu.Unlock()

	if doc != nil {
		doc.Dispose()
	}
}

func (l *loader) Dispose() {
	l.mu.Lock()
	docs := l.documents
	l.documents = make(map[string]*Document)
	l.mu.Unlock()

	for _, doc := range docs {
		doc.Dispose()
	}
}

// store caches doc under key unless a concurrent load got there first, in which case doc is dropped.
func (l *loader) store(key string, doc *Document) *Document {
	l.mu.Lock()
	if cached, ok := l.documents[key]; ok {
		l.mu.Unlock()
		doc.Dispose()
		return cached
	}
	l.documents[key] = doc
	l.mu.Unlock()
	return doc
}

func (l *loader) loadFile(path string) (*Document, error) {
	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}
	f, err := l.open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	spec, err := backend.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return l.build(path, filepath.Dir(path), spec)
}

func (l *loader) decode(name, dir string, r io.Reader) (*Document, error) {
	spec, err := l.backend.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	return l.build(name, dir, spec)
}

func (l *loader) build(key, dir string, spec *documentSpec) (*Document, error) {
	name := spec.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(key), filepath.Ext(key))
	}
	b := &documentBuilder{
		spec:     spec,
		name:     name,
		dir:      dir,
		open:     l.open,
		executor: l.executor,
	}
	doc, err := b.build()
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", name, err)
	}
	doc.Path = key
	l.logger.Debug("document loaded", zap.String("name", name), zap.Int("nodes", len(doc.ids)))
	return doc, nil
}

// resolveBackend selects a backend by file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
		return l.backend, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}
