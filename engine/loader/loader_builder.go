package loader

import (
	"io"
	"io/fs"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"go.uber.org/zap"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithFS reads documents and texture files from fsys instead of the operating system.
//
// Parameters:
//   - fsys: the file system; paths given to Load are fs.FS paths
//
// Returns:
//   - LoaderBuilderOption: a function that applies the file system option to a loader
func WithFS(fsys fs.FS) LoaderBuilderOption {
	return func(l *loader) {
		l.open = func(name string) (io.ReadCloser, error) {
			return fsys.Open(name)
		}
	}
}

// WithExecutor decodes texture files on the executor. Textures become ready once their load resolves; until then
// the renderer binds a placeholder.
//
// Parameters:
//   - e: the executor
//
// Returns:
//   - LoaderBuilderOption: a function that applies the executor option to a loader
func WithExecutor(e *common.Executor) LoaderBuilderOption {
	return func(l *loader) {
		l.executor = e
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *loader) {
		l.logger = logger
	}
}

// WithDocument pre-populates the cache.
//
// Parameters:
//   - key: the cache key for the document
//   - doc: the document to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the document option to a loader
func WithDocument(key string, doc *Document) LoaderBuilderOption {
	return func(l *loader) {
		l.documents[key] = doc
	}
}
