package loader

import (
	"time"

	"go.uber.org/zap"
)

// WatcherBuilderOption is a functional option for configuring a Watcher via NewWatcher.
type WatcherBuilderOption func(*watcher)

// WithDebounce sets how long the watcher waits after the last change before reloading. Defaults to 100ms.
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *watcher) {
		w.debounce = max(d, time.Millisecond)
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *zap.Logger) WatcherBuilderOption {
	return func(w *watcher) {
		w.logger = logger
	}
}
