package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloads struct {
	mu   sync.Mutex
	docs []*Document
	errs []error
}

func (r *reloads) handle(_ string, doc *Document, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	r.errs = append(r.errs, err)
}

func (r *reloads) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func writeDoc(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatcher_EventsCollapseIntoOneReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	writeDoc(t, path, pulse)

	var got reloads
	w, err := NewWatcher(NewLoader(BackendTypeYAML), got.handle)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	_, err = w.Add(path)
	require.NoError(t, err)

	impl := w.(*watcher)
	assert.True(t, impl.event(fsnotify.Event{Name: path, Op: fsnotify.Write}))
	assert.True(t, impl.event(fsnotify.Event{Name: path, Op: fsnotify.Write}))
	assert.False(t, impl.event(fsnotify.Event{Name: path, Op: fsnotify.Chmod}))
	assert.False(t, impl.event(fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write}))

	impl.flush()
	require.Equal(t, 1, got.count())
	assert.NoError(t, got.errs[0])

	impl.flush()
	assert.Equal(t, 1, got.count())
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	writeDoc(t, path, pulse)

	var got reloads
	l := NewLoader(BackendTypeYAML)
	w, err := NewWatcher(l, got.handle, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	first, err := w.Add(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeDoc(t, path, strings.Replace(pulse, "value: 2", "value: 4", 1))
	require.Eventually(t, func() bool { return got.count() > 0 }, 2*time.Second, tick)

	doc := l.Get(path)
	assert.NotSame(t, first, doc)
	speed, _ := doc.Uniform("speed")
	assert.Equal(t, float32(4), speed.Value())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_FailedReloadKeepsDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	writeDoc(t, path, pulse)

	var got reloads
	l := NewLoader(BackendTypeYAML)
	w, err := NewWatcher(l, got.handle)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	first, err := w.Add(path)
	require.NoError(t, err)

	writeDoc(t, path, "nodes:\n  x: {op: nope}\n")
	impl := w.(*watcher)
	impl.event(fsnotify.Event{Name: path, Op: fsnotify.Write})
	impl.flush()

	require.Equal(t, 1, got.count())
	assert.Error(t, got.errs[0])
	assert.Nil(t, got.docs[0])
	assert.Same(t, first, l.Get(path))
}
