// Package resource holds the CPU-side descriptions of GPU resources: textures, vertex/index/storage attributes,
// geometries and render targets. Every resource carries a monotonically increasing version that is bumped on
// mutation; backends compare it against the version they last uploaded to decide what to rebuild.
package resource

import (
	"sync"
	"sync/atomic"
)

var nextID atomic.Uint64

// NextID allocates a process-unique resource identifier. Identifiers are never reused.
func NextID() uint64 {
	return nextID.Add(1)
}

// disposer implements the dispose notification shared by all resources.
type disposer[T any] struct {
	mu        sync.Mutex
	disposed  bool
	listeners []func(T)
}

func (d *disposer[T]) onDispose(fn func(T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// dispose marks the resource disposed and notifies listeners once.
func (d *disposer[T]) dispose(self T) {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	listeners := d.listeners
	d.listeners = nil
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(self)
	}
}

func (d *disposer[T]) isDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}
