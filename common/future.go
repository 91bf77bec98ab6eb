package common

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// ErrExecutorStopped is returned by futures submitted to an Executor after Stop was called.
var ErrExecutorStopped = errors.New("executor stopped")

// Future is a single-assignment result produced asynchronously. The zero value is not usable, create one
// with NewFuture, Resolved, or Submit.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// NewFuture creates an unresolved Future.
//
// Returns:
//   - *Future[T]: the pending future
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a Future that is already complete with the given value and error.
//
// Parameters:
//   - v: the value
//   - err: the error, or nil
//
// Returns:
//   - *Future[T]: the completed future
func Resolved[T any](v T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(v, err)
	return f
}

// Resolve completes the future. Only the first call has any effect.
//
// Parameters:
//   - v: the value
//   - err: the error, or nil
func (f *Future[T]) Resolve(v T, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the future has been resolved.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future resolves or ctx is cancelled.
//
// Parameters:
//   - ctx: the context bounding the wait
//
// Returns:
//   - T: the resolved value (zero on cancellation)
//   - error: the resolution error, or ctx.Err() on cancellation
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the value without blocking. ok is false while the future is pending.
func (f *Future[T]) Result() (v T, err error, ok bool) {
	if !f.Ready() {
		return v, nil, false
	}
	return f.val, f.err, true
}

// Executor runs asynchronous work on a dynamic worker pool and hands results back as futures.
type Executor struct {
	pool    worker.DynamicWorkerPool
	nextID  atomic.Int64
	stopped atomic.Bool
}

// NewExecutor creates an Executor backed by a dynamic worker pool.
//
// Parameters:
//   - workers: the maximum number of concurrent workers (values <= 0 become 1)
//   - queueSize: the pending task capacity
//
// Returns:
//   - *Executor: the executor
func NewExecutor(workers, queueSize int) *Executor {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Executor{
		pool: worker.NewDynamicWorkerPool(workers, queueSize, 1*time.Second),
	}
}

// Stop stops the underlying pool. Futures submitted afterwards resolve with ErrExecutorStopped.
func (e *Executor) Stop() {
	if e.stopped.Swap(true) {
		return
	}
	e.pool.ClearTaskQueue()
	e.pool.Stop()
}

// Submit schedules fn on the executor and returns a Future for its result. A panic inside fn resolves the
// future with an error instead of crashing the worker.
//
// Parameters:
//   - e: the executor, nil runs fn synchronously
//   - fn: the work to run
//
// Returns:
//   - *Future[T]: the future resolved with fn's result
func Submit[T any](e *Executor, fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	run := func() (any, error) {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.Resolve(zero, fmt.Errorf("async task panicked: %v", r))
			}
		}()
		v, err := fn()
		f.Resolve(v, err)
		return v, err
	}

	if e == nil {
		_, _ = run()
		return f
	}
	if e.stopped.Load() {
		var zero T
		f.Resolve(zero, ErrExecutorStopped)
		return f
	}

	e.pool.SubmitTask(worker.Task{
		ID: int(e.nextID.Add(1)),
		Do: run,
	})
	return f
}
