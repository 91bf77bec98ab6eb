package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/wgpu_device"
)

// DefaultFramesInFlight is the number of frames the GPU may still be executing when the CPU records the next one.
const DefaultFramesInFlight = 2

type pendingRelease struct {
	generation uint64
	object     wgpu_device.Object
}

// releaseQueue defers the release of GPU objects until no frame that could reference them is in flight. An
// object queued during generation g is released once the generation reaches g+framesInFlight.
type releaseQueue struct {
	mu             *sync.Mutex
	framesInFlight uint64
	generation     uint64
	pending        []pendingRelease
}

func newReleaseQueue(framesInFlight uint64) *releaseQueue {
	return &releaseQueue{mu: &sync.Mutex{}, framesInFlight: framesInFlight}
}

// add queues objects for release; nil entries are skipped.
func (q *releaseQueue) add(objects ...wgpu_device.Object) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, o := range objects {
		if o == nil {
			continue
		}
		q.pending = append(q.pending, pendingRelease{generation: q.generation, object: o})
	}
}

// advance ends the current generation and releases every object old enough.
//
// Returns:
//   - int: the number of objects released
func (q *releaseQueue) advance() int {
	q.mu.Lock()
	q.generation++
	keep := q.pending[:0]
	var due []wgpu_device.Object
	for _, p := range q.pending {
		if p.generation+q.framesInFlight <= q.generation {
			due = append(due, p.object)
		} else {
			keep = append(keep, p)
		}
	}
	q.pending = keep
	q.mu.Unlock()

	for _, o := range due {
		o.Release()
	}
	return len(due)
}

// flush releases everything immediately.
func (q *releaseQueue) flush() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, p := range pending {
		p.object.Release()
	}
}

func (q *releaseQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
