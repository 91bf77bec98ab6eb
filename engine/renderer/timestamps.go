package renderer

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// passTimer measures pass durations on the CPU, from the start of recording to submission. Both backends use it
// for timestamp queries.
type passTimer struct {
	mu      *sync.Mutex
	now     func() time.Time
	started map[TimestampQuery]map[uint64]time.Time
	total   map[TimestampQuery]time.Duration
}

func newPassTimer() *passTimer {
	return &passTimer{
		mu:      &sync.Mutex{},
		now:     time.Now,
		started: map[TimestampQuery]map[uint64]time.Time{},
		total:   map[TimestampQuery]time.Duration{},
	}
}

func (t *passTimer) start(kind TimestampQuery, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started[kind] == nil {
		t.started[kind] = map[uint64]time.Time{}
	}
	t.started[kind][id] = t.now()
}

// stop ends the timing of id; passes that never started are ignored.
func (t *passTimer) stop(kind TimestampQuery, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	begin, ok := t.started[kind][id]
	if !ok {
		return
	}
	delete(t.started[kind], id)
	t.total[kind] += t.now().Sub(begin)
}

func (t *passTimer) resolve(kind TimestampQuery) *common.Future[time.Duration] {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.total[kind]
	t.total[kind] = 0
	return common.Resolved(d, nil)
}
