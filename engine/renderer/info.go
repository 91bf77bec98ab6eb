package renderer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InfoStats is a snapshot of the renderer statistics.
type InfoStats struct {
	// Frame is the number of frames ended.
	Frame uint64

	// Per-frame counters, reset when a frame ends.
	Renders   uint64
	DrawCalls uint64
	Triangles uint64
	Lines     uint64
	Points    uint64
	Dispatch  uint64

	// StateChanges and StateChangesSkipped count GL state calls issued and filtered by the shadow cache.
	StateChanges        uint64
	StateChangesSkipped uint64

	// Cumulative counters.
	TotalDrawCalls uint64
	TotalDispatch  uint64
	CacheHits      uint64
	CacheMisses    uint64
	Compiles       uint64

	// Live object counts.
	Programs   int
	Pipelines  int
	BindGroups int
	Textures   int
	Buffers    int

	// RenderTime and ComputeTime are the timings last resolved from the backend.
	RenderTime  time.Duration
	ComputeTime time.Duration
}

// Info keeps per-frame and cumulative renderer statistics and mirrors them into Prometheus collectors when a
// registerer was configured.
type Info struct {
	mu    *sync.Mutex
	stats InfoStats

	draws     prometheus.Counter
	dispatch  prometheus.Counter
	triangles prometheus.Counter
	cache     *prometheus.CounterVec
	compiles  prometheus.Counter
	objects   *prometheus.GaugeVec
	state     *prometheus.CounterVec
}

// NewInfo creates the statistics, registering collectors on reg when it is not nil.
//
// Parameters:
//   - reg: the Prometheus registerer, or nil
//
// Returns:
//   - *Info: the statistics
//   - error: a registration error
func NewInfo(reg prometheus.Registerer) (*Info, error) {
	i := &Info{
		mu: &sync.Mutex{},
		draws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oxy", Subsystem: "renderer", Name: "draw_calls_total", Help: "Draw calls recorded.",
		}),
		dispatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oxy", Subsystem: "renderer", Name: "compute_dispatches_total", Help: "Compute dispatches recorded.",
		}),
		triangles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oxy", Subsystem: "renderer", Name: "triangles_total", Help: "Triangles submitted.",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oxy", Subsystem: "renderer", Name: "cache_lookups_total", Help: "Program and pipeline cache lookups.",
		}, []string{"cache", "result"}),
		compiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oxy", Subsystem: "renderer", Name: "program_compiles_total", Help: "Graphs compiled to programs.",
		}),
		objects: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "oxy", Subsystem: "renderer", Name: "objects", Help: "Live backend objects by kind.",
		}, []string{"kind"}),
		state: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oxy", Subsystem: "renderer", Name: "state_changes_total", Help: "GL state changes by outcome.",
		}, []string{"result"}),
	}
	if reg == nil {
		return i, nil
	}
	for _, c := range []prometheus.Collector{i.draws, i.dispatch, i.triangles, i.cache, i.compiles, i.objects, i.state} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Stats returns a snapshot.
func (i *Info) Stats() InfoStats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

func (i *Info) beginRender() {
	i.mu.Lock()
	i.stats.Renders++
	i.mu.Unlock()
}

// RecordDraw counts one draw of count vertices.
//
// Parameters:
//   - topology: the primitive kind, one of "triangles", "lines" or "points"
//   - count: the vertex or index count
//   - instances: the instance count
func (i *Info) RecordDraw(topology string, count, instances int) {
	n := uint64(count * max(instances, 1))
	i.mu.Lock()
	i.stats.DrawCalls++
	i.stats.TotalDrawCalls++
	var tris uint64
	switch topology {
	case "triangles":
		tris = n / 3
		i.stats.Triangles += tris
	case "lines":
		i.stats.Lines += n / 2
	default:
		i.stats.Points += n
	}
	i.mu.Unlock()
	i.draws.Inc()
	i.triangles.Add(float64(tris))
}

// RecordDispatch counts one compute dispatch.
func (i *Info) RecordDispatch() {
	i.mu.Lock()
	i.stats.Dispatch++
	i.stats.TotalDispatch++
	i.mu.Unlock()
	i.dispatch.Inc()
}

// RecordStateChanges counts state calls sent to the driver and calls the shadow state filtered out.
func (i *Info) RecordStateChanges(applied, skipped int) {
	if applied == 0 && skipped == 0 {
		return
	}
	i.mu.Lock()
	i.stats.StateChanges += uint64(applied)
	i.stats.StateChangesSkipped += uint64(skipped)
	i.mu.Unlock()
	i.state.WithLabelValues("applied").Add(float64(applied))
	i.state.WithLabelValues("skipped").Add(float64(skipped))
}

func (i *Info) recordLookup(cache string, hit bool) {
	result := "miss"
	i.mu.Lock()
	if hit {
		result = "hit"
		i.stats.CacheHits++
	} else {
		i.stats.CacheMisses++
	}
	i.mu.Unlock()
	i.cache.WithLabelValues(cache, result).Inc()
}

func (i *Info) recordCompile() {
	i.mu.Lock()
	i.stats.Compiles++
	i.mu.Unlock()
	i.compiles.Inc()
}

// Object kinds tracked by AddObjects.
const (
	ObjectPrograms   = "programs"
	ObjectPipelines  = "pipelines"
	ObjectBindGroups = "bind_groups"
	ObjectTextures   = "textures"
	ObjectBuffers    = "buffers"
)

// AddObjects adjusts the live count of kind by delta.
func (i *Info) AddObjects(kind string, delta int) {
	i.mu.Lock()
	var n int
	switch kind {
	case ObjectPrograms:
		i.stats.Programs += delta
		n = i.stats.Programs
	case ObjectPipelines:
		i.stats.Pipelines += delta
		n = i.stats.Pipelines
	case ObjectBindGroups:
		i.stats.BindGroups += delta
		n = i.stats.BindGroups
	case ObjectTextures:
		i.stats.Textures += delta
		n = i.stats.Textures
	case ObjectBuffers:
		i.stats.Buffers += delta
		n = i.stats.Buffers
	}
	i.mu.Unlock()
	i.objects.WithLabelValues(kind).Set(float64(n))
}

func (i *Info) setTimings(render, compute time.Duration) {
	i.mu.Lock()
	i.stats.RenderTime = render
	i.stats.ComputeTime = compute
	i.mu.Unlock()
}

// endFrame resets the per-frame counters.
func (i *Info) endFrame() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stats.Frame++
	i.stats.Renders = 0
	i.stats.DrawCalls = 0
	i.stats.Triangles = 0
	i.stats.Lines = 0
	i.stats.Points = 0
	i.stats.Dispatch = 0
	i.stats.StateChanges = 0
	i.stats.StateChangesSkipped = 0
}
