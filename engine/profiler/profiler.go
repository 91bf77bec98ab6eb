package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"go.uber.org/zap"
)

// Profiler tracks frame rate, renderer counters and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	logger         *zap.Logger
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	// summed per-frame renderer counters since the last report
	drawCalls    uint64
	triangles    uint64
	stateChanges uint64
	stateSkipped uint64
}

// Report is one interval of profiler output.
type Report struct {
	FPS               float64
	DrawCallsPerFrame float64
	TrianglesPerFrame float64
	StateChanges      uint64
	StateSkipped      uint64
	HeapMB            float64
	AllocRateMB       float64
	GCCount           uint32
	LastPause         time.Duration
	MaxPause          time.Duration
	SysMB             float64
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		logger:         common.Logger().Named("profiler"),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the renderer counters of that frame, read before EndFrame resets
// them. Logs a Report when the update interval has elapsed.
//
// Parameters:
//   - stats: the frame's renderer statistics
//
// Returns:
//   - *Report: the logged report, or nil when the interval has not elapsed
func (p *Profiler) Tick(stats renderer.InfoStats) *Report {
	p.frameCount++
	p.drawCalls += stats.DrawCalls
	p.triangles += stats.Triangles
	p.stateChanges += stats.StateChanges
	p.stateSkipped += stats.StateChangesSkipped

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return nil
	}

	frames := float64(p.frameCount)
	rep := &Report{
		FPS:               frames / elapsed.Seconds(),
		DrawCallsPerFrame: float64(p.drawCalls) / frames,
		TrianglesPerFrame: float64(p.triangles) / frames,
		StateChanges:      p.stateChanges,
		StateSkipped:      p.stateSkipped,
	}

	runtime.ReadMemStats(&p.memStats)
	rep.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	rep.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	rep.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	rep.GCCount = gcCount
	if gcCount > 0 {
		rep.LastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			rep.MaxPause = max(rep.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	p.logger.Info("frame stats",
		zap.Float64("fps", rep.FPS),
		zap.Float64("draws_per_frame", rep.DrawCallsPerFrame),
		zap.Float64("triangles_per_frame", rep.TrianglesPerFrame),
		zap.Uint64("state_changes", rep.StateChanges),
		zap.Uint64("state_changes_skipped", rep.StateSkipped),
		zap.Float64("heap_mb", rep.HeapMB),
		zap.Float64("alloc_rate_mb", rep.AllocRateMB),
		zap.Uint32("gc", rep.GCCount),
		zap.Duration("gc_last_pause", rep.LastPause),
		zap.Duration("gc_max_pause", rep.MaxPause),
		zap.Float64("sys_mb", rep.SysMB))

	p.frameCount = 0
	p.drawCalls, p.triangles, p.stateChanges, p.stateSkipped = 0, 0, 0, 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return rep
}
