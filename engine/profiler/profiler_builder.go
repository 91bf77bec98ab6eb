package profiler

import (
	"time"

	"go.uber.org/zap"
)

// ProfilerOption is a functional option applied to a Profiler via NewProfiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often a report is logged.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithLogger sets the logger reports go to.
func WithLogger(l *zap.Logger) ProfilerOption {
	return func(p *Profiler) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}
