package profiler_test

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/profiler"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTickReportsPerInterval(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	now := time.Unix(0, 0)
	p := profiler.NewProfiler(
		profiler.WithLogger(zap.New(core)),
		profiler.WithClock(func() time.Time { return now }),
		profiler.WithInterval(time.Second),
	)

	frame := renderer.InfoStats{DrawCalls: 10, Triangles: 300, StateChanges: 4, StateChangesSkipped: 16}
	for range 3 {
		now = now.Add(250 * time.Millisecond)
		assert.Nil(t, p.Tick(frame))
	}
	now = now.Add(250 * time.Millisecond)
	rep := p.Tick(frame)
	require.NotNil(t, rep)

	assert.InDelta(t, 4.0, rep.FPS, 1e-9)
	assert.InDelta(t, 10.0, rep.DrawCallsPerFrame, 1e-9)
	assert.InDelta(t, 300.0, rep.TrianglesPerFrame, 1e-9)
	assert.Equal(t, uint64(16), rep.StateChanges)
	assert.Equal(t, uint64(64), rep.StateSkipped)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "frame stats", logs.All()[0].Message)

	now = now.Add(500 * time.Millisecond)
	assert.Nil(t, p.Tick(frame), "counters restart after a report")
}
