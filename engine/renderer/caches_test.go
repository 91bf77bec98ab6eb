package renderer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type releaseCounter struct {
	released atomic.Int32
}

func (r *releaseCounter) Release() {
	r.released.Add(1)
}

func TestReleaseQueue_WaitsForFramesInFlight(t *testing.T) {
	q := newReleaseQueue(DefaultFramesInFlight)
	a, b := &releaseCounter{}, &releaseCounter{}

	q.add(a, nil)
	assert.Equal(t, 1, q.len())

	assert.Zero(t, q.advance())
	q.add(b)
	assert.Equal(t, 1, q.advance())
	assert.EqualValues(t, 1, a.released.Load())
	assert.Zero(t, b.released.Load())

	assert.Equal(t, 1, q.advance())
	assert.EqualValues(t, 1, b.released.Load())
	assert.Zero(t, q.len())
}

func TestReleaseQueue_FlushReleasesEverything(t *testing.T) {
	q := newReleaseQueue(3)
	objs := []*releaseCounter{{}, {}, {}}
	for _, o := range objs {
		q.add(o)
	}
	q.flush()
	for _, o := range objs {
		assert.EqualValues(t, 1, o.released.Load())
	}
	assert.Zero(t, q.advance())
}

func newTestProgramCache(t *testing.T) (*programCache, *Info) {
	t.Helper()
	info, err := NewInfo(nil)
	require.NoError(t, err)
	exec := common.NewExecutor(2, 8)
	t.Cleanup(exec.Stop)
	return newProgramCache(node_builder.NewNodeBuilder(), exec, otel.Tracer("test"), info, zap.NewNop()), info
}

func flatGraph(label string, r float64) node_builder.Graph {
	return node_builder.Graph{Label: label, Vertex: node.ModelViewProjection, Fragment: node.Color(r, 0, 0)}
}

func TestProgramCache_CompilesOncePerKey(t *testing.T) {
	c, info := newTestProgramCache(t)

	var wg sync.WaitGroup
	progs := make([]*node_builder.Program, 8)
	for i := range progs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Get(context.Background(), flatGraph("red", 1))
			assert.NoError(t, err)
			progs[i] = p
		}()
	}
	wg.Wait()

	for _, p := range progs[1:] {
		assert.Same(t, progs[0], p)
	}
	assert.Equal(t, 1, c.len())
	assert.EqualValues(t, 1, info.Stats().Compiles)
	assert.Equal(t, 1, info.Stats().Programs)

	_, err := c.Get(context.Background(), flatGraph("dark", 0.5))
	require.NoError(t, err)
	assert.Equal(t, 2, c.len())
}

func TestProgramCache_FailuresAreNotStored(t *testing.T) {
	c, info := newTestProgramCache(t)
	bad := node_builder.Graph{Label: "bad", Vertex: node.ModelViewProjection, Fragment: node.ModelMatrix}

	_, err := c.Get(context.Background(), bad)
	var pe *ProgramError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad", pe.Material)
	assert.NotEmpty(t, pe.Details())
	assert.Zero(t, c.len())

	_, err = c.Get(context.Background(), bad)
	assert.Error(t, err)
	assert.EqualValues(t, 2, info.Stats().CacheMisses)
}

func TestProgramCache_AsyncAndCompileAll(t *testing.T) {
	c, _ := newTestProgramCache(t)

	p, err := c.GetAsync(flatGraph("red", 1)).Await(context.Background())
	require.NoError(t, err)

	all, err := c.CompileAll(context.Background(), []node_builder.Graph{flatGraph("red", 1), flatGraph("green", 0.2)})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Same(t, p, all[0])
	assert.NotSame(t, p, all[1])
}

func TestPlaceholders_MatchTheBindingLayout(t *testing.T) {
	p := newPlaceholders()
	defer p.dispose()

	color := p.get(gputypes.TextureViewDimension2D, gputypes.TextureSampleTypeFloat)
	assert.Same(t, color, p.get(gputypes.TextureViewDimension2D, gputypes.TextureSampleTypeFloat))
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, color.Format())
	assert.True(t, p.isPlaceholder(color))

	depth := p.get(gputypes.TextureViewDimension2D, gputypes.TextureSampleTypeDepth)
	assert.Equal(t, gputypes.TextureFormatDepth32Float, depth.Format())

	ints := p.get(gputypes.TextureViewDimension2D, gputypes.TextureSampleTypeUint)
	assert.Equal(t, gputypes.TextureFormatRGBA8Uint, ints.Format())
	assert.Equal(t, gputypes.FilterModeNearest, ints.Sampler().MagFilter)

	assert.NotSame(t, color, p.get(gputypes.TextureViewDimensionCube, gputypes.TextureSampleTypeFloat))
}

func TestInfo_CountersAndCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	info, err := NewInfo(reg)
	require.NoError(t, err)

	info.beginRender()
	info.RecordDraw("triangles", 36, 2)
	info.RecordDraw("lines", 4, 1)
	info.RecordStateChanges(3, 9)
	info.recordLookup("program", true)
	info.recordLookup("program", false)

	s := info.Stats()
	assert.EqualValues(t, 2, s.DrawCalls)
	assert.EqualValues(t, 24, s.Triangles)
	assert.EqualValues(t, 2, s.Lines)
	assert.EqualValues(t, 9, s.StateChangesSkipped)
	assert.InDelta(t, 2, testutil.ToFloat64(info.draws), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(info.cache.WithLabelValues("program", "hit")), 0)

	info.endFrame()
	s = info.Stats()
	assert.EqualValues(t, 1, s.Frame)
	assert.Zero(t, s.DrawCalls)
	assert.EqualValues(t, 2, s.TotalDrawCalls)
	assert.EqualValues(t, 1, s.CacheHits)

	_, err = NewInfo(reg)
	assert.Error(t, err, "collectors register once per registry")
}
