package pass_test

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScene pulls the texture nodes it reads the way the renderer runs before-updates while preparing a draw.
type fakeScene struct {
	reads []*node.TextureNode
	errs  []error
}

func (s *fakeScene) Renderables() []renderer.Renderable {
	return nil
}

type fakeRenderer struct {
	frame   *node.Frame
	inFrame bool

	width, height uint32
	ratio         float32

	target   resource.RenderTarget
	viewport *renderer.Rect
	scissor  *renderer.Rect
	clear    bool

	// rendered lists the target labels in the order their renders finished recording
	rendered []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{frame: node.NewFrame(), width: 100, height: 50, ratio: 2, clear: true}
}

func (f *fakeRenderer) DrawingBufferSize() (uint32, uint32) {
	return uint32(float32(f.width) * f.ratio), uint32(float32(f.height) * f.ratio)
}

func (f *fakeRenderer) PixelRatio() float32                      { return f.ratio }
func (f *fakeRenderer) Size() (uint32, uint32)                   { return f.width, f.height }
func (f *fakeRenderer) Frame() *node.Frame                       { return f.frame }
func (f *fakeRenderer) RenderTarget() resource.RenderTarget      { return f.target }
func (f *fakeRenderer) SetRenderTarget(rt resource.RenderTarget) { f.target = rt }
func (f *fakeRenderer) SetViewport(r *renderer.Rect)             { f.viewport = r }
func (f *fakeRenderer) Viewport() *renderer.Rect                 { return f.viewport }
func (f *fakeRenderer) SetScissor(r *renderer.Rect)              { f.scissor = r }
func (f *fakeRenderer) Scissor() *renderer.Rect                  { return f.scissor }
func (f *fakeRenderer) SetAutoClear(clear bool)                  { f.clear = clear }
func (f *fakeRenderer) AutoClear() bool                          { return f.clear }

func (f *fakeRenderer) BeginFrame() {
	if f.inFrame {
		return
	}
	f.inFrame = true
	f.frame.BeginFrame()
}

func (f *fakeRenderer) EndFrame() {
	f.frame.EndFrame()
	f.inFrame = false
}

func (f *fakeRenderer) Render(scene renderer.Scene, _ renderer.Camera) error {
	f.BeginFrame()
	label := "canvas"
	if f.target != nil {
		label = f.target.Label()
	}
	s := scene.(*fakeScene)
	for _, n := range s.reads {
		if err := f.frame.UpdateBeforeNode(n); err != nil {
			s.errs = append(s.errs, err)
		}
	}
	f.rendered = append(f.rendered, label)
	return nil
}

func mustTexture(t *testing.T, p pass.Pass, name string) *node.TextureNode {
	t.Helper()
	n, err := p.Texture(name)
	require.NoError(t, err)
	return n
}

func TestPullRendersUpstreamOnceBeforeDownstream(t *testing.T) {
	r := newFakeRenderer()
	g := pass.NewGraph(r)
	defer g.Dispose()

	sceneA, sceneB := &fakeScene{}, &fakeScene{}
	a, err := g.NewPass("a", sceneA, nil)
	require.NoError(t, err)
	b, err := g.NewPass("b", sceneB, nil)
	require.NoError(t, err)

	texA := mustTexture(t, a, "")
	sceneB.reads = []*node.TextureNode{texA}
	canvas := &fakeScene{reads: []*node.TextureNode{texA, mustTexture(t, b, ""), texA}}

	require.NoError(t, r.Render(canvas, nil))
	assert.Equal(t, []string{"a", "b", "canvas"}, r.rendered, "a renders once although b and the canvas both read it")
	assert.Empty(t, canvas.errs)
	assert.Equal(t, pass.StateRendered, a.State())
	assert.Nil(t, r.RenderTarget(), "the canvas target is restored after the pulls")

	r.EndFrame()
	assert.Equal(t, pass.StateIdle, a.State())

	r.rendered = nil
	require.NoError(t, r.Render(canvas, nil))
	assert.Equal(t, []string{"a", "b", "canvas"}, r.rendered, "every frame pulls again")
}

func TestSelfReadIsHazard(t *testing.T) {
	r := newFakeRenderer()
	g := pass.NewGraph(r)
	defer g.Dispose()

	scene := &fakeScene{}
	a, err := g.NewPass("a", scene, nil)
	require.NoError(t, err)
	scene.reads = []*node.TextureNode{mustTexture(t, a, "")}

	require.NoError(t, g.Pull("a"))
	require.Len(t, scene.errs, 1)
	var hazard *pass.HazardError
	require.ErrorAs(t, scene.errs[0], &hazard)
	assert.Equal(t, "a", hazard.Pass)
	assert.Equal(t, "output", hazard.Output)

	r.EndFrame()
	assert.Error(t, g.Err(), "pull errors of the frame are kept after it ends")
}

func TestReentrantPullIsCycle(t *testing.T) {
	r := newFakeRenderer()
	g := pass.NewGraph(r)
	defer g.Dispose()

	sceneA, sceneB := &fakeScene{}, &fakeScene{}
	a, err := g.NewPass("a", sceneA, nil)
	require.NoError(t, err)
	b, err := g.NewPass("b", sceneB, nil)
	require.NoError(t, err)
	sceneA.reads = []*node.TextureNode{mustTexture(t, b, "")}
	sceneB.reads = []*node.TextureNode{mustTexture(t, a, "")}

	require.NoError(t, g.Pull("a"))
	require.Len(t, sceneB.errs, 1)
	var cycle *pass.CycleError
	require.ErrorAs(t, sceneB.errs[0], &cycle)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
	assert.Equal(t, []string{"b", "a"}, r.rendered)
}

func TestPreviousTextureSwapsAtEndOfFrame(t *testing.T) {
	r := newFakeRenderer()
	g := pass.NewGraph(r)
	defer g.Dispose()

	scene := &fakeScene{}
	a, err := g.NewPass("a", scene, nil)
	require.NoError(t, err)
	current := mustTexture(t, a, "")
	previous, err := a.PreviousTexture("")
	require.NoError(t, err)
	scene.reads = []*node.TextureNode{previous}

	first, firstPrev := current.Value(), previous.Value()
	require.NotSame(t, first, firstPrev)

	require.NoError(t, g.Pull("a"))
	assert.Empty(t, scene.errs, "reading the previous output never pulls")
	r.EndFrame()

	assert.Same(t, first, previous.Value(), "previous holds what was current last frame")
	assert.Same(t, firstPrev, current.Value())

	r.BeginFrame()
	r.EndFrame()
	assert.Same(t, first, previous.Value(), "frames without a render do not swap")
}

func TestSizeFollowsScaleAndPixelRatio(t *testing.T) {
	r := newFakeRenderer()
	g := pass.NewGraph(r)
	defer g.Dispose()

	half, err := g.NewPass("half", &fakeScene{}, nil, pass.WithResolutionScale(0.5))
	require.NoError(t, err)
	w, h := half.Size()
	assert.Equal(t, uint32(100), w)
	assert.Equal(t, uint32(50), h)

	low, err := g.NewPass("low", &fakeScene{}, nil, pass.WithPixelRatio(1), pass.WithResolutionScale(0.5))
	require.NoError(t, err)
	w, h = low.Size()
	assert.Equal(t, uint32(50), w)
	assert.Equal(t, uint32(25), h)

	r.width = 200
	require.NoError(t, g.Pull("half"))
	assert.Equal(t, uint32(200), half.Target().Width(), "targets are sized when pulled")
}

func TestPullRestoresRendererState(t *testing.T) {
	r := newFakeRenderer()
	g := pass.NewGraph(r)
	defer g.Dispose()

	_, err := g.NewPass("a", &fakeScene{}, nil)
	require.NoError(t, err)

	viewport := &renderer.Rect{Width: 10, Height: 10}
	r.SetViewport(viewport)
	r.SetAutoClear(false)
	require.NoError(t, g.Pull("a"))
	assert.Same(t, viewport, r.Viewport())
	assert.False(t, r.AutoClear())
}

func TestOutputs(t *testing.T) {
	r := newFakeRenderer()
	g := pass.NewGraph(r)
	defer g.Dispose()

	gbuf, err := g.NewPass("gbuffer", &fakeScene{}, nil, pass.WithOutputs("albedo", "normal"))
	require.NoError(t, err)

	albedo := mustTexture(t, gbuf, "albedo")
	assert.Same(t, albedo, mustTexture(t, gbuf, "albedo"), "one node per output keeps program keys stable")
	assert.NotSame(t, albedo, mustTexture(t, gbuf, "normal"))
	_, err = gbuf.DepthTexture()
	assert.NoError(t, err)

	_, err = gbuf.Texture("missing")
	assert.True(t, errors.Is(err, pass.ErrUnknownOutput))

	flat, err := g.NewPass("flat", &fakeScene{}, nil, pass.WithDepth(false))
	require.NoError(t, err)
	_, err = flat.DepthTexture()
	assert.ErrorIs(t, err, pass.ErrUnknownOutput)

	_, err = g.NewPass("flat", &fakeScene{}, nil)
	assert.ErrorIs(t, err, pass.ErrDuplicatePass)
	assert.Len(t, g.Passes(), 2)
}
