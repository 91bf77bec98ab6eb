package renderer

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"github.com/mitchellh/hashstructure/v2"
)

// Rect is a pixel rectangle with its origin at the top left.
type Rect struct {
	X, Y, Width, Height uint32
}

// RenderContext describes where one render call draws: the canvas or a render target, its attachment layout and
// how it is cleared. Contexts are cached per (target, attachment layout, sample count), so the same material drawn
// into a different target gets its own pipeline.
type RenderContext struct {
	mu *sync.Mutex

	ID uint64

	// Target is the render target, nil for the canvas.
	Target resource.RenderTarget

	// Formats are the color formats in location order, Outputs the attachment names.
	Formats     []gputypes.TextureFormat
	Outputs     []string
	DepthFormat gputypes.TextureFormat
	SampleCount uint32

	Width, Height uint32

	// Viewport and Scissor are optional; nil covers the whole target.
	Viewport *Rect
	Scissor  *Rect

	Clear        bool
	ClearColor   gputypes.Color
	ClearDepth   float32
	ClearStencil uint32

	key    uint64
	handle any
}

// Layout returns the attachment layout pipelines drawing into the context are built for.
func (rc *RenderContext) Layout() pipeline.TargetLayout {
	return pipeline.TargetLayout{
		Formats:     slices.Clone(rc.Formats),
		DepthFormat: rc.DepthFormat,
		SampleCount: rc.SampleCount,
	}
}

// Key returns the cache key of the context.
func (rc *RenderContext) Key() uint64 {
	return rc.key
}

// IsCanvas reports whether the context draws to the canvas.
func (rc *RenderContext) IsCanvas() bool {
	return rc.Target == nil
}

// Handle returns the backend state of the open pass.
func (rc *RenderContext) Handle() any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.handle
}

// SetHandle stores the backend state of the open pass.
func (rc *RenderContext) SetHandle(h any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.handle = h
}

// ComputeGroup is one compute pass.
type ComputeGroup struct {
	ID     uint64
	Label  string
	handle any
}

// Handle returns the backend state of the open compute pass.
func (g *ComputeGroup) Handle() any {
	return g.handle
}

// SetHandle stores the backend state of the open compute pass.
func (g *ComputeGroup) SetHandle(h any) {
	g.handle = h
}

type contextKey struct {
	Target      uint64
	Formats     []gputypes.TextureFormat
	Outputs     []string
	DepthFormat gputypes.TextureFormat
	SampleCount uint32
}

// renderContexts caches contexts by target and layout.
type renderContexts struct {
	mu       *sync.Mutex
	contexts map[uint64]*RenderContext
}

func newRenderContexts() *renderContexts {
	return &renderContexts{mu: &sync.Mutex{}, contexts: map[uint64]*RenderContext{}}
}

// get returns the context for target. Canvas contexts take their layout from caps and samples.
func (c *renderContexts) get(target resource.RenderTarget, caps Capabilities, samples uint32, width, height uint32) (*RenderContext, error) {
	k := contextKey{SampleCount: samples, DepthFormat: caps.DepthFormat, Formats: []gputypes.TextureFormat{caps.SurfaceFormat}, Outputs: []string{"output"}}
	if target != nil {
		k = contextKey{
			Target:      target.ID(),
			Formats:     target.Formats(),
			Outputs:     target.Names(),
			DepthFormat: target.DepthFormat(),
			SampleCount: max(target.SampleCount(), 1),
		}
		width, height = target.Width(), target.Height()
	}
	key, err := hashstructure.Hash(k, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rc, ok := c.contexts[key]
	if !ok {
		rc = &RenderContext{
			mu:          &sync.Mutex{},
			ID:          resource.NextID(),
			Target:      target,
			Formats:     k.Formats,
			Outputs:     k.Outputs,
			DepthFormat: k.DepthFormat,
			SampleCount: k.SampleCount,
			ClearDepth:  1,
			key:         key,
		}
		c.contexts[key] = rc
	}
	rc.Width, rc.Height = width, height
	return rc, nil
}

// forget drops the contexts of a disposed target.
func (c *renderContexts) forget(targetID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, rc := range c.contexts {
		if rc.Target != nil && rc.Target.ID() == targetID {
			delete(c.contexts, k)
		}
	}
}
