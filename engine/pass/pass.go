package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
)

// State is the lifecycle of a pass within one frame.
type State int

const (
	// StateIdle passes have not been pulled this frame.
	StateIdle State = iota

	// StateAllocated passes have their targets sized for this frame.
	StateAllocated

	// StateRendering passes are recording. A pull reaching one is a hazard or a cycle.
	StateRendering

	// StateRendered passes expose their outputs until the frame ends.
	StateRendered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAllocated:
		return "allocated"
	case StateRendering:
		return "rendering"
	case StateRendered:
		return "rendered"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// depthOutput is the output name of the depth attachment.
const depthOutput = "depth"

// pass is the implementation of the Pass interface.
type pass struct {
	graph *graph
	name  string

	scene  renderer.Scene
	camera renderer.Camera

	scale      float32
	pixelRatio float32
	formats    []gputypes.TextureFormat
	names      []string
	depth      bool
	clearColor gputypes.Color

	current  resource.RenderTarget
	previous resource.RenderTarget

	// nodes and previousNodes hold one texture node per output name so programs keep their keys across frames
	nodes         map[string]*node.TextureNode
	previousNodes map[string]*node.TextureNode

	state State
	frame uint64
	err   error
}

// Pass renders a scene into its own render target once per frame, on demand. Reading one of its textures from a
// material pulls the pass: it is sized, rendered and then exposes its outputs for the rest of the frame.
type Pass interface {
	// Name returns the unique name within the graph.
	Name() string

	// State returns the lifecycle state in the current frame.
	State() State

	// Size returns the size the pass renders at: the drawing buffer size times the resolution scale, or the
	// logical size times the pixel ratio override times the resolution scale.
	Size() (uint32, uint32)

	// SetResolutionScale sets the factor applied to the drawing buffer size. Takes effect on the next pull.
	SetResolutionScale(scale float32)

	// ResolutionScale returns the factor applied to the drawing buffer size.
	ResolutionScale() float32

	// SetPixelRatio overrides the renderer's pixel ratio for this pass; 0 follows the renderer.
	SetPixelRatio(ratio float32)

	// SetScene changes what the pass draws.
	SetScene(scene renderer.Scene, camera renderer.Camera)

	// Target returns the render target holding the current frame's outputs.
	Target() resource.RenderTarget

	// Texture returns a texture node sampling output name of the current frame. Any draw reading the node first
	// pulls this pass. An empty name selects the first color output.
	//
	// Parameters:
	//   - name: the output name
	//
	// Returns:
	//   - *node.TextureNode: the same node for every call with the same name
	//   - error: ErrUnknownOutput when the pass has no such output
	Texture(name string) (*node.TextureNode, error)

	// DepthTexture returns a texture node sampling the current frame's depth, pulling this pass like Texture.
	DepthTexture() (*node.TextureNode, error)

	// PreviousTexture returns a texture node sampling output name as the previous frame left it. Reading it never
	// pulls, so a pass may read its own previous output.
	PreviousTexture(name string) (*node.TextureNode, error)

	// Err returns the error of this frame's render, if any.
	Err() error
}

var _ Pass = &pass{}

func (p *pass) Name() string {
	return p.name
}

func (p *pass) State() State {
	return p.state
}

func (p *pass) Size() (uint32, uint32) {
	r := p.graph.renderer
	var w, h float32
	if p.pixelRatio > 0 {
		lw, lh := r.Size()
		w, h = float32(lw)*p.pixelRatio, float32(lh)*p.pixelRatio
	} else {
		dw, dh := r.DrawingBufferSize()
		w, h = float32(dw), float32(dh)
	}
	return max(uint32(w*p.scale), 1), max(uint32(h*p.scale), 1)
}

func (p *pass) SetResolutionScale(scale float32) {
	if scale <= 0 {
		scale = 1
	}
	p.scale = scale
}

func (p *pass) ResolutionScale() float32 {
	return p.scale
}

func (p *pass) SetPixelRatio(ratio float32) {
	p.pixelRatio = max(ratio, 0)
}

func (p *pass) SetScene(scene renderer.Scene, camera renderer.Camera) {
	p.scene, p.camera = scene, camera
}

func (p *pass) Target() resource.RenderTarget {
	return p.current
}

func (p *pass) Err() error {
	if p.frame != p.graph.renderer.Frame().FrameID {
		return nil
	}
	return p.err
}

func (p *pass) Texture(name string) (*node.TextureNode, error) {
	name = p.outputName(name)
	if n, ok := p.nodes[name]; ok {
		return n, nil
	}
	t := outputTexture(p.current, name)
	if t == nil {
		return nil, fmt.Errorf("%w: pass %q has no output %q", ErrUnknownOutput, p.name, name)
	}
	n := node.Texture(t)
	n.OnBefore(func(*node.Frame) error {
		return p.graph.pull(p, name)
	})
	p.nodes[name] = n
	return n, nil
}

func (p *pass) DepthTexture() (*node.TextureNode, error) {
	return p.Texture(depthOutput)
}

func (p *pass) PreviousTexture(name string) (*node.TextureNode, error) {
	name = p.outputName(name)
	if n, ok := p.previousNodes[name]; ok {
		return n, nil
	}
	if outputTexture(p.current, name) == nil {
		return nil, fmt.Errorf("%w: pass %q has no output %q", ErrUnknownOutput, p.name, name)
	}
	if p.previous == nil {
		w, h := p.current.Width(), p.current.Height()
		rt, err := p.newTarget(p.name+"/previous", w, h)
		if err != nil {
			return nil, err
		}
		p.previous = rt
	}
	n := node.Texture(outputTexture(p.previous, name))
	p.previousNodes[name] = n
	return n, nil
}

func (p *pass) outputName(name string) string {
	if name == "" {
		return p.current.Names()[0]
	}
	return name
}

func outputTexture(rt resource.RenderTarget, name string) resource.Texture {
	if name == depthOutput {
		return rt.DepthTexture()
	}
	return rt.TextureByName(name)
}

func (p *pass) newTarget(label string, width, height uint32) (resource.RenderTarget, error) {
	options := []resource.RenderTargetBuilderOption{
		resource.WithTargetLabel(label),
		resource.WithDepth(p.depth),
		resource.WithClearColor(p.clearColor),
	}
	if len(p.formats) > 0 {
		options = append(options, resource.WithColorFormats(p.formats...))
	}
	if len(p.names) > 0 {
		options = append(options, resource.WithAttachmentNames(p.names...))
	}
	rt, err := resource.NewRenderTarget(width, height, options...)
	if err != nil {
		return nil, fmt.Errorf("pass %q: %w", p.name, err)
	}
	return rt, nil
}

// allocate sizes the targets for the current frame. Resizing the previous target drops its contents.
func (p *pass) allocate() {
	w, h := p.Size()
	p.current.SetSize(w, h)
	if p.previous != nil {
		p.previous.SetSize(w, h)
	}
	p.state = StateAllocated
}

// render draws the scene into the current target, restoring the renderer's target state afterwards.
func (p *pass) render() error {
	r := p.graph.renderer
	target, viewport, scissor, clear := r.RenderTarget(), r.Viewport(), r.Scissor(), r.AutoClear()
	defer func() {
		r.SetRenderTarget(target)
		r.SetViewport(viewport)
		r.SetScissor(scissor)
		r.SetAutoClear(clear)
	}()
	r.SetRenderTarget(p.current)
	r.SetViewport(nil)
	r.SetScissor(nil)
	r.SetAutoClear(true)
	return r.Render(p.scene, p.camera)
}

// swap exchanges the current and previous targets and rebinds the texture nodes to them.
func (p *pass) swap() {
	if p.previous == nil {
		return
	}
	p.current, p.previous = p.previous, p.current
	for name, n := range p.nodes {
		n.SetValue(outputTexture(p.current, name))
	}
	for name, n := range p.previousNodes {
		n.SetValue(outputTexture(p.previous, name))
	}
}

func (p *pass) dispose() {
	p.current.Dispose()
	if p.previous != nil {
		p.previous.Dispose()
	}
}
