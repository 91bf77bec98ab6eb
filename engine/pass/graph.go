package pass

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Renderer is the part of renderer.Renderer the graph drives.
type Renderer interface {
	node.FrameRenderer

	Size() (uint32, uint32)
	Frame() *node.Frame
	BeginFrame()
	Render(scene renderer.Scene, camera renderer.Camera) error

	SetRenderTarget(rt resource.RenderTarget)
	RenderTarget() resource.RenderTarget
	SetViewport(r *renderer.Rect)
	Viewport() *renderer.Rect
	SetScissor(r *renderer.Rect)
	Scissor() *renderer.Rect
	SetAutoClear(clear bool)
	AutoClear() bool
}

var _ Renderer = renderer.Renderer(nil)

// graph is the implementation of the Graph interface.
type graph struct {
	mu *sync.Mutex

	renderer Renderer
	logger   *zap.Logger

	passes map[string]*pass
	order  []*pass

	// stack holds the passes currently rendering, outermost first
	stack []*pass

	hookFrame uint64
	errs      error
	lastErrs  error
	disposed  bool
}

// Graph owns a set of passes that render on demand. Passes form a DAG through the texture nodes their materials
// read: evaluation is pulled by consumers, each pass renders at most once per frame and always before the draw
// that reads it. At the end of every frame each rendered pass swaps its current and previous outputs.
//
// A Graph belongs to the render loop and is not safe for concurrent rendering.
type Graph interface {
	// NewPass creates a pass drawing scene from camera.
	//
	// Parameters:
	//   - name: the unique pass name
	//   - scene: what the pass draws
	//   - camera: the view it draws from
	//   - options: variadic list of PassBuilderOption functions
	//
	// Returns:
	//   - Pass: the pass
	//   - error: ErrDuplicatePass, or an error if the render target configuration is invalid
	NewPass(name string, scene renderer.Scene, camera renderer.Camera, options ...PassBuilderOption) (Pass, error)

	// Pass returns the pass of the given name, or nil.
	Pass(name string) Pass

	// Passes returns every pass in creation order.
	Passes() []Pass

	// Pull renders the named pass now unless it already rendered this frame.
	//
	// Returns:
	//   - error: the render error, a HazardError or CycleError, or ErrDisposed
	Pull(name string) error

	// Err returns the combined pull errors of the last completed frame.
	Err() error

	// Dispose releases the render targets of every pass.
	Dispose()
}

var _ Graph = &graph{}

// NewGraph creates an empty pass graph rendering through r.
//
// Parameters:
//   - r: the renderer, usually a renderer.Renderer
//   - options: variadic list of GraphBuilderOption functions
//
// Returns:
//   - Graph: the graph
func NewGraph(r Renderer, options ...GraphBuilderOption) Graph {
	g := &graph{
		mu:       &sync.Mutex{},
		renderer: r,
		logger:   common.Logger().Named("pass"),
		passes:   map[string]*pass{},
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *graph) NewPass(name string, scene renderer.Scene, camera renderer.Camera, options ...PassBuilderOption) (Pass, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return nil, ErrDisposed
	}
	if _, ok := g.passes[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicatePass, name)
	}
	p := &pass{
		graph:         g,
		name:          name,
		scene:         scene,
		camera:        camera,
		scale:         1,
		depth:         true,
		nodes:         map[string]*node.TextureNode{},
		previousNodes: map[string]*node.TextureNode{},
	}
	for _, opt := range options {
		opt(p)
	}
	w, h := p.Size()
	rt, err := p.newTarget(name, w, h)
	if err != nil {
		return nil, err
	}
	p.current = rt
	g.passes[name] = p
	g.order = append(g.order, p)
	g.logger.Debug("pass created", zap.String("pass", name), zap.Uint32("width", w), zap.Uint32("height", h))
	return p, nil
}

func (g *graph) Pass(name string) Pass {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.passes[name]; ok {
		return p
	}
	return nil
}

func (g *graph) Passes() []Pass {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := make([]Pass, len(g.order))
	for i, p := range g.order {
		list[i] = p
	}
	return list
}

func (g *graph) Pull(name string) error {
	g.mu.Lock()
	p, ok := g.passes[name]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("pass %q: not found", name)
	}
	return g.pull(p, p.outputName(""))
}

func (g *graph) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErrs
}

// pull renders p unless it already rendered this frame. output names the texture being read, for diagnostics.
func (g *graph) pull(p *pass, output string) error {
	if g.disposed {
		return ErrDisposed
	}
	g.renderer.BeginFrame()
	frame := g.renderer.Frame()
	g.hookEndFrame(frame)

	if p.state == StateRendering {
		err := g.reentry(p, output)
		g.record(err)
		return err
	}
	if p.frame == frame.FrameID && p.state == StateRendered {
		return p.err
	}

	p.allocate()
	p.state = StateRendering
	g.stack = append(g.stack, p)
	start := time.Now()
	err := p.render()
	g.stack = g.stack[:len(g.stack)-1]
	p.state = StateRendered
	p.frame = frame.FrameID
	p.err = nil
	if err != nil {
		p.err = fmt.Errorf("pass %q: %w", p.name, err)
		g.record(p.err)
		return p.err
	}
	g.logger.Debug("pass rendered",
		zap.String("pass", p.name),
		zap.Uint64("frame", frame.FrameID),
		zap.Int("depth", len(g.stack)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// reentry builds the error for a pull reaching p while it renders: a hazard when p itself is reading, a cycle
// when a pass it pulled is.
func (g *graph) reentry(p *pass, output string) error {
	top := g.stack[len(g.stack)-1]
	if top == p {
		return &HazardError{Pass: p.name, Output: output}
	}
	var path []string
	for i, s := range g.stack {
		if s == p {
			for _, c := range g.stack[i:] {
				path = append(path, c.name)
			}
			break
		}
	}
	return &CycleError{Path: append(path, p.name)}
}

func (g *graph) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = multierr.Append(g.errs, err)
}

// hookEndFrame registers the end-of-frame swap once per frame.
func (g *graph) hookEndFrame(frame *node.Frame) {
	if g.hookFrame == frame.FrameID {
		return
	}
	g.hookFrame = frame.FrameID
	id := frame.FrameID
	frame.OnEndFrame(func() {
		g.endFrame(id)
	})
}

// endFrame swaps the outputs of every pass rendered in frame id and returns all passes to idle.
func (g *graph) endFrame(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.order {
		if p.frame == id && p.state == StateRendered && p.err == nil {
			p.swap()
		}
		p.state = StateIdle
	}
	g.lastErrs, g.errs = g.errs, nil
	if g.lastErrs != nil {
		g.logger.Warn("pass errors", zap.Uint64("frame", id), zap.Errors("errors", multierr.Errors(g.lastErrs)))
	}
}

func (g *graph) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return
	}
	g.disposed = true
	for _, p := range g.order {
		p.dispose()
	}
	g.passes = map[string]*pass{}
	g.order = nil
}
