package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Renderable is one drawable: geometry drawn with a material at a model transform.
type Renderable interface {
	ID() uint64
	Geometry() resource.Geometry
	Material() material.Material
	ModelMatrix() common.Mat4
}

// Scene lists renderables in draw order.
type Scene interface {
	Renderables() []Renderable
}

// Camera supplies the view and projection of a render call.
type Camera interface {
	ViewMatrix() common.Mat4
	ProjectionMatrix() common.Mat4
	Position() [3]float32
}

// DepthRangeCamera is implemented by cameras that build their projection for the backend's clip depth range.
type DepthRangeCamera interface {
	SetDepthRange(dr common.DepthRange)
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backend Backend
	info    *Info
	frame   *node.Frame
	logger  *zap.Logger
	tracer  trace.Tracer

	programs     *programCache
	contexts     *renderContexts
	objects      *renderObjects
	bindings     *bindingStates
	placeholders *placeholders
	computes     map[uint64]*computeObject
	pipelines    map[uint64]pipeline.Pipeline

	// textures and attributes map resource ids to the version last uploaded
	textures   map[uint64]uint64
	attributes map[uint64]uint64
	watched    map[uint64]bool

	executor     *common.Executor
	ownsExecutor bool
	validator    node_builder.Validator

	width, height uint32
	pixelRatio    float32
	msaa          MSAASampleCount
	presentMode   PresentMode
	target        resource.RenderTarget
	viewport      *Rect
	scissor       *Rect
	autoClear     bool
	clearColor    gputypes.Color
	idleFrames    uint64

	// pre-creation config collected from builder options
	registry  prometheus.Registerer
	frameOpts []node.FrameOption

	inFrame     bool
	initialized bool
	disposed    bool
}

// Renderer draws scenes through a Backend. It compiles each material's node graph into a program for the
// backend's shading language, caches programs, pipelines and bind groups by content, keeps uniform values current
// through the node frame and swaps loading textures for placeholders.
//
// Usage pattern:
//  1. NewRenderer(backend, options...) then Init(ctx)
//  2. Per frame: BeginFrame, any number of Render and Compute calls, EndFrame
//  3. Dispose when done
type Renderer interface {
	node.FrameRenderer

	// Init initializes the backend and the node builder for its shading language.
	//
	// Parameters:
	//   - ctx: bounds device acquisition
	//
	// Returns:
	//   - error: an error if the backend failed to initialize
	Init(ctx context.Context) error

	// Backend returns the active backend.
	Backend() Backend

	// Info returns the renderer statistics.
	Info() *Info

	// Frame returns the node frame driving uniform updates.
	Frame() *node.Frame

	// BeginFrame starts a frame. Render calls outside a frame start one implicitly.
	BeginFrame()

	// EndFrame runs the end-of-frame hooks, presents the canvas and resets the per-frame counters.
	EndFrame()

	// Render draws the scene from camera into the current render target, or the canvas when none is set.
	// Render objects whose program or pipeline fails are disabled and logged; the rest still draw.
	//
	// Parameters:
	//   - scene: the renderables
	//   - camera: the view
	//
	// Returns:
	//   - error: an error if the render pass itself failed
	Render(scene Scene, camera Camera) error

	// Compute dispatches the compute nodes in one compute pass.
	//
	// Parameters:
	//   - nodes: the compute nodes in dispatch order
	//
	// Returns:
	//   - error: ErrUnsupportedBackend without compute support, or the first compile or dispatch error
	Compute(nodes ...*node.ComputeNode) error

	// CompileAsync compiles the programs of every material in scene for the current render target.
	//
	// Returns:
	//   - *common.Future[int]: resolves with the number of programs ready
	CompileAsync(scene Scene) *common.Future[int]

	// SetSize sets the canvas size in logical pixels.
	SetSize(width, height uint32)

	// Size returns the canvas size in logical pixels.
	Size() (uint32, uint32)

	// SetPixelRatio sets the ratio of physical to logical pixels.
	SetPixelRatio(ratio float32)

	// SetRenderTarget redirects Render into rt; nil restores the canvas.
	SetRenderTarget(rt resource.RenderTarget)

	// RenderTarget returns the current render target, nil for the canvas.
	RenderTarget() resource.RenderTarget

	// SetViewport limits drawing to r in physical pixels; nil covers the whole target.
	SetViewport(r *Rect)

	// Viewport returns the current viewport, nil for the whole target.
	Viewport() *Rect

	// SetScissor enables the scissor test with r; nil disables it.
	SetScissor(r *Rect)

	// Scissor returns the current scissor rectangle, nil when disabled.
	Scissor() *Rect

	// SetAutoClear sets whether Render clears its target first.
	SetAutoClear(clear bool)

	// AutoClear reports whether Render clears its target first.
	AutoClear() bool

	// SetClearColor sets the canvas clear color.
	SetClearColor(c gputypes.Color)

	// ReadRenderTargetPixelsAsync reads a region of attachment index of rt.
	//
	// Returns:
	//   - *common.Future[[]byte]: resolves with tightly packed rows in the attachment format
	ReadRenderTargetPixelsAsync(rt resource.RenderTarget, index int, x, y, width, height uint32) *common.Future[[]byte]

	// GetArrayBufferAsync reads the GPU contents of a storage attribute.
	GetArrayBufferAsync(a *resource.Attribute) *common.Future[[]byte]

	// HasFeature reports whether the backend supports f.
	HasFeature(f node.Feature) bool

	// HasFeatureAsync resolves HasFeature once the backend is initialized.
	HasFeatureAsync(f node.Feature) *common.Future[bool]

	// DepthRange returns the clip space depth range of the backend.
	DepthRange() common.DepthRange

	// Dispose releases every GPU object. The renderer is unusable afterwards.
	Dispose()
}

var _ Renderer = &renderer{}
var _ BackendHost = &renderer{}

// NewRenderer creates a Renderer drawing through backend.
//
// Parameters:
//   - backend: the GL or WGPU backend
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer, not yet initialized
//   - error: an error if metrics registration failed
func NewRenderer(backend Backend, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:           &sync.Mutex{},
		backend:      backend,
		logger:       common.Logger().Named("renderer"),
		tracer:       otel.Tracer("github.com/Carmen-Shannon/oxy-graph/engine/renderer"),
		contexts:     newRenderContexts(),
		objects:      newRenderObjects(),
		bindings:     newBindingStates(),
		placeholders: newPlaceholders(),
		computes:     map[uint64]*computeObject{},
		pipelines:    map[uint64]pipeline.Pipeline{},
		textures:     map[uint64]uint64{},
		attributes:   map[uint64]uint64{},
		watched:      map[uint64]bool{},
		width:        1,
		height:       1,
		pixelRatio:   1,
		msaa:         MSAA4x,
		autoClear:    true,
		clearColor:   gputypes.Color{A: 1},
		idleFrames:   120,
	}
	for _, opt := range options {
		opt(r)
	}

	info, err := NewInfo(r.registry)
	if err != nil {
		return nil, fmt.Errorf("renderer: register metrics: %w", err)
	}
	r.info = info
	r.frame = node.NewFrame(append([]node.FrameOption{node.WithFrameRenderer(r)}, r.frameOpts...)...)
	if r.executor == nil {
		r.executor = common.NewExecutor(2, 64)
		r.ownsExecutor = true
	}
	return r, nil
}

func (r *renderer) Init(ctx context.Context) error {
	if r.disposed {
		return ErrDisposed
	}
	if err := r.backend.Init(ctx, r); err != nil {
		return fmt.Errorf("renderer: init %s backend: %w", r.backend.Type(), err)
	}
	caps := r.backend.Capabilities()
	opts := []node_builder.NodeBuilderOption{
		node_builder.WithTarget(r.backend.CodeTarget()),
		node_builder.WithFeatures(caps.Features),
		node_builder.WithLogger(r.logger.Named("node_builder")),
		node_builder.WithTracer(r.tracer),
	}
	if r.validator != nil {
		opts = append(opts, node_builder.WithValidator(r.validator))
	}
	r.programs = newProgramCache(node_builder.NewNodeBuilder(opts...), r.executor, r.tracer, r.info, r.logger)
	r.initialized = true
	r.logger.Info("renderer initialized",
		zap.Stringer("backend", r.backend.Type()),
		zap.Stringer("target", r.backend.CodeTarget()),
		zap.Stringer("surface", caps.SurfaceFormat))
	return nil
}

func (r *renderer) ready() error {
	switch {
	case r.disposed:
		return ErrDisposed
	case !r.initialized:
		return ErrBackendNotInitialized
	}
	return nil
}

func (r *renderer) Backend() Backend {
	return r.backend
}

func (r *renderer) PresentMode() PresentMode {
	return r.presentMode
}

func (r *renderer) Info() *Info {
	return r.info
}

func (r *renderer) Logger() *zap.Logger {
	return r.logger
}

func (r *renderer) Frame() *node.Frame {
	return r.frame
}

func (r *renderer) BeginFrame() {
	if r.inFrame {
		return
	}
	r.inFrame = true
	r.frame.BeginFrame()
}

func (r *renderer) EndFrame() {
	if !r.inFrame || r.disposed {
		return
	}
	r.frame.EndFrame()
	r.backend.EndFrame()
	r.sweep()

	render, _, _ := r.backend.ResolveTimestampsAsync(TimestampQueryRender).Result()
	compute, _, _ := r.backend.ResolveTimestampsAsync(TimestampQueryCompute).Result()
	r.info.setTimings(render, compute)
	r.info.endFrame()
	r.inFrame = false
}

// sweep releases render objects that have not drawn for idleFrames frames.
func (r *renderer) sweep() {
	if r.idleFrames == 0 {
		return
	}
	now := r.frame.FrameID
	for _, ro := range r.objects.remove(func(ro *RenderObject) bool { return ro.lastFrame+r.idleFrames < now }) {
		r.releaseObject(ro)
	}
}

func (r *renderer) renderContext() (*RenderContext, error) {
	w, h := r.DrawingBufferSize()
	rc, err := r.contexts.get(r.target, r.backend.Capabilities(), uint32(r.msaa), w, h)
	if err != nil {
		return nil, err
	}
	rc.Viewport = r.viewport
	rc.Scissor = r.scissor
	rc.Clear = r.autoClear
	rc.ClearColor = r.clearColor
	if r.target != nil {
		rc.ClearColor = r.target.ClearColor()
		r.watchTarget(r.target)
	}
	return rc, nil
}

func (r *renderer) Render(scene Scene, camera Camera) error {
	if err := r.ready(); err != nil {
		return err
	}
	r.BeginFrame()
	if c, ok := camera.(DepthRangeCamera); ok {
		c.SetDepthRange(r.DepthRange())
	}

	prevScene, prevCamera := r.frame.Scene, r.frame.Camera
	defer func() {
		r.frame.Scene, r.frame.Camera = prevScene, prevCamera
		r.frame.SetObject(nil, nil)
	}()

	rc, err := r.renderContext()
	if err != nil {
		return err
	}

	// Before-updates may render other passes, so they all run before this pass starts recording.
	r.frame.BeginRender(r, scene, camera)
	list := r.prepare(scene, rc)

	if err := r.ensureTargetTextures(rc); err != nil {
		return err
	}
	r.frame.BeginRender(r, scene, camera)
	r.info.beginRender()
	r.backend.InitTimestampQuery(TimestampQueryRender, rc.ID)
	if err := r.backend.BeginRender(rc); err != nil {
		return err
	}
	for _, ro := range list {
		if err := r.draw(ro); err != nil {
			r.disable(ro, err)
		}
	}
	return r.backend.FinishRender(rc)
}

// prepare resolves the render objects of scene and runs their before-updates.
func (r *renderer) prepare(scene Scene, rc *RenderContext) []*RenderObject {
	renderables := scene.Renderables()
	list := make([]*RenderObject, 0, len(renderables))
	frameScene, frameCamera := r.frame.Scene, r.frame.Camera
	for _, obj := range renderables {
		m := obj.Material()
		if m == nil || obj.Geometry() == nil || obj.Geometry().Disposed() {
			continue
		}
		ro, created := r.objects.get(obj, m, rc)
		if created {
			r.watch(ro)
		}
		ro.lastFrame = r.frame.FrameID
		if ro.err != nil {
			if ro.Material.Version() == ro.materialVersion {
				continue
			}
			ro.err = nil
		}
		if err := r.setupProgram(ro); err != nil {
			r.disable(ro, err)
			continue
		}

		r.frame.SetObject(obj, m)
		var beforeErr error
		for _, bu := range ro.Program.BeforeUpdaters {
			if err := r.frame.UpdateBeforeNode(bu); err != nil && beforeErr == nil {
				beforeErr = fmt.Errorf("before-update node %d: %w", bu.ID(), err)
			}
			r.frame.Renderer, r.frame.Scene, r.frame.Camera = r, frameScene, frameCamera
			r.frame.SetObject(obj, m)
		}
		if beforeErr != nil {
			// the texture a failed pull guards is undefined this frame, the object retries next frame
			r.logger.Warn("before-update failed", zap.String("material", m.Name()), zap.Error(beforeErr))
			continue
		}
		list = append(list, ro)
	}
	return list
}

func (r *renderer) setupProgram(ro *RenderObject) error {
	version := ro.Material.Version()
	if ro.Program != nil && version == ro.materialVersion {
		return nil
	}
	ro.materialVersion = version
	g, err := ro.Material.Graph(ro.Context.Outputs)
	if err != nil {
		return &ProgramError{Material: ro.Material.Name(), Err: err}
	}
	prog, err := r.programs.Get(context.Background(), g)
	if err != nil {
		return err
	}
	if ro.Program == nil || ro.Program.Key != prog.Key {
		r.releaseObjectBindings(ro)
		ro.Program = prog
		ro.Pipeline = nil
		ro.Attributes = nil
	}
	return nil
}

func (r *renderer) draw(ro *RenderObject) error {
	r.frame.SetObject(ro.Renderable, ro.Material)
	for _, u := range ro.Program.Updaters {
		if err := r.frame.UpdateNode(u); err != nil {
			return fmt.Errorf("update node %d: %w", u.ID(), err)
		}
	}
	if err := r.setupGeometry(ro); err != nil {
		return err
	}
	if err := r.setupBindings(ro); err != nil {
		return err
	}
	if err := r.setupPipeline(ro); err != nil {
		return err
	}
	return r.backend.Draw(ro)
}

func (r *renderer) setupGeometry(ro *RenderObject) error {
	g := ro.Geometry
	if ro.Attributes == nil || ro.geometryVersion != g.Version() {
		attrs := make([]*resource.Attribute, len(ro.Program.Attributes))
		for i, al := range ro.Program.Attributes {
			a := g.Attribute(al.Name)
			if a == nil {
				return fmt.Errorf("geometry %q has no attribute %q", g.Label(), al.Name)
			}
			attrs[i] = a
		}
		ro.Attributes = attrs
		ro.Index = g.Index()
		ro.geometryVersion = g.Version()
	}
	for _, a := range ro.Attributes {
		if err := r.ensureAttribute(a); err != nil {
			return err
		}
	}
	if ro.Index != nil {
		return r.ensureAttribute(ro.Index)
	}
	return nil
}

func (r *renderer) setupBindings(ro *RenderObject) error {
	if ro.Bindings == nil {
		render, _ := r.bindings.renderGroup(ro.Program)
		mat, _ := r.bindings.materialGroup(ro.Material.ID(), ro.Program)
		ro.object = newBindingState(fmt.Sprintf("%s/object-%d", ro.Program.Label, ro.Renderable.ID()), node_builder.GroupObject, ro.Program)
		ro.Bindings = []bind_group_provider.BindGroupProvider{render.provider, ro.object.provider, mat.provider}
		ro.states = [3]*bindingState{render, ro.object, mat}
	}
	for _, s := range ro.states {
		if err := r.updateBindingState(s); err != nil {
			return err
		}
	}
	return nil
}

// updateBindingState packs uniforms, resolves textures and storage, and brings the backend object up to date.
func (r *renderer) updateBindingState(s *bindingState) error {
	if _, err := s.pack(); err != nil {
		return err
	}
	for _, tb := range s.textures {
		t := r.resolveTexture(tb)
		s.provider.SetTexture(tb.Binding, t)
		s.provider.SetTexture(tb.SamplerBinding, t)
	}
	for _, sb := range s.storage {
		a := sb.Node.Attribute()
		if err := r.ensureAttribute(a); err != nil {
			return err
		}
		s.provider.SetStorage(sb.Binding, a)
	}

	if h, _ := s.provider.Handle(); h != nil {
		return r.backend.UpdateBindings(s.provider)
	}
	if err := r.backend.CreateBindings(s.provider); err != nil {
		return err
	}
	r.info.AddObjects(ObjectBindGroups, 1)
	s.provider.OnRelease(func(bind_group_provider.BindGroupProvider) {
		r.info.AddObjects(ObjectBindGroups, -1)
	})
	return nil
}

// resolveTexture returns the texture to bind for tb: its value once ready, a placeholder of the same layout before.
func (r *renderer) resolveTexture(tb node_builder.TextureBinding) resource.Texture {
	if t := tb.Node.Value(); t != nil && !t.Disposed() {
		t.Poll()
		if t.Ready() {
			err := r.ensureTexture(t)
			if err == nil {
				return t
			}
			r.logger.Warn("texture upload failed", zap.String("texture", t.Label()), zap.Error(err))
		} else if err := t.LoadError(); err != nil {
			r.logger.Debug("texture load failed", zap.String("texture", t.Label()), zap.Error(err))
		}
	}
	p := r.placeholders.get(tb.ViewDimension, tb.SampleType)
	if err := r.ensureTexture(p); err != nil {
		r.logger.Error("placeholder upload failed", zap.Error(err))
	}
	return p
}

func (r *renderer) setupPipeline(ro *RenderObject) error {
	if ro.Pipeline != nil && !r.backend.NeedsRenderUpdate(ro) {
		return nil
	}
	p, err := pipeline.NewPipeline(ro.Program,
		pipeline.WithLabel(ro.Material.Name()),
		pipeline.WithRenderState(ro.Material.RenderState()),
		pipeline.WithTargets(ro.Context.Layout()),
		pipeline.WithVertexLayouts(ro.VertexLayouts()),
	)
	if err != nil {
		return err
	}

	r.mu.Lock()
	cached, ok := r.pipelines[p.Key()]
	r.mu.Unlock()
	r.info.recordLookup("pipeline", ok)
	if ok {
		ro.Pipeline = cached
	} else {
		ro.Pipeline = p
		if err := r.backend.CreateRenderPipeline(ro); err != nil {
			ro.Pipeline = nil
			return err
		}
		r.mu.Lock()
		r.pipelines[p.Key()] = p
		r.mu.Unlock()
		r.info.AddObjects(ObjectPipelines, 1)
	}
	ro.cacheKey = r.backend.CacheKey(ro)
	return nil
}

// disable stops ro from drawing until its material changes.
func (r *renderer) disable(ro *RenderObject, err error) {
	ro.err = err
	fields := []zap.Field{zap.String("material", ro.Material.Name()), zap.Uint64("renderable", ro.Renderable.ID()), zap.Error(err)}
	var pe *PipelineError
	if errors.As(err, &pe) {
		r.logger.Debug("rejected pipeline source", zap.String("pipeline", pe.Label), zap.String("source", pe.Source))
	}
	var prog *ProgramError
	if errors.As(err, &prog) {
		fields = append(fields, zap.Errors("diagnostics", prog.Details()))
	}
	r.logger.Error("render object disabled", fields...)
}

func (r *renderer) ensureTargetTextures(rc *RenderContext) error {
	if rc.Target == nil {
		return nil
	}
	for _, t := range rc.Target.Textures() {
		if err := r.ensureTexture(t); err != nil {
			return err
		}
	}
	if d := rc.Target.DepthTexture(); d != nil {
		return r.ensureTexture(d)
	}
	return nil
}

// ensureTexture creates t on first use and re-uploads it after version changes.
func (r *renderer) ensureTexture(t resource.Texture) error {
	r.mu.Lock()
	uploaded, ok := r.textures[t.ID()]
	r.mu.Unlock()
	version := t.Version()
	if ok && uploaded == version {
		return nil
	}

	if !ok {
		if err := r.backend.CreateTexture(t); err != nil {
			return err
		}
		r.info.AddObjects(ObjectTextures, 1)
		t.OnDispose(r.releaseTexture)
	} else if err := r.backend.UpdateTexture(t); err != nil {
		return err
	}
	if err := r.backend.CreateSampler(t); err != nil {
		return err
	}
	if t.GenerateMipmaps() && t.Image() != nil {
		if err := r.backend.GenerateMipmaps(t); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.textures[t.ID()] = version
	r.mu.Unlock()
	return nil
}

func (r *renderer) releaseTexture(t resource.Texture) {
	r.mu.Lock()
	_, ok := r.textures[t.ID()]
	delete(r.textures, t.ID())
	r.mu.Unlock()
	if ok && !r.disposed {
		r.backend.DestroyTexture(t)
		r.info.AddObjects(ObjectTextures, -1)
	}
}

// ensureAttribute creates a on first use and uploads its changes after version changes.
func (r *renderer) ensureAttribute(a *resource.Attribute) error {
	r.mu.Lock()
	uploaded, ok := r.attributes[a.ID()]
	r.mu.Unlock()
	version := a.Version()
	if ok && uploaded == version {
		return nil
	}

	var err error
	switch {
	case ok:
		err = r.backend.UpdateAttribute(a)
	case a.Kind() == resource.AttributeIndex:
		err = r.backend.CreateIndexAttribute(a)
	case a.Kind() == resource.AttributeStorage:
		err = r.backend.CreateStorageAttribute(a)
	default:
		err = r.backend.CreateAttribute(a)
	}
	if err != nil {
		return fmt.Errorf("attribute %q: %w", a.Name(), err)
	}
	if !ok {
		r.info.AddObjects(ObjectBuffers, 1)
		a.OnDispose(r.releaseAttribute)
	}
	r.mu.Lock()
	r.attributes[a.ID()] = version
	r.mu.Unlock()
	return nil
}

func (r *renderer) releaseAttribute(a *resource.Attribute) {
	r.mu.Lock()
	_, ok := r.attributes[a.ID()]
	delete(r.attributes, a.ID())
	r.mu.Unlock()
	if ok && !r.disposed {
		r.backend.DestroyAttribute(a)
		r.info.AddObjects(ObjectBuffers, -1)
	}
}

// watch drops cached state when the material or geometry of ro is disposed.
func (r *renderer) watch(ro *RenderObject) {
	r.mu.Lock()
	mID, gID := ro.Material.ID(), ro.Geometry.ID()
	watchMaterial, watchGeometry := !r.watched[mID], !r.watched[gID]
	r.watched[mID], r.watched[gID] = true, true
	r.mu.Unlock()

	if watchMaterial {
		ro.Material.OnDispose(func() {
			for _, o := range r.objects.remove(func(o *RenderObject) bool { return o.Material.ID() == mID }) {
				r.releaseObject(o)
			}
			r.bindings.releaseMaterial(mID)
		})
	}
	if watchGeometry {
		ro.Geometry.OnDispose(func(resource.Geometry) {
			for _, o := range r.objects.remove(func(o *RenderObject) bool { return o.Geometry.ID() == gID }) {
				r.releaseObject(o)
			}
		})
	}
}

func (r *renderer) watchTarget(rt resource.RenderTarget) {
	r.mu.Lock()
	seen := r.watched[rt.ID()]
	r.watched[rt.ID()] = true
	r.mu.Unlock()
	if seen {
		return
	}
	rt.OnDispose(func(rt resource.RenderTarget) {
		id := rt.ID()
		for _, o := range r.objects.remove(func(o *RenderObject) bool { return o.Context.Target != nil && o.Context.Target.ID() == id }) {
			r.releaseObject(o)
		}
		r.contexts.forget(id)
	})
}

func (r *renderer) releaseObjectBindings(ro *RenderObject) {
	if ro.object != nil {
		ro.object.provider.Release()
	}
	ro.object = nil
	ro.Bindings = nil
	ro.states = [3]*bindingState{}
}

func (r *renderer) releaseObject(ro *RenderObject) {
	r.releaseObjectBindings(ro)
	if h, ok := ro.Handle().(interface{ Release() }); ok {
		h.Release()
	}
	ro.SetHandle(nil)
}

func (r *renderer) CompileAsync(scene Scene) *common.Future[int] {
	if err := r.ready(); err != nil {
		return common.Resolved(0, err)
	}
	rc, err := r.renderContext()
	if err != nil {
		return common.Resolved(0, err)
	}
	var graphs []node_builder.Graph
	seen := map[uint64]bool{}
	for _, obj := range scene.Renderables() {
		m := obj.Material()
		if m == nil || seen[m.ID()] {
			continue
		}
		seen[m.ID()] = true
		g, err := m.Graph(rc.Outputs)
		if err != nil {
			return common.Resolved(0, &ProgramError{Material: m.Name(), Err: err})
		}
		graphs = append(graphs, g)
	}
	return common.Submit(r.executor, func() (int, error) {
		progs, err := r.programs.CompileAll(context.Background(), graphs)
		return len(progs), err
	})
}

func (r *renderer) SetSize(width, height uint32) {
	r.width, r.height = max(width, 1), max(height, 1)
	if r.initialized {
		r.backend.ResizeSurface(r.DrawingBufferSize())
	}
}

func (r *renderer) Size() (uint32, uint32) {
	return r.width, r.height
}

func (r *renderer) SetPixelRatio(ratio float32) {
	if ratio <= 0 {
		ratio = 1
	}
	r.pixelRatio = ratio
	r.SetSize(r.width, r.height)
}

func (r *renderer) PixelRatio() float32 {
	return r.pixelRatio
}

func (r *renderer) DrawingBufferSize() (uint32, uint32) {
	w := max(uint32(float32(r.width)*r.pixelRatio), 1)
	h := max(uint32(float32(r.height)*r.pixelRatio), 1)
	return w, h
}

func (r *renderer) SetRenderTarget(rt resource.RenderTarget) {
	r.target = rt
}

func (r *renderer) RenderTarget() resource.RenderTarget {
	return r.target
}

func (r *renderer) SetViewport(rect *Rect) {
	r.viewport = rect
}

func (r *renderer) Viewport() *Rect {
	return r.viewport
}

func (r *renderer) SetScissor(rect *Rect) {
	r.scissor = rect
}

func (r *renderer) Scissor() *Rect {
	return r.scissor
}

func (r *renderer) SetAutoClear(clear bool) {
	r.autoClear = clear
}

func (r *renderer) AutoClear() bool {
	return r.autoClear
}

func (r *renderer) SetClearColor(c gputypes.Color) {
	r.clearColor = c
}

func (r *renderer) ReadRenderTargetPixelsAsync(rt resource.RenderTarget, index int, x, y, width, height uint32) *common.Future[[]byte] {
	if err := r.ready(); err != nil {
		return common.Resolved[[]byte](nil, err)
	}
	textures := rt.Textures()
	if index < 0 || index >= len(textures) {
		return common.Resolved[[]byte](nil, fmt.Errorf("render target %q has no attachment %d", rt.Label(), index))
	}
	t := textures[index]
	if x+width > t.Width() || y+height > t.Height() {
		return common.Resolved[[]byte](nil, fmt.Errorf("read region %dx%d at %d,%d exceeds %dx%d", width, height, x, y, t.Width(), t.Height()))
	}
	if err := r.ensureTexture(t); err != nil {
		return common.Resolved[[]byte](nil, err)
	}
	return r.backend.CopyTextureToBufferAsync(t, x, y, width, height)
}

func (r *renderer) GetArrayBufferAsync(a *resource.Attribute) *common.Future[[]byte] {
	if err := r.ready(); err != nil {
		return common.Resolved[[]byte](nil, err)
	}
	if err := r.ensureAttribute(a); err != nil {
		return common.Resolved[[]byte](nil, err)
	}
	return r.backend.GetArrayBufferAsync(a)
}

func (r *renderer) HasFeature(f node.Feature) bool {
	if !r.initialized {
		return false
	}
	return r.backend.HasFeature(f)
}

func (r *renderer) HasFeatureAsync(f node.Feature) *common.Future[bool] {
	return r.backend.HasFeatureAsync(f)
}

func (r *renderer) DepthRange() common.DepthRange {
	if r.backend.Type() == BackendTypeGL {
		return common.DepthRangeNegOneToOne
	}
	return common.DepthRangeZeroToOne
}

func (r *renderer) Dispose() {
	if r.disposed {
		return
	}
	for _, ro := range r.objects.remove(func(*RenderObject) bool { return true }) {
		r.releaseObject(ro)
	}
	for _, co := range r.computes {
		co.release()
	}
	r.computes = map[uint64]*computeObject{}
	r.bindings.releaseAll()
	r.placeholders.dispose()
	r.disposed = true
	r.backend.Dispose()
	if r.ownsExecutor {
		r.executor.Stop()
	}
	r.logger.Info("renderer disposed", zap.Duration("uptime", time.Duration(r.frame.Time*float64(time.Second))))
}
