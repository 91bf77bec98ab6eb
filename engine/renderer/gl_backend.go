package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/gl_driver"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/texture_utils"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"
)

// glBindingsPerGroup spaces the uniform binding points of the bind groups: group g binding b uses point g*8+b.
const glBindingsPerGroup = 8

type glTexture struct {
	handle  gl_driver.Handle
	sampler gl_driver.Handle
	desc    gputypes.TextureDescriptor
	dim     gputypes.TextureViewDimension
}

type glBuffer struct {
	handle gl_driver.Handle
	target gl_driver.BufferTarget
	size   int
}

// glProgram is a linked program shared by every pipeline of one program key.
type glProgram struct {
	handle gl_driver.Handle
	key    uint64
}

// glPipeline is the GL rendition of a pipeline: a program plus the state applied before each draw.
type glPipeline struct {
	program *glProgram
	state   pipeline.RenderState
	targets pipeline.TargetLayout
}

// glBindGroup owns the uniform buffers of a provider.
type glBindGroup struct {
	uniforms map[uint32]gl_driver.Handle
}

// glVertexArray is the vertex array of one render object and the buffers it was built against.
type glVertexArray struct {
	handle  gl_driver.Handle
	buffers []gl_driver.Handle
	index   gl_driver.Handle
	release func(gl_driver.Handle)
}

// Release queues deletion of the vertex array for the next frame boundary.
func (v *glVertexArray) Release() {
	if v.release != nil && v.handle != 0 {
		v.release(v.handle)
		v.handle = 0
	}
}

type glFramebuffer struct {
	handle  gl_driver.Handle
	version uint64
}

type glPass struct {
	rc *RenderContext
}

// glBackend implements Backend over a gl_driver.Driver. State is mutable: every draw applies its pipeline's state
// through the shadow cache, which drops calls repeating the current value.
type glBackend struct {
	mu     *sync.Mutex
	logger *zap.Logger

	driver gl_driver.Driver
	state  *glState
	host   BackendHost
	caps   Capabilities
	ready  *common.Future[struct{}]

	width, height uint32

	textures     map[uint64]*glTexture
	buffers      map[uint64]*glBuffer
	programs     map[uint64]*glProgram
	framebuffers map[uint64]*glFramebuffer

	// pendingVertexArrays and pendingBuffers are deleted at the next EndFrame, on the context thread.
	pendingMu           *sync.Mutex
	pendingVertexArrays []gl_driver.Handle
	pendingBuffers      []gl_driver.Handle

	swap         func()
	swapInterval func(int)
	timer        *passTimer
}

var _ Backend = &glBackend{}

// NewGLBackend creates a GL backend over driver. The context must be current on the thread that calls Init and
// every later renderer method.
//
// Parameters:
//   - driver: the GL call surface, see gogl.NewDriver
//   - options: variadic list of GLBackendOption functions
//
// Returns:
//   - Backend: the backend
func NewGLBackend(driver gl_driver.Driver, options ...GLBackendOption) Backend {
	b := &glBackend{
		mu:           &sync.Mutex{},
		pendingMu:    &sync.Mutex{},
		logger:       zap.NewNop(),
		driver:       driver,
		ready:        common.NewFuture[struct{}](),
		textures:     map[uint64]*glTexture{},
		buffers:      map[uint64]*glBuffer{},
		programs:     map[uint64]*glProgram{},
		framebuffers: map[uint64]*glFramebuffer{},
		timer:        newPassTimer(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *glBackend) Type() RendererBackendType {
	return BackendTypeGL
}

func (b *glBackend) Init(ctx context.Context, host BackendHost) error {
	b.host = host
	b.logger = host.Logger().Named("gl")
	if err := ctx.Err(); err != nil {
		b.ready.Resolve(struct{}{}, err)
		return err
	}
	if err := b.driver.Init(); err != nil {
		b.ready.Resolve(struct{}{}, err)
		return err
	}
	info := b.driver.Info()
	b.state = newGLState(b.driver, info.MaxColorAttachments, info.MaxTextureUnits)
	b.caps = Capabilities{
		Features:            node.Features(0).With(node.FeatureFloat32Filterable),
		MaxAnisotropy:       uint16(max(info.MaxAnisotropy, 1)),
		MaxColorAttachments: info.MaxColorAttachments,
		SurfaceFormat:       gputypes.TextureFormatRGBA8Unorm,
		DepthFormat:         gputypes.TextureFormatDepth24PlusStencil8,
	}
	b.width, b.height = host.DrawingBufferSize()
	if b.swapInterval != nil {
		if host.PresentMode() == PresentModeUncapped {
			b.swapInterval(0)
		} else {
			b.swapInterval(1)
		}
	}
	b.logger.Info("context ready",
		zap.String("vendor", info.Vendor),
		zap.String("renderer", info.Renderer),
		zap.String("version", info.Version),
		zap.Int("max_color_attachments", info.MaxColorAttachments),
	)
	b.ready.Resolve(struct{}{}, nil)
	return nil
}

func (b *glBackend) CodeTarget() node.Target {
	return node.TargetGLSL
}

func (b *glBackend) Capabilities() Capabilities {
	return b.caps
}

func (b *glBackend) HasFeature(f node.Feature) bool {
	return b.caps.Features.Has(f)
}

func (b *glBackend) HasFeatureAsync(f node.Feature) *common.Future[bool] {
	out := common.NewFuture[bool]()
	go func() {
		<-b.ready.Done()
		_, err, _ := b.ready.Result()
		out.Resolve(err == nil && b.HasFeature(f), err)
	}()
	return out
}

func (b *glBackend) GetMaxAnisotropy() uint16 {
	return b.caps.MaxAnisotropy
}

// ResizeSurface records the size; the default framebuffer follows the window.
func (b *glBackend) ResizeSurface(width, height uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
}

// framebuffer returns the framebuffer of rc, building it when the target changed since the last pass.
func (b *glBackend) framebuffer(rc *RenderContext) (gl_driver.Handle, error) {
	if rc.IsCanvas() {
		return 0, nil
	}
	t := rc.Target
	fb, ok := b.framebuffers[t.ID()]
	if ok && fb.version == t.Version() {
		return fb.handle, nil
	}
	if ok {
		if b.state.framebuffer.v == fb.handle {
			b.state.bindFramebuffer(0)
		}
		b.driver.DeleteFramebuffer(fb.handle)
		delete(b.framebuffers, t.ID())
	}
	var colors []gl_driver.Handle
	for _, tex := range t.Textures() {
		gt, ok := b.textures[tex.ID()]
		if !ok {
			return 0, fmt.Errorf("render target %q: attachment %q not created", t.Label(), tex.Label())
		}
		colors = append(colors, gt.handle)
	}
	var depth gl_driver.Handle
	if d := t.DepthTexture(); d != nil {
		if gt, ok := b.textures[d.ID()]; ok {
			depth = gt.handle
		}
	}
	h, err := b.driver.CreateFramebuffer(colors, depth, t.DepthFormat(), max(t.SampleCount(), 1))
	if err != nil {
		return 0, fmt.Errorf("render target %q: %w", t.Label(), err)
	}
	// CreateFramebuffer leaves the default framebuffer bound.
	b.state.framebuffer.invalidate()
	b.framebuffers[t.ID()] = &glFramebuffer{handle: h, version: t.Version()}
	return h, nil
}

// glRect converts a top-left rectangle into GL's bottom-left window coordinates.
func glRect(r Rect, height uint32) [4]int32 {
	return [4]int32{int32(r.X), int32(height) - int32(r.Y) - int32(r.Height), int32(r.Width), int32(r.Height)}
}

func (b *glBackend) BeginRender(rc *RenderContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	fb, err := b.framebuffer(rc)
	if err != nil {
		return err
	}
	b.state.bindFramebuffer(fb)

	vp := [4]int32{0, 0, int32(rc.Width), int32(rc.Height)}
	if rc.Viewport != nil {
		vp = glRect(*rc.Viewport, rc.Height)
	}
	b.state.setViewport(vp[0], vp[1], vp[2], vp[3])

	if rc.Clear {
		b.state.setScissor(nil)
		for i := range max(len(rc.Formats), 1) {
			b.state.setColorMask(i, gputypes.ColorWriteMaskAll)
		}
		var depth *float32
		var stencil *uint32
		if rc.DepthFormat != gputypes.TextureFormatUndefined {
			b.state.setDepthMask(true)
			depth = &rc.ClearDepth
			if rc.DepthFormat.HasStencil() {
				b.state.setStencilMask(0xFF)
				stencil = &rc.ClearStencil
			}
		}
		if len(rc.Formats) > 1 {
			for i := range rc.Formats {
				b.driver.ClearBuffer(i, rc.ClearColor)
			}
			b.driver.Clear(nil, depth, stencil)
		} else {
			color := rc.ClearColor
			b.driver.Clear(&color, depth, stencil)
		}
	}
	if rc.Scissor != nil {
		r := glRect(*rc.Scissor, rc.Height)
		b.state.setScissor(&r)
	} else {
		b.state.setScissor(nil)
	}
	rc.SetHandle(&glPass{rc: rc})
	return nil
}

func (b *glBackend) FinishRender(rc *RenderContext) error {
	if _, ok := rc.Handle().(*glPass); !ok {
		return errors.New("gl: no open render pass")
	}
	rc.SetHandle(nil)
	b.mu.Lock()
	applied, skipped := b.state.takeCounts()
	b.mu.Unlock()
	b.host.Info().RecordStateChanges(applied, skipped)
	b.timer.stop(TimestampQueryRender, rc.ID)
	return nil
}

func (b *glBackend) BeginCompute(group *ComputeGroup) error {
	return fmt.Errorf("%w: gl has no compute passes", ErrUnsupportedBackend)
}

func (b *glBackend) FinishCompute(group *ComputeGroup) error {
	return fmt.Errorf("%w: gl has no compute passes", ErrUnsupportedBackend)
}

func (b *glBackend) CreateTexture(t resource.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createTexture(t)
}

func (b *glBackend) createTexture(t resource.Texture) error {
	desc := t.Descriptor()
	h, err := b.driver.CreateTexture(desc, t.ViewDimension())
	if err != nil {
		return fmt.Errorf("texture %q: %w", t.Label(), err)
	}
	b.state.invalidateTextures()
	gt := &glTexture{handle: h, desc: desc, dim: t.ViewDimension()}
	b.textures[t.ID()] = gt
	return b.uploadImage(t, gt)
}

// uploadImage writes level 0 of t, one layer at a time.
func (b *glBackend) uploadImage(t resource.Texture, gt *glTexture) error {
	img := t.Image()
	if img == nil || len(img.Pixels) == 0 || gt.desc.SampleCount > 1 {
		return nil
	}
	data := *img
	if data.Format != gt.desc.Format {
		converted, err := texture_utils.ConvertFormat(data, gt.desc.Format)
		if err != nil {
			return fmt.Errorf("texture %q: %w", t.Label(), err)
		}
		data = converted
	}
	return b.writeLevel(gt, 0, data, gt.desc.Size.DepthOrArrayLayers)
}

func (b *glBackend) writeLevel(gt *glTexture, level int, img common.TextureStagingData, layers uint32) error {
	layers = max(layers, 1)
	size := int(img.Width) * int(img.Height) * texture_utils.BytesPerPixel(gt.desc.Format)
	if gt.dim == gputypes.TextureViewDimension2D {
		layers = 1
		size = len(img.Pixels)
	}
	for layer := range int(layers) {
		start, end := layer*size, (layer+1)*size
		if end > len(img.Pixels) {
			break
		}
		if err := b.driver.TexImage(gt.handle, gt.dim, gt.desc.Format, level, layer, img.Width, img.Height, img.Pixels[start:end]); err != nil {
			return err
		}
	}
	b.state.invalidateTextures()
	return nil
}

func (b *glBackend) UpdateTexture(t resource.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	gt, ok := b.textures[t.ID()]
	if !ok {
		return b.createTexture(t)
	}
	desc := t.Descriptor()
	if desc.Size != gt.desc.Size || desc.Format != gt.desc.Format || desc.MipLevelCount != gt.desc.MipLevelCount {
		b.deleteTexture(t.ID(), gt)
		return b.createTexture(t)
	}
	return b.uploadImage(t, gt)
}

func (b *glBackend) deleteTexture(id uint64, gt *glTexture) {
	b.state.forgetTexture(gt.handle)
	b.driver.DeleteTexture(gt.handle)
	if gt.sampler != 0 {
		b.state.forgetSampler(gt.sampler)
		b.driver.DeleteSampler(gt.sampler)
	}
	delete(b.textures, id)
}

func (b *glBackend) DestroyTexture(t resource.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gt, ok := b.textures[t.ID()]; ok {
		b.deleteTexture(t.ID(), gt)
	}
}

// GenerateMipmaps uses the driver's mip generation; formats it cannot filter fall back to the CPU chain.
func (b *glBackend) GenerateMipmaps(t resource.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	gt, ok := b.textures[t.ID()]
	if !ok {
		return fmt.Errorf("texture %q not created", t.Label())
	}
	if gt.desc.MipLevelCount < 2 {
		return nil
	}
	if !t.IsDepth() {
		b.driver.GenerateMipmap(gt.handle, gt.dim)
		b.state.invalidateTextures()
		return nil
	}
	img := t.Image()
	if img == nil {
		return nil
	}
	levels, err := texture_utils.GenerateMipmaps(*img)
	if err != nil {
		return fmt.Errorf("texture %q: %w", t.Label(), err)
	}
	for i, lvl := range levels {
		if uint32(i+1) >= gt.desc.MipLevelCount {
			break
		}
		if err := b.writeLevel(gt, i+1, lvl, 1); err != nil {
			return err
		}
	}
	return nil
}

func (b *glBackend) CreateSampler(t resource.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	gt, ok := b.textures[t.ID()]
	if !ok {
		return fmt.Errorf("texture %q not created", t.Label())
	}
	desc := t.Sampler().Descriptor(t.Label(), b.caps.MaxAnisotropy)
	if t.IsDepth() && desc.Compare == gputypes.CompareFunctionUndefined {
		desc.MagFilter, desc.MinFilter = gputypes.FilterModeNearest, gputypes.FilterModeNearest
		desc.MipmapFilter = gputypes.MipmapFilterModeNearest
	}
	if gt.desc.MipLevelCount < 2 {
		desc.MipmapFilter = gputypes.MipmapFilterModeUndefined
	}
	if gt.sampler != 0 {
		b.state.forgetSampler(gt.sampler)
		b.driver.DeleteSampler(gt.sampler)
	}
	gt.sampler = b.driver.CreateSampler(desc)
	return nil
}

func attributeTarget(a *resource.Attribute) gl_driver.BufferTarget {
	if a.Kind() == resource.AttributeIndex {
		return gl_driver.BufferElementArray
	}
	return gl_driver.BufferArray
}

func (b *glBackend) createBuffer(a *resource.Attribute) {
	target := attributeTarget(a)
	if target == gl_driver.BufferElementArray {
		// Binding an element buffer changes the bound vertex array.
		b.state.bindVertexArray(0)
	}
	if old, ok := b.buffers[a.ID()]; ok {
		b.queueBuffer(old.handle)
	}
	a.TakeUpdateRanges()
	h := b.driver.CreateBuffer(target, a.Data(), a.Kind() == resource.AttributeInstanced)
	b.buffers[a.ID()] = &glBuffer{handle: h, target: target, size: a.ByteLength()}
}

func (b *glBackend) CreateAttribute(a *resource.Attribute) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createBuffer(a)
	return nil
}

func (b *glBackend) UpdateAttribute(a *resource.Attribute) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[a.ID()]
	if !ok || a.ByteLength() > buf.size {
		b.createBuffer(a)
		return nil
	}
	if buf.target == gl_driver.BufferElementArray {
		b.state.bindVertexArray(0)
	}
	data := a.Data()
	ranges := a.TakeUpdateRanges()
	if len(ranges) == 0 {
		b.driver.BufferSubData(buf.target, buf.handle, 0, data)
		return nil
	}
	for _, r := range ranges {
		end := min(r[0]+r[1], len(data))
		b.driver.BufferSubData(buf.target, buf.handle, r[0], data[r[0]:end])
	}
	return nil
}

func (b *glBackend) DestroyAttribute(a *resource.Attribute) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buf, ok := b.buffers[a.ID()]; ok {
		b.queueBuffer(buf.handle)
		delete(b.buffers, a.ID())
	}
}

func (b *glBackend) CreateIndexAttribute(a *resource.Attribute) error {
	return b.CreateAttribute(a)
}

func (b *glBackend) CreateStorageAttribute(a *resource.Attribute) error {
	return fmt.Errorf("%w: storage attribute %q", ErrUnsupportedBackend, a.Name())
}

func (b *glBackend) CreateBindings(p bind_group_provider.BindGroupProvider) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bg := &glBindGroup{uniforms: map[uint32]gl_driver.Handle{}}
	for _, e := range p.Entries() {
		switch e.Kind {
		case bind_group_provider.EntryUniformBuffer:
			e.Buffer.TakeDirty()
			bg.uniforms[e.Binding] = b.driver.CreateBuffer(gl_driver.BufferUniform, e.Buffer.Data(), true)
		case bind_group_provider.EntryStorageBuffer:
			for _, h := range bg.uniforms {
				b.driver.DeleteBuffer(h)
			}
			return fmt.Errorf("%w: bind group %q binds a storage buffer", ErrUnsupportedBackend, p.Label())
		}
	}
	p.SetHandle(bg, p.ResourceKey())
	p.OnRelease(func(p bind_group_provider.BindGroupProvider) {
		h, _ := p.Handle()
		bg, ok := h.(*glBindGroup)
		if !ok {
			return
		}
		for _, ub := range bg.uniforms {
			b.queueBuffer(ub)
		}
	})
	return nil
}

// UpdateBindings uploads dirty uniform ranges. Textures are bound per draw, so a new resource key only moves the
// handle's key forward.
func (b *glBackend) UpdateBindings(p bind_group_provider.BindGroupProvider) error {
	h, built := p.Handle()
	bg, ok := h.(*glBindGroup)
	if !ok {
		return b.CreateBindings(p)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for binding, ub := range bg.uniforms {
		buf := p.Buffer(binding)
		if buf == nil {
			continue
		}
		if offset, data := buf.TakeDirty(); data != nil {
			b.driver.BufferSubData(gl_driver.BufferUniform, ub, offset, data)
		}
	}
	if key := p.ResourceKey(); key != built {
		p.SetHandle(bg, key)
	}
	return nil
}

// program links the stages of prog once per program key and points its blocks and samplers at their slots.
func (b *glBackend) program(p pipeline.Pipeline) (*glProgram, error) {
	prog := p.Program()
	if gp, ok := b.programs[prog.Key]; ok {
		return gp, nil
	}
	if prog.Fragment == nil {
		return nil, &PipelineError{Label: p.Label(), Source: prog.Vertex.Source(), Message: "gl programs need a fragment stage"}
	}
	h, err := b.driver.CreateProgram(prog.Vertex.Source(), prog.Fragment.Source())
	if err != nil {
		return nil, &PipelineError{Label: p.Label(), Source: prog.Vertex.Source() + "\n" + prog.Fragment.Source(), Message: err.Error()}
	}
	for _, g := range prog.UniformGroups {
		b.driver.UniformBlockBinding(h, g.BlockName, g.BindGroup*glBindingsPerGroup+g.Binding)
	}
	for unit, t := range prog.Textures {
		b.driver.SamplerUnit(h, t.Name, int32(unit))
	}
	// SamplerUnit switches the current program.
	b.state.program.invalidate()
	gp := &glProgram{handle: h, key: prog.Key}
	b.programs[prog.Key] = gp
	return gp, nil
}

func (b *glBackend) CreateRenderPipeline(ro *RenderObject) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := ro.Pipeline
	gp, err := b.program(p)
	if err != nil {
		return err
	}
	p.SetHandle(&glPipeline{program: gp, state: p.RenderState(), targets: p.Targets()})
	b.logger.Debug("render pipeline created", zap.String("pipeline", p.PipelineKey()))
	return nil
}

func (b *glBackend) CreateComputePipeline(p pipeline.Pipeline) error {
	return fmt.Errorf("%w: gl has no compute pipelines", ErrUnsupportedBackend)
}

// CacheKey ignores the context: GL programs do not depend on the attachment layout.
func (b *glBackend) CacheKey(ro *RenderObject) uint64 {
	d := xxhash.New()
	_, _ = fmt.Fprintf(d, "%d/%d/%d", ro.Program.Key, ro.Material.Version(), ro.Geometry.Version())
	return d.Sum64()
}

func (b *glBackend) NeedsRenderUpdate(ro *RenderObject) bool {
	if ro.Pipeline == nil || ro.Pipeline.Handle() == nil {
		return true
	}
	return b.CacheKey(ro) != ro.cacheKey
}

// applyRenderState sets the fixed-function state of gp for a pass with the given layout.
func (b *glBackend) applyRenderState(gp *glPipeline, rc *RenderContext) {
	s := gp.state
	hasDepth := rc.DepthFormat != gputypes.TextureFormatUndefined
	b.state.setDepth(hasDepth && (s.DepthTest || s.DepthWrite), s.EffectiveDepthCompare(), hasDepth && s.DepthWrite)
	b.state.setCull(s.CullMode, s.FrontFace)
	b.state.setPolygonOffset(s.DepthBiasSlopeScale, float32(s.DepthBias))
	if st := s.Stencil; st != nil && rc.DepthFormat.HasStencil() {
		b.state.setStencil(
			stencilFunc{compare: st.Compare, ref: st.Reference, mask: st.ReadMask},
			stencilOps{fail: st.FailOp, depthFail: st.DepthFailOp, pass: st.PassOp},
			st.WriteMask,
		)
	} else {
		b.state.enable(gl_driver.CapStencilTest, false)
	}
	for i := range max(len(rc.Formats), 1) {
		blend := s.Blend(i)
		b.state.setBlend(i, blend.Enabled, blend.State, blend.WriteMask)
	}
	b.state.enable(gl_driver.CapSampleAlphaToCoverage, s.AlphaToCoverage && rc.SampleCount > 1)
}

// vertexArray returns the vertex array of ro, rebuilding it when an attribute buffer was recreated.
func (b *glBackend) vertexArray(ro *RenderObject) (gl_driver.Handle, error) {
	buffers := make([]gl_driver.Handle, len(ro.Attributes))
	for i, a := range ro.Attributes {
		buf, ok := b.buffers[a.ID()]
		if !ok {
			return 0, fmt.Errorf("attribute %q not created", a.Name())
		}
		buffers[i] = buf.handle
	}
	var index gl_driver.Handle
	if ro.Index != nil {
		buf, ok := b.buffers[ro.Index.ID()]
		if !ok {
			return 0, fmt.Errorf("index attribute %q not created", ro.Index.Name())
		}
		index = buf.handle
	}

	va, _ := ro.Handle().(*glVertexArray)
	if va != nil && va.handle != 0 && va.index == index && equalHandles(va.buffers, buffers) {
		return va.handle, nil
	}
	if va != nil {
		va.Release()
	}

	attrs := make([]gl_driver.VertexAttribute, 0, len(buffers))
	for i, l := range ro.Program.Attributes {
		if i >= len(buffers) {
			break
		}
		var divisor uint32
		if ro.Instanced(i) {
			divisor = 1
		}
		attrs = append(attrs, gl_driver.VertexAttribute{
			Location: l.Location,
			Buffer:   buffers[i],
			Format:   l.Format,
			Divisor:  divisor,
		})
	}
	h := b.driver.CreateVertexArray(attrs, index)
	// CreateVertexArray leaves no vertex array bound.
	b.state.vertexArray.invalidate()
	ro.SetHandle(&glVertexArray{handle: h, buffers: buffers, index: index, release: b.queueVertexArray})
	return h, nil
}

func equalHandles(a, b []gl_driver.Handle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// queueVertexArray defers deletion to EndFrame; render objects release their arrays from any goroutine.
func (b *glBackend) queueVertexArray(h gl_driver.Handle) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pendingVertexArrays = append(b.pendingVertexArrays, h)
}

func (b *glBackend) queueBuffer(h gl_driver.Handle) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pendingBuffers = append(b.pendingBuffers, h)
}

// bindResources binds the uniform buffers and textures of ro's bind groups.
func (b *glBackend) bindResources(ro *RenderObject) error {
	for g, p := range ro.Bindings {
		if p == nil {
			continue
		}
		h, _ := p.Handle()
		bg, ok := h.(*glBindGroup)
		if !ok {
			return fmt.Errorf("bind group %q not created", p.Label())
		}
		for binding, ub := range bg.uniforms {
			b.state.bindUniformBuffer(uint32(g)*glBindingsPerGroup+binding, ub)
		}
	}
	for unit, tb := range ro.Program.Textures {
		if int(tb.Group) >= len(ro.Bindings) || ro.Bindings[tb.Group] == nil {
			return fmt.Errorf("texture %q: bind group %d missing", tb.Name, tb.Group)
		}
		e, ok := ro.Bindings[tb.Group].Entry(tb.Binding)
		if !ok || e.Texture == nil {
			return fmt.Errorf("texture %q: binding %d empty", tb.Name, tb.Binding)
		}
		gt, ok := b.textures[e.Texture.ID()]
		if !ok {
			return fmt.Errorf("texture %q not created", e.Texture.Label())
		}
		b.state.bindTexture(unit, gt.dim, gt.handle)
		b.state.bindSampler(unit, gt.sampler)
	}
	return nil
}

func (b *glBackend) Draw(ro *RenderObject) error {
	pass, ok := ro.Context.Handle().(*glPass)
	if !ok {
		return errors.New("gl: draw outside a render pass")
	}
	gp, ok := ro.Pipeline.Handle().(*glPipeline)
	if !ok {
		return fmt.Errorf("pipeline %q not created", ro.Pipeline.Label())
	}
	first, count, instances := ro.DrawParams()
	if count == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.useProgram(gp.program.handle)
	b.applyRenderState(gp, pass.rc)
	if err := b.bindResources(ro); err != nil {
		return err
	}
	va, err := b.vertexArray(ro)
	if err != nil {
		return err
	}
	b.state.bindVertexArray(va)

	if ro.Index != nil {
		b.driver.DrawElements(gp.state.Topology, ro.Index.IndexFormat(), first, count, instances)
	} else {
		b.driver.DrawArrays(gp.state.Topology, first, count, instances)
	}
	b.host.Info().RecordDraw(topologyKind(gp.state.Topology), count, instances)
	return nil
}

func (b *glBackend) Compute(group *ComputeGroup, p pipeline.Pipeline, bindings []bind_group_provider.BindGroupProvider, dispatch [3]uint32) error {
	return fmt.Errorf("%w: gl has no compute passes", ErrUnsupportedBackend)
}

func (b *glBackend) InitTimestampQuery(kind TimestampQuery, id uint64) {
	b.timer.start(kind, id)
}

func (b *glBackend) ResolveTimestampsAsync(kind TimestampQuery) *common.Future[time.Duration] {
	return b.timer.resolve(kind)
}

// CopyTextureToBufferAsync reads through a temporary framebuffer. Render target rows are flipped so the result is
// top row first on both backends.
func (b *glBackend) CopyTextureToBufferAsync(t resource.Texture, x, y, width, height uint32) *common.Future[[]byte] {
	b.mu.Lock()
	defer b.mu.Unlock()
	gt, ok := b.textures[t.ID()]
	if !ok {
		return common.Resolved[[]byte](nil, fmt.Errorf("texture %q not created", t.Label()))
	}
	if gt.desc.SampleCount > 1 || t.IsDepth() {
		return common.Resolved[[]byte](nil, fmt.Errorf("%w: reading texture %q", ErrUnsupportedBackend, t.Label()))
	}
	fb, err := b.driver.CreateFramebuffer([]gl_driver.Handle{gt.handle}, 0, gputypes.TextureFormatUndefined, 1)
	if err != nil {
		return common.Resolved[[]byte](nil, err)
	}
	defer b.driver.DeleteFramebuffer(fb)
	b.state.framebuffer.invalidate()
	b.state.bindFramebuffer(fb)

	flip := t.IsRenderTarget()
	ry := int32(y)
	if flip {
		ry = int32(gt.desc.Size.Height) - int32(y) - int32(height)
	}
	data, err := b.driver.ReadPixels(0, int32(x), ry, int32(width), int32(height), gt.desc.Format)
	b.state.bindFramebuffer(0)
	if err != nil {
		return common.Resolved[[]byte](nil, err)
	}
	if flip {
		data = flipRows(data, int(width)*texture_utils.BytesPerPixel(gt.desc.Format), int(height))
	}
	return common.Resolved(data, nil)
}

func flipRows(data []byte, row, height int) []byte {
	out := make([]byte, len(data))
	for r := range height {
		copy(out[r*row:(r+1)*row], data[(height-1-r)*row:(height-r)*row])
	}
	return out
}

func (b *glBackend) GetArrayBufferAsync(a *resource.Attribute) *common.Future[[]byte] {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[a.ID()]
	if !ok {
		return common.Resolved[[]byte](nil, fmt.Errorf("attribute %q not created", a.Name()))
	}
	if buf.target == gl_driver.BufferElementArray {
		b.state.bindVertexArray(0)
	}
	data, err := b.driver.ReadBuffer(buf.target, buf.handle, 0, a.ByteLength())
	return common.Resolved(data, err)
}

// flushPending deletes the objects released since the last frame.
func (b *glBackend) flushPending() {
	b.pendingMu.Lock()
	arrays, buffers := b.pendingVertexArrays, b.pendingBuffers
	b.pendingVertexArrays, b.pendingBuffers = nil, nil
	b.pendingMu.Unlock()

	for _, h := range arrays {
		if b.state.vertexArray.v == h {
			b.state.vertexArray.invalidate()
		}
		b.driver.DeleteVertexArray(h)
	}
	for _, h := range buffers {
		b.state.forgetUniformBuffer(h)
		b.driver.DeleteBuffer(h)
	}
}

func (b *glBackend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return
	}
	b.flushPending()
	b.driver.Flush()
	if b.swap != nil {
		b.swap()
	}
}

func (b *glBackend) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return
	}
	b.flushPending()
	for id, gt := range b.textures {
		b.deleteTexture(id, gt)
	}
	for id, buf := range b.buffers {
		b.driver.DeleteBuffer(buf.handle)
		delete(b.buffers, id)
	}
	for id, fb := range b.framebuffers {
		b.driver.DeleteFramebuffer(fb.handle)
		delete(b.framebuffers, id)
	}
	for k, p := range b.programs {
		b.driver.DeleteProgram(p.handle)
		delete(b.programs, k)
	}
	b.driver.Flush()
	b.state = nil
}
