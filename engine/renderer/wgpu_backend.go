package renderer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/texture_utils"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/wgpu_device"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"
	"github.com/mitchellh/hashstructure/v2"
	"go.uber.org/zap"
)

// readbackTimeout bounds how long a readback waits for the GPU.
const readbackTimeout = 5 * time.Second

type wgpuTexture struct {
	texture wgpu_device.Texture
	view    wgpu_device.TextureView
	sampler wgpu_device.Sampler
	desc    gputypes.TextureDescriptor
}

func (t *wgpuTexture) objects() []wgpu_device.Object {
	out := []wgpu_device.Object{t.view, t.texture}
	if t.sampler != nil {
		out = append(out, t.sampler)
	}
	return out
}

// wgpuBindGroup is the handle stored on a BindGroupProvider.
type wgpuBindGroup struct {
	group    wgpu_device.BindGroup
	uniforms map[uint32]wgpu_device.Buffer
}

type wgpuPipeline struct {
	render  wgpu_device.RenderPipeline
	compute wgpu_device.ComputePipeline
}

// wgpuPass is the handle of an open render or compute pass.
type wgpuPass struct {
	encoder  wgpu_device.CommandEncoder
	render   wgpu_device.RenderPass
	compute  wgpu_device.ComputePass
	pipeline wgpu_device.RenderPipeline
}

// wgpuCanvas holds the attachments of the canvas. frame is the surface texture of the current frame, or the
// offscreen texture of a headless device.
type wgpuCanvas struct {
	width, height uint32
	samples       uint32

	msaa, depth         wgpu_device.Texture
	msaaView, depthView wgpu_device.TextureView

	frame     wgpu_device.Texture
	frameView wgpu_device.TextureView
	acquired  bool
	offscreen bool
}

// wgpuBackend implements Backend over a wgpu_device.Device. GPU objects are immutable: changed descriptions build
// new objects, found again by content hash, and replaced objects are released framesInFlight frames later.
type wgpuBackend struct {
	mu     *sync.Mutex
	logger *zap.Logger

	open    wgpu_device.Opener
	device  wgpu_device.Device
	surface wgpu_device.Surface
	host    BackendHost
	caps    Capabilities
	ready   *common.Future[struct{}]

	canvas wgpuCanvas

	textures map[uint64]*wgpuTexture
	buffers  map[uint64]wgpu_device.Buffer
	modules  map[string]wgpu_device.ShaderModule

	layouts         map[uint64]wgpu_device.BindGroupLayout
	pipelineLayouts map[uint64]wgpu_device.PipelineLayout
	pipelines       []*wgpuPipeline

	framesInFlight uint64
	releases       *releaseQueue
	timer          *passTimer
}

var _ Backend = &wgpuBackend{}

// NewWGPUBackend creates a WGPU backend. The device is acquired through open during Init.
//
// Parameters:
//   - open: acquires the device and surface, see cogent.NewOpener
//   - options: variadic list of WGPUBackendOption functions
//
// Returns:
//   - Backend: the backend
func NewWGPUBackend(open wgpu_device.Opener, options ...WGPUBackendOption) Backend {
	b := &wgpuBackend{
		mu:              &sync.Mutex{},
		logger:          zap.NewNop(),
		open:            open,
		ready:           common.NewFuture[struct{}](),
		textures:        map[uint64]*wgpuTexture{},
		buffers:         map[uint64]wgpu_device.Buffer{},
		modules:         map[string]wgpu_device.ShaderModule{},
		layouts:         map[uint64]wgpu_device.BindGroupLayout{},
		pipelineLayouts: map[uint64]wgpu_device.PipelineLayout{},
		framesInFlight:  DefaultFramesInFlight,
		timer:           newPassTimer(),
	}
	for _, opt := range options {
		opt(b)
	}
	b.releases = newReleaseQueue(b.framesInFlight)
	return b
}

func (b *wgpuBackend) Type() RendererBackendType {
	return BackendTypeWGPU
}

func (b *wgpuBackend) Init(ctx context.Context, host BackendHost) error {
	b.host = host
	b.logger = host.Logger().Named("wgpu")
	device, surface, err := b.open(ctx)
	if err != nil {
		b.ready.Resolve(struct{}{}, err)
		return err
	}
	b.device, b.surface = device, surface

	b.caps = Capabilities{
		Features:            node.Features(0).With(node.FeatureComputeShaders).With(node.FeatureStorageBuffers),
		MaxAnisotropy:       16,
		MaxColorAttachments: device.MaxColorAttachments(),
		SurfaceFormat:       gputypes.TextureFormatRGBA8Unorm,
		DepthFormat:         gputypes.TextureFormatDepth24PlusStencil8,
	}
	if device.HasFeature(gputypes.FeatureShaderF16) {
		b.caps.Features = b.caps.Features.With(node.FeatureShaderF16)
	}
	if device.HasFeature(gputypes.FeatureFloat32Filterable) {
		b.caps.Features = b.caps.Features.With(node.FeatureFloat32Filterable)
	}
	if surface != nil {
		b.caps.SurfaceFormat = surface.PreferredFormat()
	}

	w, h := host.DrawingBufferSize()
	if err := b.configure(w, h); err != nil {
		b.ready.Resolve(struct{}{}, err)
		return err
	}
	b.logger.Info("device ready",
		zap.Bool("headless", surface == nil),
		zap.Stringer("surface_format", b.caps.SurfaceFormat),
		zap.Int("max_color_attachments", b.caps.MaxColorAttachments),
	)
	b.ready.Resolve(struct{}{}, nil)
	return nil
}

func (b *wgpuBackend) configure(width, height uint32) error {
	b.canvas.width, b.canvas.height = width, height
	if b.surface == nil {
		return nil
	}
	mode := wgpu_device.PresentModeFifo
	if b.host.PresentMode() == PresentModeUncapped {
		mode = wgpu_device.PresentModeImmediate
	}
	return b.surface.Configure(width, height, b.caps.SurfaceFormat, mode)
}

func (b *wgpuBackend) CodeTarget() node.Target {
	return node.TargetWGSL
}

func (b *wgpuBackend) Capabilities() Capabilities {
	return b.caps
}

func (b *wgpuBackend) HasFeature(f node.Feature) bool {
	return b.caps.Features.Has(f)
}

func (b *wgpuBackend) HasFeatureAsync(f node.Feature) *common.Future[bool] {
	out := common.NewFuture[bool]()
	go func() {
		<-b.ready.Done()
		_, err, _ := b.ready.Result()
		out.Resolve(err == nil && b.HasFeature(f), err)
	}()
	return out
}

func (b *wgpuBackend) GetMaxAnisotropy() uint16 {
	return b.caps.MaxAnisotropy
}

func (b *wgpuBackend) ResizeSurface(width, height uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.canvas.width == width && b.canvas.height == height {
		return
	}
	b.releaseCanvasAttachments()
	if err := b.configure(width, height); err != nil {
		b.logger.Error("configure surface", zap.Uint32("width", width), zap.Uint32("height", height), zap.Error(err))
	}
}

// releaseCanvasAttachments queues the size-dependent canvas textures for release.
func (b *wgpuBackend) releaseCanvasAttachments() {
	c := &b.canvas
	b.releases.add(c.msaaView, c.msaa, c.depthView, c.depth)
	c.msaa, c.msaaView, c.depth, c.depthView = nil, nil, nil, nil
	if c.offscreen {
		b.releases.add(c.frameView, c.frame)
		c.frame, c.frameView, c.offscreen = nil, nil, false
	}
}

func (b *wgpuBackend) createAttachment(label string, format gputypes.TextureFormat, samples uint32, usage gputypes.TextureUsage) (wgpu_device.Texture, wgpu_device.TextureView, error) {
	t, err := b.device.CreateTexture(&gputypes.TextureDescriptor{
		Label:         label,
		Size:          gputypes.Extent3D{Width: b.canvas.width, Height: b.canvas.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", label, err)
	}
	v, err := t.CreateView(nil)
	if err != nil {
		t.Release()
		return nil, nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return t, v, nil
}

// prepareCanvas acquires the frame texture and (re)creates the MSAA and depth attachments of the canvas.
func (b *wgpuBackend) prepareCanvas(samples uint32) error {
	c := &b.canvas
	if c.samples != samples {
		b.releaseCanvasAttachments()
		c.samples = samples
	}
	if !c.acquired {
		if b.surface != nil {
			t, err := b.surface.AcquireTexture()
			if errors.Is(err, wgpu_device.ErrSurfaceLost) {
				if cerr := b.configure(c.width, c.height); cerr != nil {
					return cerr
				}
				t, err = b.surface.AcquireTexture()
			}
			if err != nil {
				return err
			}
			v, err := t.CreateView(nil)
			if err != nil {
				t.Release()
				return err
			}
			c.frame, c.frameView = t, v
		} else if c.frame == nil {
			t, v, err := b.createAttachment("canvas", b.caps.SurfaceFormat, 1,
				gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
			if err != nil {
				return err
			}
			c.frame, c.frameView, c.offscreen = t, v, true
		}
		c.acquired = true
	}
	if samples > 1 && c.msaa == nil {
		t, v, err := b.createAttachment("canvas-msaa", b.caps.SurfaceFormat, samples, gputypes.TextureUsageRenderAttachment)
		if err != nil {
			return err
		}
		c.msaa, c.msaaView = t, v
	}
	if c.depth == nil {
		t, v, err := b.createAttachment("canvas-depth", b.caps.DepthFormat, samples, gputypes.TextureUsageRenderAttachment)
		if err != nil {
			return err
		}
		c.depth, c.depthView = t, v
	}
	return nil
}

func loadOp(clear bool) gputypes.LoadOp {
	if clear {
		return gputypes.LoadOpClear
	}
	return gputypes.LoadOpLoad
}

func (b *wgpuBackend) passDescriptor(rc *RenderContext) (*wgpu_device.RenderPassDescriptor, error) {
	desc := &wgpu_device.RenderPassDescriptor{Label: fmt.Sprintf("render-%d", rc.ID)}
	var depthView wgpu_device.TextureView
	if rc.IsCanvas() {
		if err := b.prepareCanvas(rc.SampleCount); err != nil {
			return nil, err
		}
		ca := wgpu_device.ColorAttachment{
			View:       b.canvas.frameView,
			LoadOp:     loadOp(rc.Clear),
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: rc.ClearColor,
		}
		if rc.SampleCount > 1 {
			ca.View, ca.ResolveTarget = b.canvas.msaaView, b.canvas.frameView
		}
		desc.ColorAttachments = append(desc.ColorAttachments, ca)
		depthView = b.canvas.depthView
	} else {
		for _, t := range rc.Target.Textures() {
			gt, ok := b.textures[t.ID()]
			if !ok {
				return nil, fmt.Errorf("render target %q: attachment %q not created", rc.Target.Label(), t.Label())
			}
			desc.ColorAttachments = append(desc.ColorAttachments, wgpu_device.ColorAttachment{
				View:       gt.view,
				LoadOp:     loadOp(rc.Clear),
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: rc.ClearColor,
			})
		}
		if d := rc.Target.DepthTexture(); d != nil {
			if gt, ok := b.textures[d.ID()]; ok {
				depthView = gt.view
			}
		}
	}
	if depthView != nil {
		ds := &wgpu_device.DepthStencilAttachment{
			View:            depthView,
			DepthLoadOp:     loadOp(rc.Clear),
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: rc.ClearDepth,
		}
		if rc.DepthFormat.HasStencil() {
			ds.StencilLoadOp = loadOp(rc.Clear)
			ds.StencilStoreOp = gputypes.StoreOpStore
			ds.StencilClearValue = rc.ClearStencil
		}
		desc.DepthStencilAttachment = ds
	}
	return desc, nil
}

func (b *wgpuBackend) BeginRender(rc *RenderContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	desc, err := b.passDescriptor(rc)
	if err != nil {
		return err
	}
	enc, err := b.device.CreateCommandEncoder(desc.Label)
	if err != nil {
		return err
	}
	pass := enc.BeginRenderPass(desc)
	w, h := float32(rc.Width), float32(rc.Height)
	if v := rc.Viewport; v != nil {
		pass.SetViewport(float32(v.X), float32(v.Y), float32(v.Width), float32(v.Height), 0, 1)
	} else {
		pass.SetViewport(0, 0, w, h, 0, 1)
	}
	if s := rc.Scissor; s != nil {
		pass.SetScissorRect(s.X, s.Y, s.Width, s.Height)
	}
	rc.SetHandle(&wgpuPass{encoder: enc, render: pass})
	return nil
}

// submit finishes the encoder of p and queues its commands.
func (b *wgpuBackend) submit(p *wgpuPass) error {
	defer p.encoder.Release()
	cb, err := p.encoder.Finish()
	if err != nil {
		return err
	}
	b.device.Submit(cb)
	cb.Release()
	return nil
}

func (b *wgpuBackend) FinishRender(rc *RenderContext) error {
	p, ok := rc.Handle().(*wgpuPass)
	if !ok || p.render == nil {
		return errors.New("wgpu: no open render pass")
	}
	rc.SetHandle(nil)
	p.render.End()
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.submit(p)
	b.timer.stop(TimestampQueryRender, rc.ID)
	return err
}

func (b *wgpuBackend) BeginCompute(group *ComputeGroup) error {
	enc, err := b.device.CreateCommandEncoder(group.Label)
	if err != nil {
		return err
	}
	group.SetHandle(&wgpuPass{encoder: enc, compute: enc.BeginComputePass(group.Label)})
	return nil
}

func (b *wgpuBackend) FinishCompute(group *ComputeGroup) error {
	p, ok := group.Handle().(*wgpuPass)
	if !ok || p.compute == nil {
		return errors.New("wgpu: no open compute pass")
	}
	group.SetHandle(nil)
	p.compute.End()
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.submit(p)
	b.timer.stop(TimestampQueryCompute, group.ID)
	return err
}

func (b *wgpuBackend) CreateTexture(t resource.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createTexture(t)
}

func (b *wgpuBackend) createTexture(t resource.Texture) error {
	desc := t.Descriptor()
	desc.Usage |= gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	if desc.SampleCount > 1 {
		desc.Usage &^= gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	}
	native, err := b.device.CreateTexture(&desc)
	if err != nil {
		return fmt.Errorf("texture %q: %w", t.Label(), err)
	}
	view, err := native.CreateView(&gputypes.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       t.ViewDimension(),
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   desc.MipLevelCount,
		ArrayLayerCount: desc.Size.DepthOrArrayLayers,
	})
	if err != nil {
		native.Release()
		return fmt.Errorf("texture %q view: %w", t.Label(), err)
	}
	b.textures[t.ID()] = &wgpuTexture{texture: native, view: view, desc: desc}
	return b.uploadImage(t, b.textures[t.ID()])
}

// uploadImage writes level 0 of t, converting the pixels to the texture format when they differ.
func (b *wgpuBackend) uploadImage(t resource.Texture, gt *wgpuTexture) error {
	img := t.Image()
	if img == nil || len(img.Pixels) == 0 {
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
	b.writeLevel(gt, 0, data, gt.desc.Size.DepthOrArrayLayers)
	return nil
}

func (b *wgpuBackend) writeLevel(gt *wgpuTexture, level uint32, img common.TextureStagingData, layers uint32) {
	bpp := uint32(texture_utils.BytesPerPixel(gt.desc.Format))
	b.device.WriteTexture(
		wgpu_device.TextureCopy{Texture: gt.texture, MipLevel: level},
		img.Pixels,
		wgpu_device.TextureDataLayout{BytesPerRow: img.Width * bpp, RowsPerImage: img.Height},
		gputypes.Extent3D{Width: img.Width, Height: img.Height, DepthOrArrayLayers: max(layers, 1)},
	)
}

func (b *wgpuBackend) UpdateTexture(t resource.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	gt, ok := b.textures[t.ID()]
	if !ok {
		return b.createTexture(t)
	}
	desc := t.Descriptor()
	if desc.Size != gt.desc.Size || desc.Format != gt.desc.Format || desc.MipLevelCount != gt.desc.MipLevelCount {
		b.releases.add(gt.objects()...)
		delete(b.textures, t.ID())
		return b.createTexture(t)
	}
	return b.uploadImage(t, gt)
}

func (b *wgpuBackend) DestroyTexture(t resource.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gt, ok := b.textures[t.ID()]; ok {
		b.releases.add(gt.objects()...)
		delete(b.textures, t.ID())
	}
}

func (b *wgpuBackend) GenerateMipmaps(t resource.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	gt, ok := b.textures[t.ID()]
	if !ok {
		return fmt.Errorf("texture %q not created", t.Label())
	}
	img := t.Image()
	if img == nil || gt.desc.MipLevelCount < 2 {
		return nil
	}
	base := *img
	if base.Format != gt.desc.Format {
		converted, err := texture_utils.ConvertFormat(base, gt.desc.Format)
		if err != nil {
			return err
		}
		base = converted
	}
	levels, err := texture_utils.GenerateMipmaps(base)
	if err != nil {
		return fmt.Errorf("texture %q: %w", t.Label(), err)
	}
	for i, lvl := range levels {
		if uint32(i+1) >= gt.desc.MipLevelCount {
			break
		}
		b.writeLevel(gt, uint32(i+1), lvl, 1)
	}
	return nil
}

func (b *wgpuBackend) CreateSampler(t resource.Texture) error {
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
	s, err := b.device.CreateSampler(&desc)
	if err != nil {
		return fmt.Errorf("sampler %q: %w", t.Label(), err)
	}
	if gt.sampler != nil {
		b.releases.add(gt.sampler)
	}
	gt.sampler = s
	return nil
}

// alignedData pads data to a multiple of 4 bytes as buffer writes require.
func alignedData(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	out := make([]byte, common.Align(len(data), 4))
	copy(out, data)
	return out
}

func (b *wgpuBackend) createBuffer(a *resource.Attribute) error {
	size := uint64(common.Align(max(a.ByteLength(), 4), 4))
	buf, err := b.device.CreateBuffer(&gputypes.BufferDescriptor{
		Label: a.Name(),
		Size:  size,
		Usage: a.BufferUsage() | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return err
	}
	if old, ok := b.buffers[a.ID()]; ok {
		b.releases.add(old)
	}
	b.buffers[a.ID()] = buf
	a.TakeUpdateRanges()
	if a.ByteLength() > 0 {
		b.device.WriteBuffer(buf, 0, alignedData(a.Data()))
	}
	return nil
}

func (b *wgpuBackend) CreateAttribute(a *resource.Attribute) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createBuffer(a)
}

func (b *wgpuBackend) UpdateAttribute(a *resource.Attribute) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[a.ID()]
	if !ok || uint64(a.ByteLength()) > buf.Size() {
		return b.createBuffer(a)
	}
	data := a.Data()
	ranges := a.TakeUpdateRanges()
	if len(ranges) == 0 {
		b.device.WriteBuffer(buf, 0, alignedData(data))
		return nil
	}
	for _, r := range ranges {
		start := r[0] &^ 3
		end := min(common.Align(r[0]+r[1], 4), len(data))
		b.device.WriteBuffer(buf, uint64(start), alignedData(data[start:end]))
	}
	return nil
}

func (b *wgpuBackend) DestroyAttribute(a *resource.Attribute) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buf, ok := b.buffers[a.ID()]; ok {
		b.releases.add(buf)
		delete(b.buffers, a.ID())
	}
}

func (b *wgpuBackend) CreateIndexAttribute(a *resource.Attribute) error {
	return b.CreateAttribute(a)
}

func (b *wgpuBackend) CreateStorageAttribute(a *resource.Attribute) error {
	return b.CreateAttribute(a)
}

// normalizeLayout sorts entries by binding and drops the minimum binding sizes so structurally equal layouts
// share one object.
func normalizeLayout(desc gputypes.BindGroupLayoutDescriptor) gputypes.BindGroupLayoutDescriptor {
	out := gputypes.BindGroupLayoutDescriptor{Entries: slices.Clone(desc.Entries)}
	slices.SortFunc(out.Entries, func(a, b gputypes.BindGroupLayoutEntry) int {
		return int(a.Binding) - int(b.Binding)
	})
	for i, e := range out.Entries {
		if e.Buffer != nil {
			buf := *e.Buffer
			buf.MinBindingSize = 0
			out.Entries[i].Buffer = &buf
		}
	}
	return out
}

// bindGroupLayout returns the cached layout object for desc.
func (b *wgpuBackend) bindGroupLayout(desc gputypes.BindGroupLayoutDescriptor) (wgpu_device.BindGroupLayout, uint64, error) {
	norm := normalizeLayout(desc)
	key, err := hashstructure.Hash(norm, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, 0, err
	}
	if l, ok := b.layouts[key]; ok {
		return l, key, nil
	}
	norm.Label = fmt.Sprintf("layout-%016x", key)
	l, err := b.device.CreateBindGroupLayout(&norm)
	if err != nil {
		return nil, 0, err
	}
	b.layouts[key] = l
	return l, key, nil
}

func (b *wgpuBackend) buildBindGroup(p bind_group_provider.BindGroupProvider, uniforms map[uint32]wgpu_device.Buffer) (wgpu_device.BindGroup, error) {
	layout, _, err := b.bindGroupLayout(p.Layout())
	if err != nil {
		return nil, err
	}
	desc := &wgpu_device.BindGroupDescriptor{Label: p.Label(), Layout: layout}
	for _, e := range p.Entries() {
		entry := wgpu_device.BindGroupEntry{Binding: e.Binding}
		switch e.Kind {
		case bind_group_provider.EntryUniformBuffer:
			entry.Buffer = uniforms[e.Binding]
		case bind_group_provider.EntryStorageBuffer:
			if e.Storage == nil {
				return nil, fmt.Errorf("binding %d: no storage attribute", e.Binding)
			}
			buf, ok := b.buffers[e.Storage.ID()]
			if !ok {
				return nil, fmt.Errorf("binding %d: storage %q not created", e.Binding, e.Storage.Name())
			}
			entry.Buffer = buf
		case bind_group_provider.EntryTexture, bind_group_provider.EntrySampler:
			if e.Texture == nil {
				return nil, fmt.Errorf("binding %d: no texture", e.Binding)
			}
			gt, ok := b.textures[e.Texture.ID()]
			if !ok {
				return nil, fmt.Errorf("binding %d: texture %q not created", e.Binding, e.Texture.Label())
			}
			if e.Kind == bind_group_provider.EntryTexture {
				entry.TextureView = gt.view
			} else {
				entry.Sampler = gt.sampler
			}
		}
		desc.Entries = append(desc.Entries, entry)
	}
	return b.device.CreateBindGroup(desc)
}

func (b *wgpuBackend) CreateBindings(p bind_group_provider.BindGroupProvider) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	uniforms := map[uint32]wgpu_device.Buffer{}
	for _, e := range p.Entries() {
		if e.Kind != bind_group_provider.EntryUniformBuffer {
			continue
		}
		buf, err := b.device.CreateBuffer(&gputypes.BufferDescriptor{
			Label: fmt.Sprintf("%s/%d", p.Label(), e.Binding),
			Size:  uint64(common.Align(int(max(e.Buffer.Size(), 16)), 16)),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		e.Buffer.TakeDirty()
		b.device.WriteBuffer(buf, 0, e.Buffer.Data())
		uniforms[e.Binding] = buf
	}
	key := p.ResourceKey()
	group, err := b.buildBindGroup(p, uniforms)
	if err != nil {
		for _, buf := range uniforms {
			buf.Release()
		}
		return fmt.Errorf("bind group %q: %w", p.Label(), err)
	}
	p.SetHandle(&wgpuBindGroup{group: group, uniforms: uniforms}, key)
	p.OnRelease(func(p bind_group_provider.BindGroupProvider) {
		h, _ := p.Handle()
		bg, ok := h.(*wgpuBindGroup)
		if !ok {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.releases.add(bg.group)
		for _, buf := range bg.uniforms {
			b.releases.add(buf)
		}
	})
	return nil
}

func (b *wgpuBackend) UpdateBindings(p bind_group_provider.BindGroupProvider) error {
	h, built := p.Handle()
	bg, ok := h.(*wgpuBindGroup)
	if !ok {
		return b.CreateBindings(p)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for binding, buf := range bg.uniforms {
		ub := p.Buffer(binding)
		if offset, data := ub.TakeDirty(); data != nil {
			start := offset &^ 3
			end := min(common.Align(offset+len(data), 4), int(ub.Size()))
			b.device.WriteBuffer(buf, uint64(start), alignedData(ub.Data()[start:end]))
		}
	}
	key := p.ResourceKey()
	if key == built {
		return nil
	}
	group, err := b.buildBindGroup(p, bg.uniforms)
	if err != nil {
		return fmt.Errorf("bind group %q: %w", p.Label(), err)
	}
	b.releases.add(bg.group)
	bg.group = group
	p.SetHandle(bg, key)
	return nil
}

// pipelineLayout returns the cached layout of the three bind groups of prog.
func (b *wgpuBackend) pipelineLayout(layouts map[int]gputypes.BindGroupLayoutDescriptor) (wgpu_device.PipelineLayout, error) {
	groups := make([]wgpu_device.BindGroupLayout, len(layouts))
	d := xxhash.New()
	for g := range len(layouts) {
		l, key, err := b.bindGroupLayout(layouts[g])
		if err != nil {
			return nil, err
		}
		groups[g] = l
		_, _ = fmt.Fprintf(d, "%d:%016x;", g, key)
	}
	key := d.Sum64()
	if pl, ok := b.pipelineLayouts[key]; ok {
		return pl, nil
	}
	pl, err := b.device.CreatePipelineLayout(&wgpu_device.PipelineLayoutDescriptor{
		Label:            fmt.Sprintf("pipeline-layout-%016x", key),
		BindGroupLayouts: groups,
	})
	if err != nil {
		return nil, err
	}
	b.pipelineLayouts[key] = pl
	return pl, nil
}

func (b *wgpuBackend) module(p pipeline.Pipeline, s shader.Shader) (wgpu_device.ShaderModule, error) {
	if m, ok := b.modules[s.Key()]; ok {
		return m, nil
	}
	desc := s.Module()
	m, err := b.device.CreateShaderModule(&desc)
	if err != nil {
		return nil, &PipelineError{Label: p.Label(), Source: s.Source(), Message: err.Error()}
	}
	b.modules[s.Key()] = m
	return m, nil
}

func (b *wgpuBackend) CreateRenderPipeline(ro *RenderObject) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := ro.Pipeline
	prog := p.Program()
	vs, err := b.module(p, prog.Vertex)
	if err != nil {
		return err
	}
	layout, err := b.pipelineLayout(prog.BindGroupLayouts())
	if err != nil {
		return err
	}

	state := p.RenderState()
	targets := p.Targets()
	desc := &wgpu_device.RenderPipelineDescriptor{
		Label:   p.PipelineKey(),
		Layout:  layout,
		Vertex:  wgpu_device.ProgrammableStage{Module: vs, EntryPoint: prog.Vertex.EntryPoint()},
		Buffers: p.VertexLayouts(),
		Targets: state.ColorTargets(targets.Formats),
		Primitive: gputypes.PrimitiveState{
			Topology:  state.Topology,
			FrontFace: state.FrontFace,
			CullMode:  state.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count:                  max(targets.SampleCount, 1),
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: state.AlphaToCoverage,
		},
	}
	if ro.Index != nil && (state.Topology == gputypes.PrimitiveTopologyTriangleStrip || state.Topology == gputypes.PrimitiveTopologyLineStrip) {
		f := ro.Index.IndexFormat()
		desc.Primitive.StripIndexFormat = &f
	}
	if prog.Fragment != nil {
		fs, err := b.module(p, prog.Fragment)
		if err != nil {
			return err
		}
		desc.Fragment = &wgpu_device.ProgrammableStage{Module: fs, EntryPoint: prog.Fragment.EntryPoint()}
	}
	if targets.DepthFormat != gputypes.TextureFormatUndefined {
		ds := &gputypes.DepthStencilState{
			Format:              targets.DepthFormat,
			DepthWriteEnabled:   state.DepthTest && state.DepthWrite,
			DepthCompare:        state.EffectiveDepthCompare(),
			StencilFront:        gputypes.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
			StencilBack:         gputypes.StencilFaceState{Compare: gputypes.CompareFunctionAlways},
			DepthBias:           state.DepthBias,
			DepthBiasSlopeScale: state.DepthBiasSlopeScale,
		}
		if st := state.Stencil; st != nil && targets.DepthFormat.HasStencil() {
			face := gputypes.StencilFaceState{Compare: st.Compare, FailOp: st.FailOp, DepthFailOp: st.DepthFailOp, PassOp: st.PassOp}
			ds.StencilFront, ds.StencilBack = face, face
			ds.StencilReadMask, ds.StencilWriteMask = st.ReadMask, st.WriteMask
		}
		desc.DepthStencil = ds
	}

	rp, err := b.device.CreateRenderPipeline(desc)
	if err != nil {
		return &PipelineError{Label: p.Label(), Source: prog.Vertex.Source() + "\n" + fragmentSource(prog.Fragment), Message: err.Error()}
	}
	h := &wgpuPipeline{render: rp}
	b.pipelines = append(b.pipelines, h)
	p.SetHandle(h)
	b.logger.Debug("render pipeline created", zap.String("pipeline", p.PipelineKey()))
	return nil
}

func fragmentSource(s shader.Shader) string {
	if s == nil {
		return ""
	}
	return s.Source()
}

func (b *wgpuBackend) CreateComputePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prog := p.Program()
	cs, err := b.module(p, prog.Compute)
	if err != nil {
		return err
	}
	layout, err := b.pipelineLayout(prog.BindGroupLayouts())
	if err != nil {
		return err
	}
	cp, err := b.device.CreateComputePipeline(&wgpu_device.ComputePipelineDescriptor{
		Label:   p.PipelineKey(),
		Layout:  layout,
		Compute: wgpu_device.ProgrammableStage{Module: cs, EntryPoint: prog.Compute.EntryPoint()},
	})
	if err != nil {
		return &PipelineError{Label: p.Label(), Source: prog.Compute.Source(), Message: err.Error()}
	}
	h := &wgpuPipeline{compute: cp}
	b.pipelines = append(b.pipelines, h)
	p.SetHandle(h)
	return nil
}

func (b *wgpuBackend) CacheKey(ro *RenderObject) uint64 {
	d := xxhash.New()
	_, _ = fmt.Fprintf(d, "%d/%d/%d/%d", ro.Program.Key, ro.Material.Version(), ro.Context.Key(), ro.Geometry.Version())
	return d.Sum64()
}

func (b *wgpuBackend) NeedsRenderUpdate(ro *RenderObject) bool {
	if ro.Pipeline == nil || ro.Pipeline.Handle() == nil {
		return true
	}
	return b.CacheKey(ro) != ro.cacheKey
}

func (b *wgpuBackend) bindGroup(p bind_group_provider.BindGroupProvider) (wgpu_device.BindGroup, error) {
	h, _ := p.Handle()
	bg, ok := h.(*wgpuBindGroup)
	if !ok {
		return nil, fmt.Errorf("bind group %q not created", p.Label())
	}
	return bg.group, nil
}

func (b *wgpuBackend) Draw(ro *RenderObject) error {
	pass, ok := ro.Context.Handle().(*wgpuPass)
	if !ok || pass.render == nil {
		return errors.New("wgpu: draw outside a render pass")
	}
	h, ok := ro.Pipeline.Handle().(*wgpuPipeline)
	if !ok || h.render == nil {
		return fmt.Errorf("pipeline %q not created", ro.Pipeline.Label())
	}
	if pass.pipeline != h.render {
		pass.render.SetPipeline(h.render)
		pass.pipeline = h.render
	}
	for i, p := range ro.Bindings {
		bg, err := b.bindGroup(p)
		if err != nil {
			return err
		}
		pass.render.SetBindGroup(uint32(i), bg)
	}

	b.mu.Lock()
	for i, a := range ro.Attributes {
		buf, ok := b.buffers[a.ID()]
		if !ok {
			b.mu.Unlock()
			return fmt.Errorf("attribute %q not created", a.Name())
		}
		pass.render.SetVertexBuffer(uint32(i), buf)
	}
	var index wgpu_device.Buffer
	if ro.Index != nil {
		index = b.buffers[ro.Index.ID()]
	}
	b.mu.Unlock()

	state := ro.Pipeline.RenderState()
	if state.Stencil != nil {
		pass.render.SetStencilReference(state.Stencil.Reference)
	}
	first, count, instances := ro.DrawParams()
	if count == 0 {
		return nil
	}
	if index != nil {
		pass.render.SetIndexBuffer(index, ro.Index.IndexFormat())
		pass.render.DrawIndexed(uint32(count), uint32(instances), uint32(first), 0, 0)
	} else {
		pass.render.Draw(uint32(count), uint32(instances), uint32(first), 0)
	}
	b.host.Info().RecordDraw(topologyKind(state.Topology), count, instances)
	return nil
}

func (b *wgpuBackend) Compute(group *ComputeGroup, p pipeline.Pipeline, bindings []bind_group_provider.BindGroupProvider, dispatch [3]uint32) error {
	pass, ok := group.Handle().(*wgpuPass)
	if !ok || pass.compute == nil {
		return errors.New("wgpu: dispatch outside a compute pass")
	}
	h, ok := p.Handle().(*wgpuPipeline)
	if !ok || h.compute == nil {
		return fmt.Errorf("pipeline %q not created", p.Label())
	}
	pass.compute.SetPipeline(h.compute)
	for i, bp := range bindings {
		bg, err := b.bindGroup(bp)
		if err != nil {
			return err
		}
		pass.compute.SetBindGroup(uint32(i), bg)
	}
	pass.compute.DispatchWorkgroups(max(dispatch[0], 1), max(dispatch[1], 1), max(dispatch[2], 1))
	return nil
}

func (b *wgpuBackend) InitTimestampQuery(kind TimestampQuery, id uint64) {
	b.timer.start(kind, id)
}

func (b *wgpuBackend) ResolveTimestampsAsync(kind TimestampQuery) *common.Future[time.Duration] {
	return b.timer.resolve(kind)
}

// readback copies through a staging buffer and resolves once the GPU finished the copy.
func (b *wgpuBackend) readback(label string, size uint64, record func(enc wgpu_device.CommandEncoder, staging wgpu_device.Buffer), finish func([]byte) []byte) *common.Future[[]byte] {
	staging, err := b.device.CreateBuffer(&gputypes.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return common.Resolved[[]byte](nil, err)
	}
	enc, err := b.device.CreateCommandEncoder(label)
	if err != nil {
		staging.Release()
		return common.Resolved[[]byte](nil, err)
	}
	record(enc, staging)
	if err := b.submit(&wgpuPass{encoder: enc}); err != nil {
		staging.Release()
		return common.Resolved[[]byte](nil, err)
	}

	out := common.NewFuture[[]byte]()
	go func() {
		defer staging.Release()
		ctx, cancel := context.WithTimeout(context.Background(), readbackTimeout)
		defer cancel()
		data, err := b.device.ReadBuffer(ctx, staging, 0, size)
		if err != nil {
			out.Resolve(nil, fmt.Errorf("%s: %w", label, err))
			return
		}
		out.Resolve(finish(data), nil)
	}()
	return out
}

func (b *wgpuBackend) CopyTextureToBufferAsync(t resource.Texture, x, y, width, height uint32) *common.Future[[]byte] {
	b.mu.Lock()
	defer b.mu.Unlock()
	gt, ok := b.textures[t.ID()]
	if !ok {
		return common.Resolved[[]byte](nil, fmt.Errorf("texture %q not created", t.Label()))
	}
	if gt.desc.SampleCount > 1 {
		return common.Resolved[[]byte](nil, fmt.Errorf("%w: reading multisampled texture %q", ErrUnsupportedBackend, t.Label()))
	}
	bpp := uint32(texture_utils.BytesPerPixel(gt.desc.Format))
	row := width * bpp
	padded := uint32(common.Align(int(row), 256))
	return b.readback("readback-"+t.Label(), uint64(padded)*uint64(height),
		func(enc wgpu_device.CommandEncoder, staging wgpu_device.Buffer) {
			enc.CopyTextureToBuffer(
				wgpu_device.TextureCopy{Texture: gt.texture, Origin: gputypes.Origin3D{X: x, Y: y}},
				staging,
				wgpu_device.TextureDataLayout{BytesPerRow: padded, RowsPerImage: height},
				gputypes.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			)
		},
		func(data []byte) []byte {
			out := make([]byte, 0, row*height)
			for r := range height {
				out = append(out, data[r*padded:r*padded+row]...)
			}
			return out
		},
	)
}

func (b *wgpuBackend) GetArrayBufferAsync(a *resource.Attribute) *common.Future[[]byte] {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[a.ID()]
	if !ok {
		return common.Resolved[[]byte](nil, fmt.Errorf("attribute %q not created", a.Name()))
	}
	n := a.ByteLength()
	size := uint64(common.Align(max(n, 4), 4))
	return b.readback("readback-"+a.Name(), size,
		func(enc wgpu_device.CommandEncoder, staging wgpu_device.Buffer) {
			enc.CopyBufferToBuffer(buf, 0, staging, 0, size)
		},
		func(data []byte) []byte { return data[:n] },
	)
}

func (b *wgpuBackend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &b.canvas
	if c.acquired && b.surface != nil {
		b.surface.Present()
		c.frameView.Release()
		c.frame.Release()
		c.frame, c.frameView = nil, nil
	}
	c.acquired = false
	if n := b.releases.advance(); n > 0 {
		b.logger.Debug("released deferred objects", zap.Int("count", n))
	}
}

func (b *wgpuBackend) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return
	}
	b.releaseCanvasAttachments()
	if b.canvas.frame != nil {
		b.releases.add(b.canvas.frameView, b.canvas.frame)
		b.canvas.frame, b.canvas.frameView = nil, nil
	}
	for id, gt := range b.textures {
		b.releases.add(gt.objects()...)
		delete(b.textures, id)
	}
	for id, buf := range b.buffers {
		b.releases.add(buf)
		delete(b.buffers, id)
	}
	for _, p := range b.pipelines {
		if p.render != nil {
			b.releases.add(p.render)
		}
		if p.compute != nil {
			b.releases.add(p.compute)
		}
	}
	b.pipelines = nil
	for k, pl := range b.pipelineLayouts {
		b.releases.add(pl)
		delete(b.pipelineLayouts, k)
	}
	for k, l := range b.layouts {
		b.releases.add(l)
		delete(b.layouts, k)
	}
	for k, m := range b.modules {
		b.releases.add(m)
		delete(b.modules, k)
	}
	b.releases.flush()
	if b.surface != nil {
		b.surface.Release()
	}
	b.device.Release()
	b.device = nil
}
