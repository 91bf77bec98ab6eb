package cogent

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/wgpu_device"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// device is the implementation of wgpu_device.Device over cogentcore/webgpu.
type device struct {
	mu      *sync.Mutex
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
}

var _ wgpu_device.Device = &device{}

// NewOpener returns an Opener that requests an adapter and device compatible with the surface desc describes.
// A nil desc opens a headless device.
//
// Parameters:
//   - desc: the window surface descriptor, from wgpuglfw.GetSurfaceDescriptor
//   - options: variadic list of OpenerOption functions
//
// Returns:
//   - wgpu_device.Opener: the opener
func NewOpener(desc *wgpu.SurfaceDescriptor, options ...OpenerOption) wgpu_device.Opener {
	cfg := &openConfig{maxBindGroups: 4}
	for _, opt := range options {
		opt(cfg)
	}
	return func(ctx context.Context) (wgpu_device.Device, wgpu_device.Surface, error) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		runtime.LockOSThread()
		instance := wgpu.CreateInstance(nil)

		var native *wgpu.Surface
		if desc != nil {
			native = instance.CreateSurface(desc)
		}
		a, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			ForceFallbackAdapter: cfg.forceFallback,
			CompatibleSurface:    native,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("request adapter: %w", err)
		}

		var required []wgpu.FeatureName
		for f, name := range features {
			if cfg.features.Contains(f) && a.HasFeature(name) {
				required = append(required, name)
			}
		}
		limits := wgpu.DefaultLimits()
		limits.MaxBindGroups = cfg.maxBindGroups
		d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
			Label:            "oxy-graph device",
			RequiredFeatures: required,
			RequiredLimits:   &wgpu.RequiredLimits{Limits: limits},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("request device: %w", err)
		}

		dev := &device{mu: &sync.Mutex{}, adapter: a, device: d, queue: d.GetQueue()}
		if native == nil {
			return dev, nil, nil
		}
		return dev, &surface{adapter: a, device: d, surface: native}, nil
	}
}

func (d *device) CreateBuffer(desc *gputypes.BufferDescriptor) (wgpu_device.Buffer, error) {
	b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            wgpu.BufferUsage(desc.Usage),
		MappedAtCreation: desc.MappedAtCreation,
	})
	if err != nil {
		return nil, err
	}
	return &buffer{Buffer: b, size: desc.Size}, nil
}

func (d *device) WriteBuffer(b wgpu_device.Buffer, offset uint64, data []byte) {
	d.queue.WriteBuffer(b.(*buffer).Buffer, offset, data)
}

func (d *device) CreateTexture(desc *gputypes.TextureDescriptor) (wgpu_device.Texture, error) {
	t, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Usage:         wgpu.TextureUsage(desc.Usage),
		Dimension:     textureDimension(desc.Dimension),
		Size:          extent(desc.Size),
		Format:        textureFormat(desc.Format),
		MipLevelCount: max(desc.MipLevelCount, 1),
		SampleCount:   max(desc.SampleCount, 1),
	})
	if err != nil {
		return nil, err
	}
	return &texture{Texture: t}, nil
}

func (d *device) WriteTexture(dst wgpu_device.TextureCopy, data []byte, layout wgpu_device.TextureDataLayout, size gputypes.Extent3D) {
	ext := extent(size)
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  dst.Texture.(*texture).Texture,
			MipLevel: dst.MipLevel,
			Origin:   wgpu.Origin3D{X: dst.Origin.X, Y: dst.Origin.Y, Z: dst.Origin.Z},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       layout.Offset,
			BytesPerRow:  layout.BytesPerRow,
			RowsPerImage: layout.RowsPerImage,
		},
		&ext,
	)
}

func (d *device) CreateSampler(desc *gputypes.SamplerDescriptor) (wgpu_device.Sampler, error) {
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  addressMode(desc.AddressModeU),
		AddressModeV:  addressMode(desc.AddressModeV),
		AddressModeW:  addressMode(desc.AddressModeW),
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  mipmapFilterMode(desc.MipmapFilter),
		LodMinClamp:   desc.LodMinClamp,
		LodMaxClamp:   desc.LodMaxClamp,
		MaxAnisotropy: max(desc.MaxAnisotropy, 1),
		Compare:       compareFunction(desc.Compare),
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *device) CreateShaderModule(desc *gputypes.ShaderModuleDescriptor) (wgpu_device.ShaderModule, error) {
	src, ok := desc.Source.(gputypes.ShaderSourceWGSL)
	if !ok {
		return nil, fmt.Errorf("shader module %q: only WGSL sources are supported", desc.Label)
	}
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Code},
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (d *device) CreateBindGroupLayout(desc *gputypes.BindGroupLayoutDescriptor) (wgpu_device.BindGroupLayout, error) {
	l, err := d.device.CreateBindGroupLayout(bindGroupLayout(desc))
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (d *device) CreatePipelineLayout(desc *wgpu_device.PipelineLayoutDescriptor) (wgpu_device.PipelineLayout, error) {
	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layouts[i] = l.(*wgpu.BindGroupLayout)
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}
	return pl, nil
}

func (d *device) CreateBindGroup(desc *wgpu_device.BindGroupDescriptor) (wgpu_device.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			entry.Buffer = e.Buffer.(*buffer).Buffer
			entry.Offset = e.Offset
			entry.Size = e.Size
			if entry.Size == 0 {
				entry.Size = wgpu.WholeSize
			}
		case e.TextureView != nil:
			entry.TextureView = e.TextureView.(*wgpu.TextureView)
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*wgpu.Sampler)
		}
		entries[i] = entry
	}
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  desc.Layout.(*wgpu.BindGroupLayout),
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return bg, nil
}

func (d *device) CreateRenderPipeline(desc *wgpu_device.RenderPipelineDescriptor) (wgpu_device.RenderPipeline, error) {
	native := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout.(*wgpu.PipelineLayout),
		Vertex: wgpu.VertexState{
			Module:     desc.Vertex.Module.(*wgpu.ShaderModule),
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    vertexLayouts(desc.Buffers),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  primitiveTopology(desc.Primitive.Topology),
			FrontFace: frontFace(desc.Primitive.FrontFace),
			CullMode:  cullMode(desc.Primitive.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count:                  max(desc.Multisample.Count, 1),
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: desc.Multisample.AlphaToCoverageEnabled,
		},
		DepthStencil: depthStencil(desc.DepthStencil),
	}
	if desc.Primitive.StripIndexFormat != nil {
		native.Primitive.StripIndexFormat = indexFormat(*desc.Primitive.StripIndexFormat)
	}
	if desc.Fragment != nil {
		native.Fragment = &wgpu.FragmentState{
			Module:     desc.Fragment.Module.(*wgpu.ShaderModule),
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    colorTargets(desc.Targets),
		}
	}
	p, err := d.device.CreateRenderPipeline(native)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *device) CreateComputePipeline(desc *wgpu_device.ComputePipelineDescriptor) (wgpu_device.ComputePipeline, error) {
	p, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: desc.Layout.(*wgpu.PipelineLayout),
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     desc.Compute.Module.(*wgpu.ShaderModule),
			EntryPoint: desc.Compute.EntryPoint,
		},
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *device) CreateCommandEncoder(label string) (wgpu_device.CommandEncoder, error) {
	e, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &encoder{CommandEncoder: e}, nil
}

func (d *device) Submit(cb wgpu_device.CommandBuffer) {
	d.queue.Submit(cb.(*wgpu.CommandBuffer))
}

func (d *device) ReadBuffer(ctx context.Context, b wgpu_device.Buffer, offset, size uint64) ([]byte, error) {
	native := b.(*buffer).Buffer
	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	err := native.MapAsync(wgpu.MapModeRead, offset, size, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})
	if err != nil {
		return nil, err
	}
	for {
		d.device.Poll(false, nil)
		select {
		case status := <-done:
			if status != wgpu.BufferMapAsyncStatusSuccess {
				return nil, fmt.Errorf("map buffer: status %d", status)
			}
			mapped := native.GetMappedRange(uint(offset), uint(size))
			out := make([]byte, len(mapped))
			copy(out, mapped)
			native.Unmap()
			return out, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (d *device) HasFeature(f gputypes.Feature) bool {
	name, ok := features[f]
	return ok && d.device.HasFeature(name)
}

func (d *device) Limits() gputypes.Limits {
	l := d.device.GetLimits().Limits
	return gputypes.Limits{
		MaxTextureDimension1D:       l.MaxTextureDimension1D,
		MaxTextureDimension2D:       l.MaxTextureDimension2D,
		MaxTextureDimension3D:       l.MaxTextureDimension3D,
		MaxTextureArrayLayers:       l.MaxTextureArrayLayers,
		MaxBindGroups:               l.MaxBindGroups,
		MaxUniformBufferBindingSize: l.MaxUniformBufferBindingSize,
		MaxStorageBufferBindingSize: l.MaxStorageBufferBindingSize,
		MaxVertexBuffers:            l.MaxVertexBuffers,
		MaxColorAttachments:         l.MaxColorAttachments,
	}
}

func (d *device) MaxColorAttachments() int {
	return int(d.device.GetLimits().Limits.MaxColorAttachments)
}

func (d *device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.device = nil
}

// buffer remembers its size, which the native handle only exposes through a cgo call.
type buffer struct {
	*wgpu.Buffer
	size uint64
}

func (b *buffer) Size() uint64 {
	return b.size
}

type texture struct {
	*wgpu.Texture
}

func (t *texture) CreateView(desc *gputypes.TextureViewDescriptor) (wgpu_device.TextureView, error) {
	var native *wgpu.TextureViewDescriptor
	if desc != nil {
		native = &wgpu.TextureViewDescriptor{
			Label:           desc.Label,
			Format:          textureFormat(desc.Format),
			Dimension:       textureViewDimension(desc.Dimension),
			BaseMipLevel:    desc.BaseMipLevel,
			MipLevelCount:   desc.MipLevelCount,
			BaseArrayLayer:  desc.BaseArrayLayer,
			ArrayLayerCount: desc.ArrayLayerCount,
			Aspect:          textureAspect(desc.Aspect),
		}
	}
	v, err := t.Texture.CreateView(native)
	if err != nil {
		return nil, err
	}
	return v, nil
}

type encoder struct {
	*wgpu.CommandEncoder
}

func (e *encoder) BeginRenderPass(desc *wgpu_device.RenderPassDescriptor) wgpu_device.RenderPass {
	native := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for _, a := range desc.ColorAttachments {
		ca := wgpu.RenderPassColorAttachment{
			View:       a.View.(*wgpu.TextureView),
			LoadOp:     loadOp(a.LoadOp),
			StoreOp:    storeOp(a.StoreOp),
			ClearValue: color(a.ClearValue),
		}
		if a.ResolveTarget != nil {
			ca.ResolveTarget = a.ResolveTarget.(*wgpu.TextureView)
		}
		native.ColorAttachments = append(native.ColorAttachments, ca)
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		native.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:              ds.View.(*wgpu.TextureView),
			DepthLoadOp:       loadOp(ds.DepthLoadOp),
			DepthStoreOp:      storeOp(ds.DepthStoreOp),
			DepthClearValue:   ds.DepthClearValue,
			StencilLoadOp:     loadOp(ds.StencilLoadOp),
			StencilStoreOp:    storeOp(ds.StencilStoreOp),
			StencilClearValue: ds.StencilClearValue,
		}
	}
	return &renderPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(native)}
}

func (e *encoder) BeginComputePass(label string) wgpu_device.ComputePass {
	return &computePass{ComputePassEncoder: e.CommandEncoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})}
}

func (e *encoder) CopyTextureToBuffer(src wgpu_device.TextureCopy, dst wgpu_device.Buffer, layout wgpu_device.TextureDataLayout, size gputypes.Extent3D) {
	ext := extent(size)
	e.CommandEncoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  src.Texture.(*texture).Texture,
			MipLevel: src.MipLevel,
			Origin:   wgpu.Origin3D{X: src.Origin.X, Y: src.Origin.Y, Z: src.Origin.Z},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: dst.(*buffer).Buffer,
			Layout: wgpu.TextureDataLayout{
				Offset:       layout.Offset,
				BytesPerRow:  layout.BytesPerRow,
				RowsPerImage: layout.RowsPerImage,
			},
		},
		&ext,
	)
}

func (e *encoder) CopyBufferToBuffer(src wgpu_device.Buffer, srcOffset uint64, dst wgpu_device.Buffer, dstOffset, size uint64) {
	e.CommandEncoder.CopyBufferToBuffer(src.(*buffer).Buffer, srcOffset, dst.(*buffer).Buffer, dstOffset, size)
}

func (e *encoder) Finish() (wgpu_device.CommandBuffer, error) {
	cb, err := e.CommandEncoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	return cb, nil
}

type renderPass struct {
	*wgpu.RenderPassEncoder
}

func (p *renderPass) SetPipeline(rp wgpu_device.RenderPipeline) {
	p.RenderPassEncoder.SetPipeline(rp.(*wgpu.RenderPipeline))
}

func (p *renderPass) SetBindGroup(index uint32, bg wgpu_device.BindGroup) {
	p.RenderPassEncoder.SetBindGroup(index, bg.(*wgpu.BindGroup), nil)
}

func (p *renderPass) SetVertexBuffer(slot uint32, b wgpu_device.Buffer) {
	p.RenderPassEncoder.SetVertexBuffer(slot, b.(*buffer).Buffer, 0, wgpu.WholeSize)
}

func (p *renderPass) SetIndexBuffer(b wgpu_device.Buffer, format gputypes.IndexFormat) {
	p.RenderPassEncoder.SetIndexBuffer(b.(*buffer).Buffer, indexFormat(format), 0, wgpu.WholeSize)
}

func (p *renderPass) End() {
	p.RenderPassEncoder.End()
	p.RenderPassEncoder.Release()
}

type computePass struct {
	*wgpu.ComputePassEncoder
}

func (p *computePass) SetPipeline(cp wgpu_device.ComputePipeline) {
	p.ComputePassEncoder.SetPipeline(cp.(*wgpu.ComputePipeline))
}

func (p *computePass) SetBindGroup(index uint32, bg wgpu_device.BindGroup) {
	p.ComputePassEncoder.SetBindGroup(index, bg.(*wgpu.BindGroup), nil)
}

func (p *computePass) End() {
	p.ComputePassEncoder.End()
	p.ComputePassEncoder.Release()
}

// surface is the implementation of wgpu_device.Surface.
type surface struct {
	adapter *wgpu.Adapter
	device  *wgpu.Device
	surface *wgpu.Surface
}

func (s *surface) PreferredFormat() gputypes.TextureFormat {
	caps := s.surface.GetCapabilities(s.adapter)
	for _, f := range caps.Formats {
		if g := fromTextureFormat(f); g != gputypes.TextureFormatUndefined {
			return g
		}
	}
	return gputypes.TextureFormatBGRA8Unorm
}

func (s *surface) Configure(width, height uint32, format gputypes.TextureFormat, mode wgpu_device.PresentMode) error {
	caps := s.surface.GetCapabilities(s.adapter)
	if len(caps.AlphaModes) == 0 {
		return errors.New("surface reports no alpha modes")
	}
	present := wgpu.PresentModeFifo
	if mode == wgpu_device.PresentModeImmediate {
		present = wgpu.PresentModeImmediate
	}
	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Format:      textureFormat(format),
		Width:       width,
		Height:      height,
		PresentMode: present,
		AlphaMode:   caps.AlphaModes[0],
	})
	return nil
}

func (s *surface) AcquireTexture() (wgpu_device.Texture, error) {
	t, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wgpu_device.ErrSurfaceLost, err)
	}
	return &texture{Texture: t}, nil
}

func (s *surface) Present() {
	s.surface.Present()
}

func (s *surface) Release() {
	s.surface.Release()
}
