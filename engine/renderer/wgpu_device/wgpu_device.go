package wgpu_device

import (
	"context"
	"errors"

	"github.com/gogpu/gputypes"
)

// ErrSurfaceLost is returned by Surface.AcquireTexture when the surface must be reconfigured before the next frame.
var ErrSurfaceLost = errors.New("wgpu_device: surface lost")

// Object is a GPU object owned by the caller.
type Object interface {
	// Release frees the object. Objects must not be used after Release.
	Release()
}

// Buffer is a GPU buffer.
type Buffer interface {
	Object

	// Size returns the buffer size in bytes.
	Size() uint64
}

// Texture is a GPU texture.
type Texture interface {
	Object

	// CreateView creates a view of the texture; nil describes the whole texture.
	CreateView(desc *gputypes.TextureViewDescriptor) (TextureView, error)
}

// The remaining objects carry no methods beyond Release.
type (
	TextureView     interface{ Object }
	Sampler         interface{ Object }
	ShaderModule    interface{ Object }
	BindGroupLayout interface{ Object }
	PipelineLayout  interface{ Object }
	BindGroup       interface{ Object }
	RenderPipeline  interface{ Object }
	ComputePipeline interface{ Object }
	CommandBuffer   interface{ Object }
)

// BindGroupEntry binds one resource. Exactly one of Buffer, TextureView and Sampler is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDescriptor describes a bind group built against Layout.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// PipelineLayoutDescriptor lists the bind group layouts of a pipeline, indexed by group.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
}

// ProgrammableStage is a shader module entry point.
type ProgrammableStage struct {
	Module     ShaderModule
	EntryPoint string
}

// RenderPipelineDescriptor describes a render pipeline. Fragment is nil for depth-only pipelines.
type RenderPipelineDescriptor struct {
	Label        string
	Layout       PipelineLayout
	Vertex       ProgrammableStage
	Buffers      []gputypes.VertexBufferLayout
	Fragment     *ProgrammableStage
	Targets      []gputypes.ColorTargetState
	Primitive    gputypes.PrimitiveState
	DepthStencil *gputypes.DepthStencilState
	Multisample  gputypes.MultisampleState
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label   string
	Layout  PipelineLayout
	Compute ProgrammableStage
}

// ColorAttachment is one color attachment of a render pass.
type ColorAttachment struct {
	View          TextureView
	ResolveTarget TextureView
	LoadOp        gputypes.LoadOp
	StoreOp       gputypes.StoreOp
	ClearValue    gputypes.Color
}

// DepthStencilAttachment is the depth/stencil attachment of a render pass.
type DepthStencilAttachment struct {
	View              TextureView
	DepthLoadOp       gputypes.LoadOp
	DepthStoreOp      gputypes.StoreOp
	DepthClearValue   float32
	StencilLoadOp     gputypes.LoadOp
	StencilStoreOp    gputypes.StoreOp
	StencilClearValue uint32
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []ColorAttachment
	DepthStencilAttachment *DepthStencilAttachment
}

// TextureCopy addresses a region origin in one mip level of a texture.
type TextureCopy struct {
	Texture  Texture
	MipLevel uint32
	Origin   gputypes.Origin3D
}

// TextureDataLayout describes the layout of texel data in memory or in a buffer.
type TextureDataLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// PresentMode selects how a surface presents frames.
type PresentMode int

const (
	PresentModeFifo PresentMode = iota
	PresentModeImmediate
)

// Device creates GPU objects and submits work. It speaks gputypes so backends never see the native binding.
type Device interface {
	CreateBuffer(desc *gputypes.BufferDescriptor) (Buffer, error)

	// WriteBuffer schedules a write of data at offset.
	WriteBuffer(b Buffer, offset uint64, data []byte)

	CreateTexture(desc *gputypes.TextureDescriptor) (Texture, error)

	// WriteTexture schedules an upload of data into the region of dst of the given size.
	WriteTexture(dst TextureCopy, data []byte, layout TextureDataLayout, size gputypes.Extent3D)

	CreateSampler(desc *gputypes.SamplerDescriptor) (Sampler, error)
	CreateShaderModule(desc *gputypes.ShaderModuleDescriptor) (ShaderModule, error)
	CreateBindGroupLayout(desc *gputypes.BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Submit queues a finished command buffer for execution.
	Submit(cb CommandBuffer)

	// ReadBuffer maps a MapRead buffer, copies size bytes at offset and unmaps it, polling the device until the
	// map completes or ctx is done.
	ReadBuffer(ctx context.Context, b Buffer, offset, size uint64) ([]byte, error)

	// HasFeature reports whether the device was created with f.
	HasFeature(f gputypes.Feature) bool

	// Limits returns the device limits.
	Limits() gputypes.Limits

	// MaxColorAttachments returns the number of color attachments a render pass may use.
	MaxColorAttachments() int

	// Release frees the device and every object it created.
	Release()
}

// Surface is the presentable canvas of a window.
type Surface interface {
	// PreferredFormat returns the format the surface renders best in.
	PreferredFormat() gputypes.TextureFormat

	// Configure sizes the surface.
	Configure(width, height uint32, format gputypes.TextureFormat, mode PresentMode) error

	// AcquireTexture returns the texture of the next frame.
	AcquireTexture() (Texture, error)

	// Present shows the acquired texture.
	Present()

	Release()
}

// CommandEncoder records passes and copies.
type CommandEncoder interface {
	BeginRenderPass(desc *RenderPassDescriptor) RenderPass
	BeginComputePass(label string) ComputePass
	CopyTextureToBuffer(src TextureCopy, dst Buffer, layout TextureDataLayout, size gputypes.Extent3D)
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64)
	Finish() (CommandBuffer, error)
	Release()
}

// RenderPass records draws into the attachments of its descriptor.
type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, bg BindGroup)
	SetVertexBuffer(slot uint32, b Buffer)
	SetIndexBuffer(b Buffer, format gputypes.IndexFormat)
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	SetScissorRect(x, y, width, height uint32)
	SetStencilReference(ref uint32)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End()
}

// ComputePass records dispatches.
type ComputePass interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, bg BindGroup)
	DispatchWorkgroups(x, y, z uint32)
	End()
}

// Opener acquires a device and, for windowed rendering, its surface. Surface is nil for headless devices.
type Opener func(ctx context.Context) (Device, Surface, error)
