package renderer

import (
	"context"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeGL selects the OpenGL backend.
	BackendTypeGL
)

func (t RendererBackendType) String() string {
	if t == BackendTypeGL {
		return "gl"
	}
	return "wgpu"
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA) of the canvas.
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4
)

// TimestampQuery selects the pass kind a timestamp belongs to.
type TimestampQuery int

const (
	TimestampQueryRender TimestampQuery = iota
	TimestampQueryCompute
)

// Capabilities describes what an initialized backend offers.
type Capabilities struct {
	// Features are the optional shader capabilities the backend supports.
	Features node.Features

	// MaxAnisotropy is the largest sampler anisotropy.
	MaxAnisotropy uint16

	// MaxColorAttachments bounds the MRT attachment count.
	MaxColorAttachments int

	// SurfaceFormat is the color format of the canvas.
	SurfaceFormat gputypes.TextureFormat

	// DepthFormat is the depth format of the canvas.
	DepthFormat gputypes.TextureFormat
}

// BackendHost is the view of the renderer a backend reads during Init and per-pass setup.
type BackendHost interface {
	// DrawingBufferSize returns the canvas size in physical pixels.
	DrawingBufferSize() (uint32, uint32)

	// PresentMode returns the requested present mode of the canvas.
	PresentMode() PresentMode

	// Info returns the statistics the backend updates.
	Info() *Info

	// Logger returns the logger backends name their own loggers from.
	Logger() *zap.Logger
}

// Backend is the contract between the Renderer and a GPU API. Backends share only these signatures: the GL backend
// applies state through a shadow-state cache, the WGPU backend builds immutable objects cached by content hash.
//
// The renderer owns the lifecycle: it creates resources on first use, updates them when their version changes and
// destroys them when they are disposed. Backends store their objects on the resource handles they are given or in
// maps keyed by resource id.
type Backend interface {
	// Type returns the backend kind.
	Type() RendererBackendType

	// Init acquires the device and reads its capabilities.
	//
	// Parameters:
	//   - ctx: bounds device acquisition
	//   - host: the renderer
	//
	// Returns:
	//   - error: an error if the device could not be initialized
	Init(ctx context.Context, host BackendHost) error

	// CodeTarget returns the shading language the backend consumes.
	CodeTarget() node.Target

	// Capabilities returns the capabilities read during Init.
	Capabilities() Capabilities

	// HasFeature reports whether the backend supports f. Absence is not an error.
	HasFeature(f node.Feature) bool

	// HasFeatureAsync resolves HasFeature once the device is available.
	HasFeatureAsync(f node.Feature) *common.Future[bool]

	// GetMaxAnisotropy returns the largest sampler anisotropy.
	GetMaxAnisotropy() uint16

	// ResizeSurface resizes the canvas.
	ResizeSurface(width, height uint32)

	// BeginRender opens a render pass for rc, clearing its attachments when rc.Clear is set.
	BeginRender(rc *RenderContext) error

	// FinishRender closes the pass opened by BeginRender and submits it.
	FinishRender(rc *RenderContext) error

	// BeginCompute opens a compute pass.
	BeginCompute(group *ComputeGroup) error

	// FinishCompute closes the compute pass and submits it.
	FinishCompute(group *ComputeGroup) error

	// CreateTexture allocates storage for t and uploads its image, if any.
	CreateTexture(t resource.Texture) error

	// UpdateTexture re-uploads t after a version change, reallocating when its size changed.
	UpdateTexture(t resource.Texture) error

	// DestroyTexture frees the storage of t.
	DestroyTexture(t resource.Texture)

	// GenerateMipmaps fills the mip chain of t from level 0.
	GenerateMipmaps(t resource.Texture) error

	// CreateSampler creates the sampler of t from t.Sampler().
	CreateSampler(t resource.Texture) error

	// CreateAttribute uploads a vertex or instance attribute.
	CreateAttribute(a *resource.Attribute) error

	// UpdateAttribute uploads the changed ranges of a, or all of it when no range is pending.
	UpdateAttribute(a *resource.Attribute) error

	// DestroyAttribute frees the buffer of a.
	DestroyAttribute(a *resource.Attribute)

	// CreateIndexAttribute uploads an index attribute.
	CreateIndexAttribute(a *resource.Attribute) error

	// CreateStorageAttribute creates a storage buffer for a.
	CreateStorageAttribute(a *resource.Attribute) error

	// CreateBindings builds the backend binding object of p and registers its release.
	CreateBindings(p bind_group_provider.BindGroupProvider) error

	// UpdateBindings uploads dirty uniform bytes of p and rebuilds its binding object when its resource key no
	// longer matches the handle's.
	UpdateBindings(p bind_group_provider.BindGroupProvider) error

	// CreateRenderPipeline builds the backend pipeline of ro.Pipeline and stores it with SetHandle.
	//
	// Returns:
	//   - error: a *PipelineError carrying the generated source and the backend message
	CreateRenderPipeline(ro *RenderObject) error

	// CreateComputePipeline builds the backend pipeline of p and stores it with SetHandle.
	CreateComputePipeline(p pipeline.Pipeline) error

	// NeedsRenderUpdate reports whether ro needs a new pipeline before it draws.
	NeedsRenderUpdate(ro *RenderObject) bool

	// CacheKey returns the key of the pipeline ro needs on this backend.
	CacheKey(ro *RenderObject) uint64

	// Draw records one draw of ro into the open render pass.
	Draw(ro *RenderObject) error

	// Compute records one dispatch into the open compute pass.
	//
	// Parameters:
	//   - group: the open compute pass
	//   - p: the compute pipeline
	//   - bindings: the bind groups indexed by group number
	//   - dispatch: the workgroup counts
	Compute(group *ComputeGroup, p pipeline.Pipeline, bindings []bind_group_provider.BindGroupProvider, dispatch [3]uint32) error

	// InitTimestampQuery starts timing pass id of kind.
	InitTimestampQuery(kind TimestampQuery, id uint64)

	// ResolveTimestampsAsync resolves with the total time of the passes of kind finished since the last call.
	ResolveTimestampsAsync(kind TimestampQuery) *common.Future[time.Duration]

	// CopyTextureToBufferAsync reads a region of t as tightly packed rows.
	CopyTextureToBufferAsync(t resource.Texture, x, y, width, height uint32) *common.Future[[]byte]

	// GetArrayBufferAsync reads the GPU contents of a.
	GetArrayBufferAsync(a *resource.Attribute) *common.Future[[]byte]

	// EndFrame presents the canvas and advances the frame generation.
	EndFrame()

	// Dispose frees every backend object. Work in flight completes first.
	Dispose()
}

// topologyKind names the primitive kind of t for draw statistics.
func topologyKind(t gputypes.PrimitiveTopology) string {
	switch t {
	case gputypes.PrimitiveTopologyLineList, gputypes.PrimitiveTopologyLineStrip:
		return "lines"
	case gputypes.PrimitiveTopologyPointList:
		return "points"
	}
	return "triangles"
}
