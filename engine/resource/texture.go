package resource

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/texture_utils"
	"github.com/gogpu/gputypes"
)

// TextureDimension identifies the shape of a texture as seen by shaders.
type TextureDimension int

const (
	// Texture2D is a single 2D image.
	Texture2D TextureDimension = iota

	// Texture2DArray is a stack of 2D layers addressed by an integer layer index.
	Texture2DArray

	// TextureCube is a six-face cube map.
	TextureCube

	// Texture3D is a volume texture.
	Texture3D
)

// texture is the implementation of the Texture interface.
type texture struct {
	mu *sync.Mutex

	id        uint64
	label     string
	format    gputypes.TextureFormat
	dimension TextureDimension
	width     uint32
	height    uint32
	layers    uint32

	generateMipmaps bool
	sampleCount     uint32
	usage           gputypes.TextureUsage
	renderTarget    bool

	image   *common.TextureStagingData
	sampler common.SamplerStagingData

	// pending is a load in flight; the texture is not ready until it resolves
	pending *common.Future[common.TextureStagingData]
	loadErr error
	ready   bool

	version uint64

	events disposer[Texture]
}

// Texture describes a sampled image. The texture may be created before its pixels exist: while a load is pending,
// Ready reports false and renderers bind a placeholder of the same format instead.
type Texture interface {
	// ID returns the process-unique identifier of this texture.
	//
	// Returns:
	//   - uint64: the identifier
	ID() uint64

	// Label returns the debug label.
	Label() string

	// Format returns the texel format.
	//
	// Returns:
	//   - gputypes.TextureFormat: the format
	Format() gputypes.TextureFormat

	// Dimension returns the texture shape.
	Dimension() TextureDimension

	// Width returns the width of mip level 0 in texels.
	Width() uint32

	// Height returns the height of mip level 0 in texels.
	Height() uint32

	// Layers returns the array layer count (6 for cube maps, depth for 3D textures).
	Layers() uint32

	// MipLevelCount returns the number of mip levels, which is greater than one only when mipmap generation is enabled.
	MipLevelCount() uint32

	// GenerateMipmaps reports whether mip levels are generated after each upload.
	GenerateMipmaps() bool

	// SampleCount returns the MSAA sample count.
	SampleCount() uint32

	// Usage returns the GPU usage flags the texture must be created with.
	Usage() gputypes.TextureUsage

	// IsDepth reports whether the format carries depth.
	IsDepth() bool

	// IsRenderTarget reports whether the texture is an attachment owned by a render target.
	IsRenderTarget() bool

	// Image returns the staged pixel data, or nil when none has been provided.
	Image() *common.TextureStagingData

	// SetImage replaces the pixel data, marks the texture ready and bumps its version.
	//
	// Parameters:
	//   - img: the new pixels, must match the texture format and carry width*height texels
	//
	// Returns:
	//   - error: an error if the image does not match the texture
	SetImage(img common.TextureStagingData) error

	// Load attaches an asynchronous image load. The texture stays not-ready until Poll observes the result.
	//
	// Parameters:
	//   - f: the future producing the pixels
	Load(f *common.Future[common.TextureStagingData])

	// Poll applies a resolved load. It never blocks.
	//
	// Returns:
	//   - bool: true if the texture became ready during this call
	Poll() bool

	// Ready reports whether the texture has usable contents.
	Ready() bool

	// LoadError returns the error of a failed asynchronous load, if any.
	LoadError() error

	// Sampler returns the sampling configuration.
	Sampler() common.SamplerStagingData

	// SetSampler replaces the sampling configuration and bumps the version.
	SetSampler(s common.SamplerStagingData)

	// Resize changes the texture size and bumps the version. Existing pixels are dropped.
	//
	// Parameters:
	//   - width: the new width in texels
	//   - height: the new height in texels
	Resize(width, height uint32)

	// Version returns the mutation counter.
	Version() uint64

	// NeedsUpdate bumps the version, forcing a re-upload of the current contents.
	NeedsUpdate()

	// Descriptor builds the GPU creation descriptor for the texture's current state.
	//
	// Returns:
	//   - gputypes.TextureDescriptor: the descriptor
	Descriptor() gputypes.TextureDescriptor

	// ViewDimension returns the view dimension shaders bind the texture with.
	ViewDimension() gputypes.TextureViewDimension

	// SampleType returns the sample type shaders bind the texture with.
	SampleType() gputypes.TextureSampleType

	// Dispose releases the texture. Registered listeners run once.
	Dispose()

	// Disposed reports whether Dispose was called.
	Disposed() bool

	// OnDispose registers a listener invoked when the texture is disposed.
	OnDispose(fn func(Texture))
}

var _ Texture = &texture{}

// NewTexture creates a Texture configured with the provided options. Without WithImage or WithRenderTarget
// the texture is not ready until pixels arrive.
//
// Parameters:
//   - options: variadic list of TextureBuilderOption functions
//
// Returns:
//   - Texture: the new texture
func NewTexture(options ...TextureBuilderOption) Texture {
	t := &texture{
		mu:          &sync.Mutex{},
		id:          NextID(),
		format:      gputypes.TextureFormatRGBA8Unorm,
		dimension:   Texture2D,
		width:       1,
		height:      1,
		layers:      1,
		sampleCount: 1,
		usage:       gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc,
		version:     1,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.renderTarget {
		t.usage |= gputypes.TextureUsageRenderAttachment
		t.ready = true
	}
	if t.label == "" {
		t.label = fmt.Sprintf("texture-%d", t.id)
	}
	return t
}

func (t *texture) ID() uint64 {
	return t.id
}

func (t *texture) Label() string {
	return t.label
}

func (t *texture) Format() gputypes.TextureFormat {
	return t.format
}

func (t *texture) Dimension() TextureDimension {
	return t.dimension
}

func (t *texture) Width() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width
}

func (t *texture) Height() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.height
}

func (t *texture) Layers() uint32 {
	return t.layers
}

func (t *texture) MipLevelCount() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.generateMipmaps {
		return 1
	}
	return texture_utils.MipLevelCount(t.width, t.height)
}

func (t *texture) GenerateMipmaps() bool {
	return t.generateMipmaps
}

func (t *texture) SampleCount() uint32 {
	return t.sampleCount
}

func (t *texture) Usage() gputypes.TextureUsage {
	return t.usage
}

func (t *texture) IsDepth() bool {
	return t.format.HasDepth()
}

func (t *texture) IsRenderTarget() bool {
	return t.renderTarget
}

func (t *texture) Image() *common.TextureStagingData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.image
}

func (t *texture) SetImage(img common.TextureStagingData) error {
	if img.Format == gputypes.TextureFormatUndefined {
		img.Format = t.format
	}
	if img.Format != t.format {
		return fmt.Errorf("texture %q: image format %s does not match texture format %s", t.label, img.Format, t.format)
	}
	if img.Pixels != nil {
		want := int(img.Width) * int(img.Height) * int(t.layers) * texture_utils.BytesPerPixel(t.format)
		if len(img.Pixels) != want {
			return fmt.Errorf("texture %q: image holds %d bytes, want %d for %dx%d", t.label, len(img.Pixels), want, img.Width, img.Height)
		}
	}

	t.mu.Lock()
	t.image = &img
	t.width = img.Width
	t.height = img.Height
	t.ready = true
	t.loadErr = nil
	t.version++
	t.mu.Unlock()
	return nil
}

func (t *texture) Load(f *common.Future[common.TextureStagingData]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = f
	t.loadErr = nil
}

func (t *texture) Poll() bool {
	t.mu.Lock()
	f := t.pending
	t.mu.Unlock()
	if f == nil {
		return false
	}

	img, err, ok := f.Result()
	if !ok {
		return false
	}

	t.mu.Lock()
	t.pending = nil
	t.mu.Unlock()

	if err == nil {
		err = t.SetImage(img)
	}
	if err != nil {
		t.mu.Lock()
		t.loadErr = err
		t.mu.Unlock()
		return false
	}
	return true
}

func (t *texture) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

func (t *texture) LoadError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadErr
}

func (t *texture) Sampler() common.SamplerStagingData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sampler
}

func (t *texture) SetSampler(s common.SamplerStagingData) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sampler = s
	t.version++
}

func (t *texture) Resize(width, height uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.width == width && t.height == height {
		return
	}
	t.width = max(width, 1)
	t.height = max(height, 1)
	t.image = nil
	t.version++
}

func (t *texture) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

func (t *texture) NeedsUpdate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version++
}

func (t *texture) Descriptor() gputypes.TextureDescriptor {
	dim := gputypes.TextureDimension2D
	if t.dimension == Texture3D {
		dim = gputypes.TextureDimension3D
	}
	width, height := t.Width(), t.Height()
	return gputypes.TextureDescriptor{
		Label: t.label,
		Size: gputypes.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: t.layers,
		},
		MipLevelCount: t.MipLevelCount(),
		SampleCount:   t.sampleCount,
		Dimension:     dim,
		Format:        t.format,
		Usage:         t.usage,
	}
}

func (t *texture) ViewDimension() gputypes.TextureViewDimension {
	switch t.dimension {
	case Texture2DArray:
		return gputypes.TextureViewDimension2DArray
	case TextureCube:
		return gputypes.TextureViewDimensionCube
	case Texture3D:
		return gputypes.TextureViewDimension3D
	default:
		return gputypes.TextureViewDimension2D
	}
}

func (t *texture) SampleType() gputypes.TextureSampleType {
	return texture_utils.SampleType(t.format)
}

func (t *texture) Dispose() {
	t.events.dispose(t)
}

func (t *texture) Disposed() bool {
	return t.events.isDisposed()
}

func (t *texture) OnDispose(fn func(Texture)) {
	t.events.onDispose(fn)
}
