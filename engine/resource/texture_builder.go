package resource

import (
	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/gogpu/gputypes"
)

// TextureBuilderOption is a functional option applied to a texture during construction via NewTexture.
type TextureBuilderOption func(*texture)

// WithTextureLabel sets the debug label.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - TextureBuilderOption: a function that applies the label option to a texture
func WithTextureLabel(label string) TextureBuilderOption {
	return func(t *texture) {
		t.label = label
	}
}

// WithFormat sets the texel format. Defaults to RGBA8Unorm.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - TextureBuilderOption: a function that applies the format option to a texture
func WithFormat(format gputypes.TextureFormat) TextureBuilderOption {
	return func(t *texture) {
		t.format = format
	}
}

// WithSize sets the size of mip level 0.
//
// Parameters:
//   - width: the width in texels
//   - height: the height in texels
//
// Returns:
//   - TextureBuilderOption: a function that applies the size option to a texture
func WithSize(width, height uint32) TextureBuilderOption {
	return func(t *texture) {
		t.width = max(width, 1)
		t.height = max(height, 1)
	}
}

// WithDimension sets the texture shape and its layer count. Cube maps always have six layers.
//
// Parameters:
//   - dimension: the texture shape
//   - layers: the array layer count or 3D depth
//
// Returns:
//   - TextureBuilderOption: a function that applies the dimension option to a texture
func WithDimension(dimension TextureDimension, layers uint32) TextureBuilderOption {
	return func(t *texture) {
		t.dimension = dimension
		t.layers = max(layers, 1)
		if dimension == TextureCube {
			t.layers = 6
		}
	}
}

// WithImage provides pixel data up front, making the texture immediately ready.
// The image size overrides WithSize.
//
// Parameters:
//   - img: the pixels
//
// Returns:
//   - TextureBuilderOption: a function that applies the image option to a texture
func WithImage(img common.TextureStagingData) TextureBuilderOption {
	return func(t *texture) {
		if img.Format == gputypes.TextureFormatUndefined {
			img.Format = t.format
		}
		t.format = img.Format
		t.width = img.Width
		t.height = img.Height
		t.image = &img
		t.ready = true
	}
}

// WithLoad attaches an asynchronous load; the texture becomes ready once Poll observes the result.
//
// Parameters:
//   - f: the future producing the pixels
//
// Returns:
//   - TextureBuilderOption: a function that applies the load option to a texture
func WithLoad(f *common.Future[common.TextureStagingData]) TextureBuilderOption {
	return func(t *texture) {
		t.pending = f
	}
}

// WithMipmaps enables mip chain generation after each upload.
func WithMipmaps(enabled bool) TextureBuilderOption {
	return func(t *texture) {
		t.generateMipmaps = enabled
	}
}

// WithSampler sets the sampling configuration.
//
// Parameters:
//   - s: the sampler configuration
//
// Returns:
//   - TextureBuilderOption: a function that applies the sampler option to a texture
func WithSampler(s common.SamplerStagingData) TextureBuilderOption {
	return func(t *texture) {
		t.sampler = s
	}
}

// WithSampleCount sets the MSAA sample count for attachment textures.
func WithSampleCount(count uint32) TextureBuilderOption {
	return func(t *texture) {
		t.sampleCount = max(count, 1)
	}
}

// WithRenderTarget marks the texture as a render attachment. Attachments are ready without pixel data.
func WithRenderTarget() TextureBuilderOption {
	return func(t *texture) {
		t.renderTarget = true
	}
}

// WithUsage adds GPU usage flags, for example StorageBinding for compute-written textures.
//
// Parameters:
//   - usage: the flags to OR into the default usage
//
// Returns:
//   - TextureBuilderOption: a function that applies the usage option to a texture
func WithUsage(usage gputypes.TextureUsage) TextureBuilderOption {
	return func(t *texture) {
		t.usage |= usage
	}
}
