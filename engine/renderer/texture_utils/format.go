// Package texture_utils holds backend-independent texture helpers: format metadata, CPU mip chain generation and
// pixel format conversion. Backends use it to size uploads and to fill mip levels when the device cannot blit.
package texture_utils

import (
	"math/bits"

	"github.com/gogpu/gputypes"
)

// BytesPerPixel returns the size of one texel of format, or 0 for compressed or unknown formats.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - int: the texel size in bytes
func BytesPerPixel(format gputypes.TextureFormat) int {
	switch format {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm, gputypes.TextureFormatR8Uint,
		gputypes.TextureFormatR8Sint, gputypes.TextureFormatStencil8:
		return 1
	case gputypes.TextureFormatR16Uint, gputypes.TextureFormatR16Sint, gputypes.TextureFormatR16Float,
		gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatRG8Snorm, gputypes.TextureFormatRG8Uint,
		gputypes.TextureFormatRG8Sint, gputypes.TextureFormatDepth16Unorm:
		return 2
	case gputypes.TextureFormatR32Uint, gputypes.TextureFormatR32Sint, gputypes.TextureFormatR32Float,
		gputypes.TextureFormatRG16Uint, gputypes.TextureFormatRG16Sint, gputypes.TextureFormatRG16Float,
		gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb, gputypes.TextureFormatRGBA8Snorm,
		gputypes.TextureFormatRGBA8Uint, gputypes.TextureFormatRGBA8Sint, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatBGRA8UnormSrgb, gputypes.TextureFormatRGB10A2Unorm,
		gputypes.TextureFormatRG11B10Ufloat, gputypes.TextureFormatRGB9E5Ufloat,
		gputypes.TextureFormatDepth24Plus, gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32Float:
		return 4
	case gputypes.TextureFormatRG32Uint, gputypes.TextureFormatRG32Sint, gputypes.TextureFormatRG32Float,
		gputypes.TextureFormatRGBA16Uint, gputypes.TextureFormatRGBA16Sint, gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatDepth32FloatStencil8:
		return 8
	case gputypes.TextureFormatRGBA32Uint, gputypes.TextureFormatRGBA32Sint, gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// MipLevelCount returns the length of a full mip chain down to 1x1.
//
// Parameters:
//   - width: the width of level 0
//   - height: the height of level 0
//
// Returns:
//   - uint32: the number of levels
func MipLevelCount(width, height uint32) uint32 {
	m := max(width, height, 1)
	return uint32(bits.Len32(m))
}

// MipSize returns the size of a mip level, never smaller than 1x1.
func MipSize(width, height, level uint32) (uint32, uint32) {
	return max(width>>level, 1), max(height>>level, 1)
}

// SampleType returns the shader sample type for format.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - gputypes.TextureSampleType: the sample type a binding of this format must declare
func SampleType(format gputypes.TextureFormat) gputypes.TextureSampleType {
	switch format {
	case gputypes.TextureFormatDepth16Unorm, gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth32FloatStencil8:
		return gputypes.TextureSampleTypeDepth
	case gputypes.TextureFormatR8Uint, gputypes.TextureFormatR16Uint, gputypes.TextureFormatR32Uint,
		gputypes.TextureFormatRG8Uint, gputypes.TextureFormatRG16Uint, gputypes.TextureFormatRG32Uint,
		gputypes.TextureFormatRGBA8Uint, gputypes.TextureFormatRGBA16Uint, gputypes.TextureFormatRGBA32Uint,
		gputypes.TextureFormatStencil8:
		return gputypes.TextureSampleTypeUint
	case gputypes.TextureFormatR8Sint, gputypes.TextureFormatR16Sint, gputypes.TextureFormatR32Sint,
		gputypes.TextureFormatRG8Sint, gputypes.TextureFormatRG16Sint, gputypes.TextureFormatRG32Sint,
		gputypes.TextureFormatRGBA8Sint, gputypes.TextureFormatRGBA16Sint, gputypes.TextureFormatRGBA32Sint:
		return gputypes.TextureSampleTypeSint
	case gputypes.TextureFormatR32Float, gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA32Float:
		// filterable only with FeatureFloat32Filterable
		return gputypes.TextureSampleTypeUnfilterableFloat
	default:
		return gputypes.TextureSampleTypeFloat
	}
}

// IsFloat32 reports whether format stores 32-bit float channels.
func IsFloat32(format gputypes.TextureFormat) bool {
	switch format {
	case gputypes.TextureFormatR32Float, gputypes.TextureFormatRG32Float, gputypes.TextureFormatRGBA32Float:
		return true
	}
	return false
}

// Channels returns the number of color channels of format, or 0 for depth/stencil and unknown formats.
func Channels(format gputypes.TextureFormat) int {
	switch format {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm, gputypes.TextureFormatR8Uint,
		gputypes.TextureFormatR8Sint, gputypes.TextureFormatR16Uint, gputypes.TextureFormatR16Sint,
		gputypes.TextureFormatR16Float, gputypes.TextureFormatR32Uint, gputypes.TextureFormatR32Sint,
		gputypes.TextureFormatR32Float:
		return 1
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatRG8Snorm, gputypes.TextureFormatRG8Uint,
		gputypes.TextureFormatRG8Sint, gputypes.TextureFormatRG16Uint, gputypes.TextureFormatRG16Sint,
		gputypes.TextureFormatRG16Float, gputypes.TextureFormatRG32Uint, gputypes.TextureFormatRG32Sint,
		gputypes.TextureFormatRG32Float:
		return 2
	case gputypes.TextureFormatRG11B10Ufloat:
		return 3
	}
	if format.IsDepthStencil() || BytesPerPixel(format) == 0 {
		return 0
	}
	return 4
}
