// package common contains plain data types and helpers shared across the engine. They are not interface-wrapped
// structs, just plain structs that express commonly used data.
package common

import (
	"github.com/gogpu/gputypes"
)

// TextureStagingData holds pixel data for a texture pending GPU upload. Pixels are tightly packed rows in Format.
type TextureStagingData struct {
	// Pixels is the packed pixel data of mip level 0, or nil for render targets and storage textures.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// Format is the texel format of Pixels.
	Format gputypes.TextureFormat
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation. Zero fields take the
// backend defaults (repeat addressing, linear filtering, anisotropy 1).
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify addressing outside [0, 1] per axis.
	AddressModeU, AddressModeV, AddressModeW gputypes.AddressMode
	// MagFilter and MinFilter specify magnification and minification filtering.
	MagFilter, MinFilter gputypes.FilterMode
	// MipmapFilter specifies filtering between mip levels.
	MipmapFilter gputypes.MipmapFilterMode
	// LodMinClamp and LodMaxClamp bound the sampled level of detail.
	LodMinClamp, LodMaxClamp float32
	// Compare makes this a comparison sampler when set, used for depth compare sampling.
	Compare gputypes.CompareFunction
	// MaxAnisotropy is the requested anisotropy, clamped by the backend to its maximum.
	MaxAnisotropy uint16
}

// Descriptor expands the staging data into a full sampler descriptor with defaults applied.
//
// Parameters:
//   - label: the debug label
//   - maxAnisotropy: the device maximum, requested values above it are clamped
//
// Returns:
//   - gputypes.SamplerDescriptor: the descriptor
func (s SamplerStagingData) Descriptor(label string, maxAnisotropy uint16) gputypes.SamplerDescriptor {
	anisotropy := Coalesce(s.MaxAnisotropy, 1)
	if maxAnisotropy > 0 && anisotropy > maxAnisotropy {
		anisotropy = maxAnisotropy
	}
	return gputypes.SamplerDescriptor{
		Label:         label,
		AddressModeU:  Coalesce(s.AddressModeU, gputypes.AddressModeRepeat),
		AddressModeV:  Coalesce(s.AddressModeV, gputypes.AddressModeRepeat),
		AddressModeW:  Coalesce(s.AddressModeW, gputypes.AddressModeRepeat),
		MagFilter:     Coalesce(s.MagFilter, gputypes.FilterModeLinear),
		MinFilter:     Coalesce(s.MinFilter, gputypes.FilterModeLinear),
		MipmapFilter:  Coalesce(s.MipmapFilter, gputypes.MipmapFilterModeLinear),
		LodMinClamp:   s.LodMinClamp,
		LodMaxClamp:   Coalesce(s.LodMaxClamp, 32.0),
		Compare:       s.Compare,
		MaxAnisotropy: anisotropy,
	}
}
