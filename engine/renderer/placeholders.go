package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/texture_utils"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
)

type placeholderKey struct {
	dimension  gputypes.TextureViewDimension
	sampleType gputypes.TextureSampleType
}

// placeholders hands out 1x1 textures that stand in for textures still loading. Each matches the binding layout
// of the texture it replaces, so swapping the real texture in later only rebuilds the bind group.
type placeholders struct {
	mu       *sync.Mutex
	textures map[placeholderKey]resource.Texture
}

func newPlaceholders() *placeholders {
	return &placeholders{mu: &sync.Mutex{}, textures: map[placeholderKey]resource.Texture{}}
}

// placeholderFormat returns a format whose sample type is sampleType.
func placeholderFormat(sampleType gputypes.TextureSampleType) gputypes.TextureFormat {
	switch sampleType {
	case gputypes.TextureSampleTypeUnfilterableFloat:
		return gputypes.TextureFormatRGBA32Float
	case gputypes.TextureSampleTypeDepth:
		return gputypes.TextureFormatDepth32Float
	case gputypes.TextureSampleTypeSint:
		return gputypes.TextureFormatRGBA8Sint
	case gputypes.TextureSampleTypeUint:
		return gputypes.TextureFormatRGBA8Uint
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func placeholderDimension(d gputypes.TextureViewDimension) (resource.TextureDimension, uint32) {
	switch d {
	case gputypes.TextureViewDimension2DArray:
		return resource.Texture2DArray, 1
	case gputypes.TextureViewDimensionCube:
		return resource.TextureCube, 6
	case gputypes.TextureViewDimension3D:
		return resource.Texture3D, 1
	}
	return resource.Texture2D, 1
}

// get returns the placeholder for a binding layout.
func (p *placeholders) get(dimension gputypes.TextureViewDimension, sampleType gputypes.TextureSampleType) resource.Texture {
	k := placeholderKey{dimension: dimension, sampleType: sampleType}
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.textures[k]; ok {
		return t
	}

	format := placeholderFormat(sampleType)
	dim, layers := placeholderDimension(dimension)
	opts := []resource.TextureBuilderOption{
		resource.WithTextureLabel("placeholder/" + format.String()),
		resource.WithFormat(format),
		resource.WithDimension(dim, layers),
	}
	if sampleType == gputypes.TextureSampleTypeDepth {
		opts = append(opts, resource.WithRenderTarget())
	} else {
		opts = append(opts, resource.WithImage(common.TextureStagingData{
			Pixels: make([]byte, texture_utils.BytesPerPixel(format)*int(layers)),
			Width:  1,
			Height: 1,
			Format: format,
		}))
	}
	if sampleType == gputypes.TextureSampleTypeUnfilterableFloat || sampleType == gputypes.TextureSampleTypeSint ||
		sampleType == gputypes.TextureSampleTypeUint {
		opts = append(opts, resource.WithSampler(common.SamplerStagingData{
			MagFilter:    gputypes.FilterModeNearest,
			MinFilter:    gputypes.FilterModeNearest,
			MipmapFilter: gputypes.MipmapFilterModeNearest,
		}))
	}
	t := resource.NewTexture(opts...)
	p.textures[k] = t
	return t
}

// isPlaceholder reports whether t is one of the placeholders.
func (p *placeholders) isPlaceholder(t resource.Texture) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pt := range p.textures {
		if pt == t {
			return true
		}
	}
	return false
}

func (p *placeholders) dispose() {
	p.mu.Lock()
	textures := p.textures
	p.textures = map[placeholderKey]resource.Texture{}
	p.mu.Unlock()
	for _, t := range textures {
		t.Dispose()
	}
}
