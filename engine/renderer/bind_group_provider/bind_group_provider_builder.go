package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
)

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithUniformBuffer adds a uniform buffer entry.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the CPU copy of the buffer
//   - visibility: the stages reading the buffer
//
// Returns:
//   - BindGroupProviderOption: a function that adds the entry
func WithUniformBuffer(binding uint32, buf *UniformBuffer, visibility gputypes.ShaderStages) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries = append(p.entries, Entry{Binding: binding, Kind: EntryUniformBuffer, Visibility: visibility, Buffer: buf})
	}
}

// WithStorage adds a storage buffer entry.
//
// Parameters:
//   - binding: the binding index
//   - a: the attribute backing the buffer
//   - readOnly: true for read-only storage
//   - visibility: the stages reading the buffer
//
// Returns:
//   - BindGroupProviderOption: a function that adds the entry
func WithStorage(binding uint32, a *resource.Attribute, readOnly bool, visibility gputypes.ShaderStages) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries = append(p.entries, Entry{
			Binding:    binding,
			Kind:       EntryStorageBuffer,
			Visibility: visibility,
			Storage:    a,
			ReadOnly:   readOnly,
		})
	}
}

// WithTexture adds a texture entry and its sampler entry.
//
// Parameters:
//   - binding: the texture binding
//   - samplerBinding: the sampler binding
//   - t: the texture
//   - layout: the texture layout, SampleType and ViewDimension are used
//   - samplerType: the sampler binding type
//   - visibility: the stages sampling the texture
//
// Returns:
//   - BindGroupProviderOption: a function that adds both entries
func WithTexture(binding, samplerBinding uint32, t resource.Texture, layout gputypes.TextureBindingLayout, samplerType gputypes.SamplerBindingType, visibility gputypes.ShaderStages) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.entries = append(p.entries,
			Entry{
				Binding:       binding,
				Kind:          EntryTexture,
				Visibility:    visibility,
				Texture:       t,
				ViewDimension: layout.ViewDimension,
				SampleType:    layout.SampleType,
			},
			Entry{
				Binding:     samplerBinding,
				Kind:        EntrySampler,
				Visibility:  visibility,
				Texture:     t,
				SamplerType: samplerType,
			},
		)
	}
}
