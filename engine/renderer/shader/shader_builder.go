package shader

import "github.com/gogpu/gputypes"

// ShaderBuilderOption is a functional option for configuring a Shader.
type ShaderBuilderOption func(*shader)

// WithLanguage sets the shading language of the source. The default is WGSL.
func WithLanguage(l Language) ShaderBuilderOption {
	return func(s *shader) {
		s.language = l
	}
}

// WithEntryPoint sets the entry point name. The default is "main".
func WithEntryPoint(name string) ShaderBuilderOption {
	return func(s *shader) {
		s.entryPoint = name
	}
}

// WithWorkgroupSize sets the compute workgroup size.
func WithWorkgroupSize(size [3]uint32) ShaderBuilderOption {
	return func(s *shader) {
		s.workGroupSize = size
	}
}

// WithBindGroupLayouts sets the bind group layouts and the variable name of every binding, skipping reflection.
//
// Parameters:
//   - layouts: the layout descriptors keyed by group index
//   - varNames: the variable names keyed by group and binding index
//
// Returns:
//   - ShaderBuilderOption: a function that applies the layouts to a shader
func WithBindGroupLayouts(layouts map[int]gputypes.BindGroupLayoutDescriptor, varNames map[int]map[int]string) ShaderBuilderOption {
	return func(s *shader) {
		s.bindGroupLayoutDescriptors = layouts
		s.bindingVarNames = varNames
	}
}

// WithVertexLayouts sets the vertex buffer layouts in slot order.
func WithVertexLayouts(layouts []gputypes.VertexBufferLayout) ShaderBuilderOption {
	return func(s *shader) {
		s.vertexLayouts = layouts
	}
}
