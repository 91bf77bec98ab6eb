package shader

import (
	"github.com/gogpu/gputypes"
)

// ShaderType identifies the pipeline stage a shader is compiled for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	}
	return "compute"
}

// Visibility returns the bind group visibility flag of the stage.
func (t ShaderType) Visibility() gputypes.ShaderStages {
	switch t {
	case ShaderTypeVertex:
		return gputypes.ShaderStageVertex
	case ShaderTypeFragment:
		return gputypes.ShaderStageFragment
	}
	return gputypes.ShaderStageCompute
}

// Language is the shading language of a shader's source.
type Language int

const (
	LanguageWGSL Language = iota
	LanguageGLSL
)

func (l Language) String() string {
	if l == LanguageGLSL {
		return "glsl"
	}
	return "wgsl"
}

// shader is the implementation of the Shader interface.
// It holds the generated source of one stage and the layout metadata required for pipeline creation.
type shader struct {
	key                        string
	source                     string
	language                   Language
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]gputypes.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              []gputypes.VertexBufferLayout
	workGroupSize              [3]uint32
	entryPoint                 string
}

// Shader is one compiled stage of a program: its source text, entry point, and the bind group and vertex layouts
// a backend needs to create a pipeline from it.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the shader source code.
	//
	// Returns:
	//   - string: the WGSL or GLSL source
	Source() string

	// Language returns the shading language of Source.
	Language() Language

	// BindGroupLayoutDescriptor retrieves the bind group layout descriptor of a group.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - gputypes.BindGroupLayoutDescriptor: the descriptor, or an empty descriptor if the stage binds nothing there
	BindGroupLayoutDescriptor(group int) gputypes.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors retrieves all bind group layout descriptors keyed by group index.
	BindGroupLayoutDescriptors() map[int]gputypes.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName retrieves the binding index for a given group and variable name, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name within the group
	//
	// Returns:
	//   - int: the binding index, or -1 if not found
	//   - bool: true if the variable name was found, false otherwise
	BindGroupFromVarName(group int, varName string) (int, bool)

	// BindGroupVarNames retrieves all variable names keyed by group and binding index.
	BindGroupVarNames() map[int]map[int]string

	// VertexLayouts retrieves the vertex buffer layouts, one per attribute buffer, in slot order.
	VertexLayouts() []gputypes.VertexBufferLayout

	// EntryPoint returns the entry point name for this shader.
	EntryPoint() string

	// WorkgroupSize returns the workgroup size for compute shaders and [0, 0, 0] otherwise.
	WorkgroupSize() [3]uint32

	// Module returns the backend-neutral shader module descriptor of the source.
	Module() gputypes.ShaderModuleDescriptor

	// ShaderType returns the stage of the shader.
	ShaderType() ShaderType
}

var _ Shader = &shader{}

// NewShader creates a compiled stage. WGSL sources without explicit layouts are reflected: the entry point,
// workgroup size, bind group layouts and vertex layouts are parsed from the source.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage of the shader
//   - source: the generated source
//   - options: variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: the compiled stage
func NewShader(key string, shaderType ShaderType, source string, options ...ShaderBuilderOption) Shader {
	s := &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
		entryPoint: "main",
	}
	for _, opt := range options {
		opt(s)
	}

	if s.language == LanguageWGSL && s.bindGroupLayoutDescriptors == nil {
		r := Reflect(source, shaderType)
		if r.EntryPoint != "" {
			s.entryPoint = r.EntryPoint
		}
		s.bindGroupLayoutDescriptors = r.BindGroupLayouts
		s.bindingVarNames = r.VarNames
		if s.vertexLayouts == nil {
			s.vertexLayouts = r.VertexLayouts
		}
		if shaderType == ShaderTypeCompute && s.workGroupSize == [3]uint32{} {
			s.workGroupSize = r.WorkgroupSize
		}
	}
	if s.bindGroupLayoutDescriptors == nil {
		s.bindGroupLayoutDescriptors = make(map[int]gputypes.BindGroupLayoutDescriptor)
	}
	if s.bindingVarNames == nil {
		s.bindingVarNames = make(map[int]map[int]string)
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Language() Language {
	return s.language
}

func (s *shader) VertexLayouts() []gputypes.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptor(group int) gputypes.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]gputypes.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	if s.bindingVarNames[group] == nil {
		return -1, false
	}
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) BindGroupVarNames() map[int]map[int]string {
	return s.bindingVarNames
}

func (s *shader) Module() gputypes.ShaderModuleDescriptor {
	if s.language == LanguageGLSL {
		return gputypes.ShaderModuleDescriptor{
			Label:  s.key,
			Source: gputypes.ShaderSourceGLSL{Code: s.source, Stage: s.shaderType.Visibility()},
		}
	}
	return gputypes.ShaderModuleDescriptor{
		Label:  s.key,
		Source: gputypes.ShaderSourceWGSL{Code: s.source},
	}
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}
