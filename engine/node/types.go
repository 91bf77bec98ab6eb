package node

import (
	"fmt"
	"strings"
)

// DataType is the semantic type of a node's value. Concrete types are resolved lazily from a node's inputs
// during the setup pass of a build.
type DataType int

const (
	Void DataType = iota
	Bool
	Int
	Uint
	Float
	Half
	Vec2
	Vec3
	Vec4
	IVec2
	IVec3
	IVec4
	UVec2
	UVec3
	UVec4
	HVec2
	HVec3
	HVec4
	Mat2
	Mat3
	Mat4
	Texture2D
	Texture2DArray
	TextureCube
	Texture3D
	DepthTexture
	Sampler
	ComparisonSampler
)

var typeNames = map[DataType]string{
	Void: "void", Bool: "bool", Int: "int", Uint: "uint", Float: "float", Half: "half",
	Vec2: "vec2", Vec3: "vec3", Vec4: "vec4",
	IVec2: "ivec2", IVec3: "ivec3", IVec4: "ivec4",
	UVec2: "uvec2", UVec3: "uvec3", UVec4: "uvec4",
	HVec2: "hvec2", HVec3: "hvec3", HVec4: "hvec4",
	Mat2: "mat2", Mat3: "mat3", Mat4: "mat4",
	Texture2D: "texture2d", Texture2DArray: "texture2darray", TextureCube: "texturecube",
	Texture3D: "texture3d", DepthTexture: "depthtexture",
	Sampler: "sampler", ComparisonSampler: "comparisonsampler",
}

func (t DataType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType resolves a type name as printed by String.
//
// Parameters:
//   - s: the type name
//
// Returns:
//   - DataType: the type
//   - error: an error if the name is unknown
func ParseDataType(s string) (DataType, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return Void, fmt.Errorf("unknown data type %q", s)
}

// Base returns the scalar type of a scalar, vector or matrix type. Matrices are float based.
func (t DataType) Base() DataType {
	switch t {
	case Bool, Int, Uint, Float, Half:
		return t
	case Vec2, Vec3, Vec4, Mat2, Mat3, Mat4:
		return Float
	case IVec2, IVec3, IVec4:
		return Int
	case UVec2, UVec3, UVec4:
		return Uint
	case HVec2, HVec3, HVec4:
		return Half
	}
	return Void
}

// Components returns the number of scalar components of a scalar or vector type, the column count of a matrix,
// and 0 for everything else.
func (t DataType) Components() int {
	switch t {
	case Bool, Int, Uint, Float, Half:
		return 1
	case Vec2, IVec2, UVec2, HVec2, Mat2:
		return 2
	case Vec3, IVec3, UVec3, HVec3, Mat3:
		return 3
	case Vec4, IVec4, UVec4, HVec4, Mat4:
		return 4
	}
	return 0
}

// IsScalar reports whether t is a scalar type.
func (t DataType) IsScalar() bool {
	return t.Components() == 1 && !t.IsMatrix()
}

// IsVector reports whether t is a vector type.
func (t DataType) IsVector() bool {
	return t.Components() > 1 && !t.IsMatrix()
}

// IsMatrix reports whether t is a square float matrix.
func (t DataType) IsMatrix() bool {
	return t == Mat2 || t == Mat3 || t == Mat4
}

// IsNumeric reports whether t is an int, uint or float scalar or vector.
func (t DataType) IsNumeric() bool {
	b := t.Base()
	return (t.IsScalar() || t.IsVector()) && (b == Int || b == Uint || b == Float || b == Half)
}

// IsFloat reports whether t is a float or half scalar or vector.
func (t DataType) IsFloat() bool {
	b := t.Base()
	return !t.IsMatrix() && (b == Float || b == Half)
}

// IsTexture reports whether t is a texture binding type.
func (t DataType) IsTexture() bool {
	return t >= Texture2D && t <= DepthTexture
}

// VectorOf returns the scalar or vector type with base b and n components.
//
// Parameters:
//   - b: the scalar base type
//   - n: the component count 1..4
//
// Returns:
//   - DataType: the type, or Void if no such type exists
func VectorOf(b DataType, n int) DataType {
	if n == 1 {
		return b
	}
	if n < 2 || n > 4 {
		return Void
	}
	switch b {
	case Float:
		return []DataType{Vec2, Vec3, Vec4}[n-2]
	case Int:
		return []DataType{IVec2, IVec3, IVec4}[n-2]
	case Uint:
		return []DataType{UVec2, UVec3, UVec4}[n-2]
	case Half:
		return []DataType{HVec2, HVec3, HVec4}[n-2]
	}
	return Void
}

// MatrixOf returns the square float matrix with n columns.
func MatrixOf(n int) DataType {
	switch n {
	case 2:
		return Mat2
	case 3:
		return Mat3
	case 4:
		return Mat4
	}
	return Void
}

// ByteSize returns the std140 size of a scalar, vector or matrix type. Matrix columns are padded to 16 bytes.
func (t DataType) ByteSize() uint32 {
	if t.IsMatrix() {
		return uint32(t.Components()) * 16
	}
	if t.Base() == Half {
		return uint32(t.Components()) * 2
	}
	return uint32(t.Components()) * 4
}

// Align returns the std140 alignment of a scalar, vector or matrix type.
func (t DataType) Align() uint32 {
	switch {
	case t.IsMatrix():
		return 16
	case t.Components() == 1:
		return t.ByteSize()
	case t.Components() == 2:
		return t.ByteSize()
	default:
		return 4 * t.ByteSize() / uint32(t.Components())
	}
}

// Stage is a shader pipeline stage.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// UpdateType classifies how often a node's runtime value must be refreshed.
type UpdateType int

const (
	// UpdateNone nodes only change when application code sets them.
	UpdateNone UpdateType = iota

	// UpdateFrame nodes refresh once per frame.
	UpdateFrame

	// UpdateRender nodes refresh once per Render call.
	UpdateRender

	// UpdateObject nodes refresh once per drawn object.
	UpdateObject
)

func (u UpdateType) String() string {
	return [...]string{"none", "frame", "render", "object"}[u]
}

// Target identifies the shading language a build emits.
type Target int

const (
	TargetWGSL Target = iota
	TargetGLSL
)

func (t Target) String() string {
	if t == TargetGLSL {
		return "glsl"
	}
	return "wgsl"
}

// ParseTarget resolves a target by the name String prints.
func ParseTarget(s string) (Target, error) {
	switch s {
	case "wgsl":
		return TargetWGSL, nil
	case "glsl":
		return TargetGLSL, nil
	}
	return TargetWGSL, fmt.Errorf("unknown target %q", s)
}

// Feature is an optional shader capability reported by a backend.
type Feature uint32

const (
	FeatureSubgroups Feature = 1 << iota
	FeatureShaderF16
	FeatureClipDistances
	FeatureMultiview
	FeatureComputeShaders
	FeatureFloat32Filterable
	FeatureStorageBuffers
)

var featureNames = map[Feature]string{
	FeatureSubgroups:         "subgroups",
	FeatureShaderF16:         "shader-f16",
	FeatureClipDistances:     "clip-distances",
	FeatureMultiview:         "multiview",
	FeatureComputeShaders:    "compute-shaders",
	FeatureFloat32Filterable: "float32-filterable",
	FeatureStorageBuffers:    "storage-buffers",
}

func (f Feature) String() string {
	if s, ok := featureNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Feature(%d)", uint32(f))
}

// ParseFeature resolves a feature by the name String prints.
//
// Parameters:
//   - s: the feature name, for example "subgroups"
//
// Returns:
//   - Feature: the feature
//   - error: an error if the name is unknown
func ParseFeature(s string) (Feature, error) {
	for f, name := range featureNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown feature %q", s)
}

// Features is a set of Feature flags.
type Features uint32

// Has reports whether every flag in f is present.
func (fs Features) Has(f Feature) bool {
	return Feature(fs)&f == f
}

// String lists the flags by name in bit order, "none" for the empty set.
func (fs Features) String() string {
	var names []string
	for f := Feature(1); f != 0 && Feature(fs) >= f; f <<= 1 {
		if fs.Has(f) {
			names = append(names, f.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// With returns the set with f added.
func (fs Features) With(f Feature) Features {
	return fs | Features(f)
}
