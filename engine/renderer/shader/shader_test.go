package shader

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reflectVertexSource = `
struct RenderUniforms {
	viewMatrix: mat4x4<f32>,
	cameraPosition: vec3<f32>,
	time: f32,
};

struct VertexInput {
	@location(0) position: vec3<f32>,
	@location(1) uv: vec2<f32>,
};

struct Varyings {
	@builtin(position) position: vec4<f32>,
	@location(0) v0: vec2<f32>,
};

@group(0) @binding(0) var<uniform> render: RenderUniforms;

@vertex
fn main(input: VertexInput) -> Varyings {
	var out: Varyings;
	out.position = render.viewMatrix * vec4<f32>(input.position, 1.0);
	out.v0 = input.uv;
	return out;
}
`

const reflectFragmentSource = `
@group(2) @binding(1) var diffuse: texture_2d<f32>;
@group(2) @binding(2) var diffuseSampler: sampler;
@group(2) @binding(3) var shadowMap: texture_depth_2d;
@group(2) @binding(4) var shadowSampler: sampler_comparison;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
	return textureSample(diffuse, diffuseSampler, uv);
}
`

const reflectComputeSource = `
@group(0) @binding(0) var<storage, read> src: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read_write> dst: array<vec4<f32>>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	dst[id.x] = src[id.x];
}
`

func TestReflect_Vertex(t *testing.T) {
	r := Reflect(reflectVertexSource, ShaderTypeVertex)
	assert.Equal(t, "main", r.EntryPoint)

	require.Contains(t, r.BindGroupLayouts, 0)
	entries := r.BindGroupLayouts[0].Entries
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Buffer)
	assert.Equal(t, gputypes.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(80), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, gputypes.ShaderStageVertex, entries[0].Visibility)
	assert.Equal(t, "render", r.VarNames[0][0])

	require.Len(t, r.VertexLayouts, 1, "the varyings struct carries a builtin and is not an input")
	layout := r.VertexLayouts[0]
	assert.Equal(t, uint64(20), layout.ArrayStride)
	require.Len(t, layout.Attributes, 2)
	assert.Equal(t, gputypes.VertexFormatFloat32x3, layout.Attributes[0].Format)
	assert.Equal(t, uint64(12), layout.Attributes[1].Offset)
	assert.Equal(t, uint32(1), layout.Attributes[1].ShaderLocation)
}

func TestReflect_FragmentTexturesAndSamplers(t *testing.T) {
	r := Reflect(reflectFragmentSource, ShaderTypeFragment)
	assert.Equal(t, "fs_main", r.EntryPoint)

	entries := r.BindGroupLayouts[2].Entries
	require.Len(t, entries, 4)

	require.NotNil(t, entries[0].Texture)
	assert.Equal(t, gputypes.TextureSampleTypeFloat, entries[0].Texture.SampleType)
	assert.Equal(t, gputypes.TextureViewDimension2D, entries[0].Texture.ViewDimension)

	require.NotNil(t, entries[1].Sampler)
	assert.Equal(t, gputypes.SamplerBindingTypeFiltering, entries[1].Sampler.Type)

	require.NotNil(t, entries[2].Texture)
	assert.Equal(t, gputypes.TextureSampleTypeDepth, entries[2].Texture.SampleType)

	require.NotNil(t, entries[3].Sampler)
	assert.Equal(t, gputypes.SamplerBindingTypeComparison, entries[3].Sampler.Type)
	assert.Equal(t, gputypes.ShaderStageFragment, entries[3].Visibility)
}

func TestReflect_ComputeStorage(t *testing.T) {
	r := Reflect(reflectComputeSource, ShaderTypeCompute)
	assert.Equal(t, [3]uint32{64, 1, 1}, r.WorkgroupSize)

	entries := r.BindGroupLayouts[0].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, gputypes.BufferBindingTypeReadOnlyStorage, entries[0].Buffer.Type)
	assert.Equal(t, gputypes.BufferBindingTypeStorage, entries[1].Buffer.Type)
	assert.Equal(t, uint64(16), entries[1].Buffer.MinBindingSize)
	assert.Equal(t, "dst", r.VarNames[0][1])
}

func TestNewShader_ExplicitLayoutsSkipReflection(t *testing.T) {
	layouts := map[int]gputypes.BindGroupLayoutDescriptor{
		1: {Entries: []gputypes.BindGroupLayoutEntry{{Binding: 0, Visibility: gputypes.ShaderStageVertex}}},
	}
	s := NewShader("k", ShaderTypeVertex, reflectVertexSource,
		WithBindGroupLayouts(layouts, map[int]map[int]string{1: {0: "object"}}))

	assert.Empty(t, s.BindGroupLayoutDescriptor(0).Entries)
	assert.Len(t, s.BindGroupLayoutDescriptor(1).Entries, 1)
	binding, ok := s.BindGroupFromVarName(1, "object")
	assert.True(t, ok)
	assert.Equal(t, 0, binding)
	assert.Equal(t, "main", s.EntryPoint())
}

func TestNewShader_GLSLModule(t *testing.T) {
	s := NewShader("frag", ShaderTypeFragment, "#version 300 es\nvoid main() {}\n", WithLanguage(LanguageGLSL))
	assert.Equal(t, LanguageGLSL, s.Language())
	assert.Empty(t, s.BindGroupLayoutDescriptors())

	m := s.Module()
	src, ok := m.Source.(gputypes.ShaderSourceGLSL)
	require.True(t, ok)
	assert.Equal(t, gputypes.ShaderStageFragment, src.Stage)
	assert.Equal(t, "frag", m.Label)
}
