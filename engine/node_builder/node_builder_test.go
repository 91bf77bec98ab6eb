package node_builder

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func litGraph(tint *node.UniformNode) Graph {
	return Graph{
		Label:    "lit",
		Vertex:   node.ModelViewProjection,
		Fragment: node.Mul(node.Color(1, 0.5, 0.25), tint),
	}
}

func compile(t *testing.T, g Graph, options ...NodeBuilderOption) *Program {
	t.Helper()
	prog, err := NewNodeBuilder(options...).Compile(context.Background(), g)
	require.NoError(t, err)
	return prog
}

func TestCompile_Deterministic(t *testing.T) {
	a := compile(t, litGraph(node.Uniform("tint", node.Vec3, [3]float32{1, 1, 1})))
	b := compile(t, litGraph(node.Uniform("tint", node.Vec3, [3]float32{1, 1, 1})))

	assert.Equal(t, a.Vertex.Source(), b.Vertex.Source())
	assert.Equal(t, a.Fragment.Source(), b.Fragment.Source())

	g := litGraph(node.Uniform("tint", node.Vec3, [3]float32{1, 1, 1}))
	nb := NewNodeBuilder()
	k1, err := nb.Key(g)
	require.NoError(t, err)
	k2, err := nb.Key(g)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := NewNodeBuilder(WithTarget(node.TargetGLSL)).Key(g)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestCompile_SharedExpressionIsComputedOnce(t *testing.T) {
	shared := node.Sin(node.Mul(node.Time, node.FloatConst(3)))
	g := Graph{
		Vertex:   node.ModelViewProjection,
		Fragment: node.Vector4(shared, shared, node.Abs(shared), node.FloatConst(1)),
	}
	prog := compile(t, g)
	src := prog.Fragment.Source()

	assert.Equal(t, 1, strings.Count(src, "let "), src)
	assert.Equal(t, 1, strings.Count(src, "sin("), src)
}

func TestCompile_ScopedTemporariesDoNotLeak(t *testing.T) {
	s := node.Sin(node.Mul(node.Time, node.FloatConst(2)))
	acc := node.Var(node.FloatConst(0), "acc")
	cond := node.If(node.GreaterThan(node.Time, node.FloatConst(1)), node.Assign(acc, node.Add(s, s)), nil)
	g := Graph{
		Vertex:   node.ModelViewProjection,
		Fragment: node.Block(node.Add(acc, s), cond),
	}
	prog := compile(t, g)
	src := prog.Fragment.Source()

	temps := regexp.MustCompile(`let (nodeMath\d+) = sin`).FindAllStringSubmatch(src, -1)
	require.Len(t, temps, 2, src)
	assert.NotEqual(t, temps[0][1], temps[1][1])

	closing := strings.Index(src, "\t}\n")
	require.Positive(t, closing)
	assert.Greater(t, strings.Index(src, "let "+temps[1][1]), closing, "second temporary is declared after the branch")
}

func TestCompile_OutputConversions(t *testing.T) {
	g := Graph{Vertex: node.PositionLocal, Fragment: node.UV}
	prog := compile(t, g)

	assert.Contains(t, prog.Vertex.Source(), "varyings.position = vec4<f32>(input.position, 1.0);")
	assert.Contains(t, prog.Fragment.Source(), "fragmentOutput.output = vec4<f32>(varyings.v_uv, 0.0, 1.0);")
	require.Len(t, prog.Varyings, 1)
	assert.Equal(t, "v_uv", prog.Varyings[0].Name)
	require.Len(t, prog.Attributes, 2)
	assert.Equal(t, "position", prog.Attributes[0].Name)
	assert.Equal(t, "uv", prog.Attributes[1].Name)
	assert.Equal(t, gputypes.VertexFormatFloat32x2, prog.Attributes[1].Format)
}

func TestCompile_TypeErrors(t *testing.T) {
	cases := map[string]node.Node{
		"dot of matrices":        node.Dot(node.ModelMatrix, node.ModelMatrix),
		"vector in a comparison": node.Select(node.LessThan(node.UV, node.FloatConst(0.5)), node.FloatConst(1), node.FloatConst(0)),
		"matrix as a color":      node.ModelMatrix,
		"too many components":    node.Vector4(node.UV, node.FloatConst(0), node.FloatConst(0), node.FloatConst(1)),
	}
	for name, frag := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewNodeBuilder().Compile(context.Background(), Graph{Vertex: node.ModelViewProjection, Fragment: frag})
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			var te *TypeError
			assert.ErrorAs(t, err, &te)
			assert.True(t, IsTerminal(err))
		})
	}
}

func TestCompile_StageError(t *testing.T) {
	g := Graph{
		Vertex:   node.Mul(node.ModelViewProjection, node.DFdx(node.FloatConst(1))),
		Fragment: node.Color(1, 1, 1),
	}
	_, err := NewNodeBuilder().Compile(context.Background(), g)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, node.StageVertex, se.Stage)
	assert.Equal(t, []node.Stage{node.StageFragment}, se.Allowed)
}

func TestCompile_SubgroupsNeedTheFeature(t *testing.T) {
	g := Graph{Vertex: node.ModelViewProjection, Fragment: node.SubgroupAdd(node.FloatConst(1))}

	_, err := NewNodeBuilder().Compile(context.Background(), g)
	var ue *UnsupportedFeatureError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, node.FeatureSubgroups.String(), ue.Feature)

	_, err = NewNodeBuilder(WithTarget(node.TargetGLSL), WithFeatures(node.Features(node.FeatureSubgroups))).
		Compile(context.Background(), g)
	require.ErrorAs(t, err, &ue)

	prog := compile(t, g, WithFeatures(node.Features(node.FeatureSubgroups)))
	assert.True(t, strings.HasPrefix(prog.Fragment.Source(), "enable subgroups;"))
	assert.True(t, prog.Features.Has(node.FeatureSubgroups))
}

func TestCompile_CycleThroughForward(t *testing.T) {
	f := node.Forward("feedback")
	f.Set(node.Add(f, node.FloatConst(1)))
	g := Graph{Vertex: node.ModelViewProjection, Fragment: f}

	_, err := NewNodeBuilder().Key(g)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ce.Path[0], ce.Path[len(ce.Path)-1])

	_, err = NewNodeBuilder().Compile(context.Background(), g)
	require.ErrorAs(t, err, &ce)
}

func TestCompile_MRTRoutesByName(t *testing.T) {
	g := Graph{
		Vertex: node.ModelViewProjection,
		Fragment: node.MRT(map[string]node.Node{
			"output":  node.Color(1, 0, 0),
			"normal":  node.NormalLocal,
			"ignored": node.FloatConst(1),
		}),
		Outputs: []string{"output", "normal", "extra"},
	}
	prog := compile(t, g)
	src := prog.Fragment.Source()

	assert.Equal(t, []string{"output", "normal", "extra"}, prog.Outputs)
	assert.Contains(t, src, "@location(0) output: vec4<f32>,")
	assert.Contains(t, src, "@location(2) extra: vec4<f32>,")
	assert.Contains(t, src, "fragmentOutput.normal = vec4<f32>(varyings.v_normal, 1.0);")
	assert.Contains(t, src, "fragmentOutput.extra = vec4<f32>(0.0);")
	assert.NotContains(t, src, "ignored")
}

func TestCompile_UniformAndTextureLayout(t *testing.T) {
	tint := node.Uniform("tint", node.Vec3, [3]float32{1, 1, 1})
	opacity := node.Uniform("opacity", node.Float, float32(1))
	dup := node.Uniform("tint", node.Float, float32(0))
	tex := node.Texture(resource.NewTexture())

	color := node.Mul(node.Swizzle(tex.Sample(node.UV), "rgb"), tint)
	g := Graph{
		Vertex:   node.ModelViewProjection,
		Fragment: node.Vector4(node.Swizzle(color, "x"), node.Swizzle(color, "y"), dup, opacity),
	}
	prog := compile(t, g)

	material := prog.UniformGroup(node.GroupMaterial)
	require.NotNil(t, material)
	require.Len(t, material.Members, 3)
	assert.Equal(t, "tint", material.Members[0].Name)
	assert.Equal(t, uint32(0), material.Members[0].Offset)
	assert.Equal(t, uint32(GroupMaterial), material.BindGroup)
	assert.Equal(t, gputypes.ShaderStageFragment, material.Visibility)

	names := []string{material.Members[1].Name, material.Members[2].Name}
	assert.ElementsMatch(t, []string{"tint_1", "opacity"}, names)

	require.Len(t, prog.Textures, 1)
	assert.Equal(t, uint32(1), prog.Textures[0].Binding)
	assert.Equal(t, uint32(2), prog.Textures[0].SamplerBinding)

	render := prog.UniformGroup(node.GroupRender)
	require.NotNil(t, render)
	assert.Equal(t, gputypes.ShaderStageVertex, render.Visibility)
	object := prog.UniformGroup(node.GroupObject)
	require.NotNil(t, object)

	layouts := prog.BindGroupLayouts()
	assert.Len(t, layouts, 3)
	assert.Len(t, layouts[GroupMaterial].Entries, 3)
	assert.Len(t, prog.Updaters, 3, "projection, view and model matrices refresh at runtime")

	assert.Equal(t, uint32(0), prog.Fragment.BindGroupLayoutDescriptor(GroupMaterial).Entries[0].Binding)
	binding, ok := prog.Fragment.BindGroupFromVarName(GroupMaterial, prog.Textures[0].Name)
	require.True(t, ok)
	assert.Equal(t, 1, binding)
}

func TestCompile_CompareSamplesLevelZeroOnly(t *testing.T) {
	shadow := node.Texture(resource.NewTexture(
		resource.WithFormat(gputypes.TextureFormatDepth32Float),
		resource.WithSampler(common.SamplerStagingData{Compare: gputypes.CompareFunctionLess}),
	))
	graph := func(level node.Node) Graph {
		lit := shadow.Sample(node.UV, node.WithCompare(node.FloatConst(0.5)), node.WithLevel(level))
		return Graph{Vertex: node.ModelViewProjection, Fragment: node.Vector4(lit, lit, lit, node.FloatConst(1))}
	}

	for name, level := range map[string]node.Node{
		"constant level": node.FloatConst(2),
		"runtime level":  node.Uniform("lod", node.Float, float32(0)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewNodeBuilder().Compile(context.Background(), graph(level))
			var te *TypeError
			require.ErrorAs(t, err, &te)
			assert.True(t, IsTerminal(err))
		})
	}

	prog := compile(t, graph(node.FloatConst(0)))
	assert.Contains(t, prog.Fragment.Source(), "textureSampleCompareLevel(")
}

func TestCompile_GLSL(t *testing.T) {
	prog := compile(t, litGraph(node.Uniform("tint", node.Vec3, [3]float32{1, 1, 1})), WithTarget(node.TargetGLSL))

	vs, fs := prog.Vertex.Source(), prog.Fragment.Source()
	assert.True(t, strings.HasPrefix(vs, "#version 300 es\n"), vs)
	assert.Contains(t, vs, "gl_Position = ")
	assert.Contains(t, vs, "layout(location = 0) in vec3 a_position;")
	assert.Contains(t, fs, "precision highp float;")
	assert.Contains(t, fs, "layout(location = 0) out vec4 fragColor_output;")
	assert.Contains(t, fs, "fragColor_output = vec4(")
	assert.NotContains(t, fs, "vec4<f32>")
}

func TestCompile_ComputeStorage(t *testing.T) {
	values := resource.NewStorageAttribute("values", 1, 128)
	buf := node.Storage(values, node.Float)
	elem := buf.Element(node.InvocationIndex)
	g := Graph{
		Label:   "double",
		Compute: node.Compute(node.Assign(elem, node.Mul(elem, node.FloatConst(2))), 128),
	}

	_, err := NewNodeBuilder().Compile(context.Background(), g)
	var ue *UnsupportedFeatureError
	require.ErrorAs(t, err, &ue)

	prog := compile(t, g, WithFeatures(node.Features(node.FeatureStorageBuffers)))
	require.True(t, prog.IsCompute())
	assert.Equal(t, [3]uint32{64, 1, 1}, prog.WorkgroupSize)
	require.Len(t, prog.Storage, 1)
	assert.Equal(t, "values", prog.Storage[0].Name)
	assert.Equal(t, gputypes.ShaderStageCompute, prog.Storage[0].Visibility)

	src := prog.Compute.Source()
	assert.Contains(t, src, "@compute @workgroup_size(64, 1, 1)")
	assert.Contains(t, src, "var<storage, read_write> values: array<f32>;")
	assert.Equal(t, [3]uint32{64, 1, 1}, prog.Compute.WorkgroupSize())
}

func TestCompile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNodeBuilder().Compile(ctx, litGraph(node.Uniform("tint", node.Vec3, [3]float32{1, 1, 1})))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsTerminal(err))
}
