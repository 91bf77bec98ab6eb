package node

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_StructurallyEqualGraphsShareKeys(t *testing.T) {
	a := Add(Mul(UV, Vec2Const(2, 2)), FloatConst(0.5))
	b := Add(Mul(UV, Vec2Const(2, 2)), FloatConst(0.5))
	c := Add(Mul(UV, Vec2Const(2, 3)), FloatConst(0.5))

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, GraphKey(a, nil), GraphKey(b, nil))
	assert.NotEqual(t, GraphKey(a, nil), GraphKey(nil, a))
}

func TestKey_BindingsAreIdentityKeyed(t *testing.T) {
	u1 := Uniform("tint", Vec3, [3]float32{1, 1, 1})
	u2 := Uniform("tint", Vec3, [3]float32{1, 1, 1})
	assert.NotEqual(t, u1.Key(), u2.Key())

	v1, v2 := Var(FloatConst(0), "acc"), Var(FloatConst(0), "acc")
	assert.NotEqual(t, v1.Key(), v2.Key())
}

func TestKey_UniformValueDoesNotChangeKey(t *testing.T) {
	u := Uniform("opacity", Float, float32(1))
	before := u.Key()
	u.SetValue(float32(0.25))
	assert.Equal(t, before, u.Key())
	assert.Equal(t, uint64(2), u.Version())
}

func TestKey_SwizzleLettersNormalize(t *testing.T) {
	assert.Equal(t, Swizzle(VertexColor, "rgb").Key(), Swizzle(VertexColor, "xyz").Key())
}

func TestKey_TextureShapeChangesKey(t *testing.T) {
	color := resource.NewTexture()
	depth := resource.NewTexture(resource.WithFormat(gputypes.TextureFormatDepth24Plus))
	n := Texture(color)
	before := n.Key()

	n.SetValue(resource.NewTexture())
	assert.Equal(t, before, n.Key(), "same shape keeps the program")

	n.SetValue(depth)
	assert.NotEqual(t, before, n.Key())
}

func TestWalk_ChildrenFirstOnce(t *testing.T) {
	shared := Mul(UV, FloatConst(2))
	root := Add(Swizzle(shared, "x"), Swizzle(shared, "y"))

	var order []uint64
	require.NoError(t, Walk(root, func(n Node) error {
		order = append(order, n.ID())
		return nil
	}))

	count := 0
	for _, id := range order {
		if id == shared.ID() {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, root.ID(), order[len(order)-1])
}

func TestUniform_PackStd140(t *testing.T) {
	buf := make([]byte, 64)
	m := common.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9}
	require.NoError(t, Uniform("m", Mat3, m).Pack(buf, 0))

	read := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	assert.Equal(t, float32(1), read(0))
	assert.Equal(t, float32(4), read(16))
	assert.Equal(t, float32(9), read(40))

	err := Uniform("bad", Float, "text").Pack(buf, 0)
	assert.Error(t, err)
}

func TestUniform_UpdateKeepsValueWhenSourceMissing(t *testing.T) {
	f := NewFrame()
	f.BeginFrame()
	f.BeginRender(nil, nil, nil)
	require.NoError(t, f.UpdateNode(ModelMatrix))
	assert.Equal(t, common.Identity4(), ModelMatrix.Value())
}

type countingNode struct {
	*UniformNode
	updates int
}

func (c *countingNode) Update(*Frame) error {
	c.updates++
	return nil
}

func TestFrame_UpdateDispatchByType(t *testing.T) {
	now := time.Unix(100, 0)
	f := NewFrame(WithClock(func() time.Time { return now }))

	perFrame := &countingNode{UniformNode: Uniform("a", Float, float32(0), WithUpdate(UpdateFrame, nil))}
	perRender := &countingNode{UniformNode: Uniform("b", Float, float32(0), WithUpdate(UpdateRender, nil))}
	perObject := &countingNode{UniformNode: Uniform("c", Float, float32(0), WithUpdate(UpdateObject, nil))}
	static := &countingNode{UniformNode: Uniform("d", Float, float32(0))}

	f.BeginFrame()
	for range 2 {
		f.BeginRender(nil, nil, nil)
		for range 3 {
			for _, n := range []*countingNode{perFrame, perRender, perObject, static} {
				require.NoError(t, f.UpdateNode(n))
			}
		}
	}

	assert.Equal(t, 1, perFrame.updates)
	assert.Equal(t, 2, perRender.updates)
	assert.Equal(t, 6, perObject.updates)
	assert.Equal(t, 0, static.updates)

	now = now.Add(16 * time.Millisecond)
	f.BeginFrame()
	require.NoError(t, f.UpdateNode(perFrame))
	assert.Equal(t, 2, perFrame.updates)
	assert.InDelta(t, 0.016, f.DeltaTime, 1e-9)
	assert.InDelta(t, 0.016, f.Time, 1e-9)
}

func TestFrame_TimeUniform(t *testing.T) {
	now := time.Unix(0, 0)
	f := NewFrame(WithClock(func() time.Time { return now }))
	f.BeginFrame()
	now = now.Add(time.Second)
	f.BeginFrame()
	require.NoError(t, f.UpdateNode(Time))
	assert.Equal(t, float32(1), Time.Value())
}

func TestFrame_EndFrameHooksRunOnce(t *testing.T) {
	f := NewFrame()
	var calls []int
	f.OnEndFrame(func() { calls = append(calls, 1) })
	f.OnEndFrame(func() { calls = append(calls, 2) })
	f.EndFrame()
	f.EndFrame()
	assert.Equal(t, []int{1, 2}, calls)
}

func TestMRT_NamesSortedAndMerge(t *testing.T) {
	m := MRT(map[string]Node{"output": VertexColor, "normal": NormalLocal})
	assert.Equal(t, []string{"normal", "output"}, m.Names())

	merged := m.Merge(MRT(map[string]Node{"emissive": Color(1, 0, 0)}))
	assert.Equal(t, []string{"emissive", "normal", "output"}, merged.Names())
	assert.Len(t, m.Names(), 2)
}

func TestCompute_DispatchSize(t *testing.T) {
	c := Compute(Block(nil), 1000, WithWorkgroupSize(64, 1, 1))
	assert.Equal(t, [3]uint32{16, 1, 1}, c.DispatchSize())

	c = Compute(Block(nil), 64)
	assert.Equal(t, [3]uint32{1, 1, 1}, c.DispatchSize())
}

func TestForward_ChildrenFollowTarget(t *testing.T) {
	f := Forward("late")
	assert.Empty(t, f.Children())
	f.Set(UV)
	assert.Equal(t, []Node{UV}, f.Children())
}

func TestDataType_Helpers(t *testing.T) {
	assert.Equal(t, Vec3, VectorOf(Float, 3))
	assert.Equal(t, Void, VectorOf(Bool, 2))
	assert.Equal(t, uint32(16), Vec3.Align())
	assert.Equal(t, uint32(8), Vec2.Align())
	assert.Equal(t, uint32(48), Mat3.ByteSize())

	parsed, err := ParseDataType("uvec4")
	require.NoError(t, err)
	assert.Equal(t, UVec4, parsed)
	_, err = ParseDataType("vec5")
	assert.Error(t, err)
}

func TestParseTargetAndFeature(t *testing.T) {
	target, err := ParseTarget("glsl")
	require.NoError(t, err)
	assert.Equal(t, TargetGLSL, target)
	_, err = ParseTarget("hlsl")
	assert.Error(t, err)

	f, err := ParseFeature("shader-f16")
	require.NoError(t, err)
	assert.Equal(t, FeatureShaderF16, f)
	_, err = ParseFeature("raytracing")
	assert.Error(t, err)

	n, ok := MathArity("smoothstep")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = MathArity("frobnicate")
	assert.False(t, ok)
}
