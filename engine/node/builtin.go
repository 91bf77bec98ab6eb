package node

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// BuiltinKind identifies a stage input provided by the pipeline.
type BuiltinKind int

const (
	BuiltinVertexIndex BuiltinKind = iota
	BuiltinInstanceIndex
	BuiltinFragCoord
	BuiltinFrontFacing
	BuiltinGlobalInvocationID
	BuiltinLocalInvocationID
	BuiltinLocalInvocationIndex
	BuiltinWorkgroupID
	BuiltinNumWorkgroups
	BuiltinSubgroupSize
	BuiltinSubgroupInvocationID
	BuiltinViewIndex
)

var builtinInfo = map[BuiltinKind]struct {
	name   string
	typ    DataType
	stages []Stage
}{
	BuiltinVertexIndex:          {"vertexIndex", Uint, []Stage{StageVertex}},
	BuiltinInstanceIndex:        {"instanceIndex", Uint, []Stage{StageVertex}},
	BuiltinFragCoord:            {"fragCoord", Vec4, []Stage{StageFragment}},
	BuiltinFrontFacing:          {"frontFacing", Bool, []Stage{StageFragment}},
	BuiltinGlobalInvocationID:   {"globalInvocationId", UVec3, []Stage{StageCompute}},
	BuiltinLocalInvocationID:    {"localInvocationId", UVec3, []Stage{StageCompute}},
	BuiltinLocalInvocationIndex: {"localInvocationIndex", Uint, []Stage{StageCompute}},
	BuiltinWorkgroupID:          {"workgroupId", UVec3, []Stage{StageCompute}},
	BuiltinNumWorkgroups:        {"numWorkgroups", UVec3, []Stage{StageCompute}},
	BuiltinSubgroupSize:         {"subgroupSize", Uint, []Stage{StageCompute, StageFragment}},
	BuiltinSubgroupInvocationID: {"subgroupInvocationId", Uint, []Stage{StageCompute, StageFragment}},
	BuiltinViewIndex:            {"viewIndex", Uint, []Stage{StageVertex, StageFragment}},
}

func (k BuiltinKind) String() string {
	return builtinInfo[k].name
}

// Type returns the builtin's data type.
func (k BuiltinKind) Type() DataType {
	return builtinInfo[k].typ
}

// BuiltinNode reads a pipeline-provided stage input.
type BuiltinNode struct {
	base
	builtin BuiltinKind
}

// Builtin creates a reader of a stage input. Stage restrictions are checked at build time.
func Builtin(kind BuiltinKind) *BuiltinNode {
	return &BuiltinNode{base: newBase("builtin"), builtin: kind}
}

// Builtin stage inputs.
var (
	VertexIndex        = Builtin(BuiltinVertexIndex)
	InstanceIndex      = Builtin(BuiltinInstanceIndex)
	FragCoord          = Builtin(BuiltinFragCoord)
	FrontFacing        = Builtin(BuiltinFrontFacing)
	GlobalInvocationID = Builtin(BuiltinGlobalInvocationID)
	LocalInvocationID  = Builtin(BuiltinLocalInvocationID)
	WorkgroupID        = Builtin(BuiltinWorkgroupID)
	ViewIndex          = Builtin(BuiltinViewIndex)
)

func (n *BuiltinNode) BuiltinKind() BuiltinKind {
	return n.builtin
}

func (n *BuiltinNode) Key() uint64 {
	return n.cachedKey(func() uint64 {
		return newKeyer(n.kind).u64(uint64(n.builtin)).sum()
	})
}

func (n *BuiltinNode) Type(Builder) (DataType, error) {
	return n.builtin.Type(), nil
}

func (n *BuiltinNode) Setup(b Builder) error {
	info, ok := builtinInfo[n.builtin]
	if !ok {
		return b.TypeError(n, "unknown builtin %d", int(n.builtin))
	}
	if !slices.Contains(info.stages, b.Stage()) {
		return b.StageError(n, info.stages...)
	}
	if n.builtin == BuiltinSubgroupSize || n.builtin == BuiltinSubgroupInvocationID {
		if b.Target() != TargetWGSL || !b.HasFeature(FeatureSubgroups) {
			return b.Unsupported(n, FeatureSubgroups.String())
		}
	}
	if n.builtin == BuiltinViewIndex && (b.Target() != TargetGLSL || !b.HasFeature(FeatureMultiview)) {
		return b.Unsupported(n, FeatureMultiview.String())
	}
	_, err := b.Builtin(n.builtin)
	return err
}

func (n *BuiltinNode) Generate(b Builder) (string, error) {
	return b.Builtin(n.builtin)
}

// The views of renderables and cameras the built-in uniforms read.
type (
	modelMatrixSource interface {
		ModelMatrix() common.Mat4
	}
	viewMatrixSource interface {
		ViewMatrix() common.Mat4
	}
	projectionMatrixSource interface {
		ProjectionMatrix() common.Mat4
	}
	positionSource interface {
		Position() [3]float32
	}
)

// Built-in uniforms fed from the frame's current object and camera.
var (
	// ModelMatrix is the object's local-to-world transform.
	ModelMatrix = Uniform("modelMatrix", Mat4, common.Identity4(), WithUpdate(UpdateObject, func(f *Frame) (any, bool) {
		if s, ok := f.Object.(modelMatrixSource); ok {
			return s.ModelMatrix(), true
		}
		return nil, false
	}))

	// NormalMatrix is the inverse transpose of the model matrix's upper 3x3.
	NormalMatrix = Uniform("normalMatrix", Mat3, common.Identity4().NormalMatrix(), WithUpdate(UpdateObject, func(f *Frame) (any, bool) {
		if s, ok := f.Object.(modelMatrixSource); ok {
			return s.ModelMatrix().NormalMatrix(), true
		}
		return nil, false
	}))

	// ViewMatrix is the camera's world-to-view transform.
	ViewMatrix = Uniform("viewMatrix", Mat4, common.Identity4(), WithUpdate(UpdateRender, func(f *Frame) (any, bool) {
		if s, ok := f.Camera.(viewMatrixSource); ok {
			return s.ViewMatrix(), true
		}
		return nil, false
	}))

	// ProjectionMatrix is the camera's view-to-clip transform for the active backend's depth range.
	ProjectionMatrix = Uniform("projectionMatrix", Mat4, common.Identity4(), WithUpdate(UpdateRender, func(f *Frame) (any, bool) {
		if s, ok := f.Camera.(projectionMatrixSource); ok {
			return s.ProjectionMatrix(), true
		}
		return nil, false
	}))

	// CameraPosition is the camera's world position.
	CameraPosition = Uniform("cameraPosition", Vec3, [3]float32{}, WithUpdate(UpdateRender, func(f *Frame) (any, bool) {
		if s, ok := f.Camera.(positionSource); ok {
			return s.Position(), true
		}
		return nil, false
	}))

	// Time is the elapsed frame time in seconds.
	Time = Uniform("time", Float, float32(0), WithUpdate(UpdateFrame, func(f *Frame) (any, bool) {
		return float32(f.Time), true
	}))

	// DeltaTime is the duration of the previous frame in seconds.
	DeltaTime = Uniform("deltaTime", Float, float32(0), WithUpdate(UpdateFrame, func(f *Frame) (any, bool) {
		return float32(f.DeltaTime), true
	}))

	// Resolution is the drawing buffer size in physical pixels.
	Resolution = Uniform("resolution", Vec2, [2]float32{1, 1}, WithUpdate(UpdateRender, func(f *Frame) (any, bool) {
		if f.Renderer == nil {
			return nil, false
		}
		w, h := f.Renderer.DrawingBufferSize()
		return [2]float32{float32(w), float32(h)}, true
	}))
)

// Derived world and clip space positions of the standard vertex pipeline.
var (
	PositionWorld       = Swizzle(Mul(ModelMatrix, Convert(PositionLocal, Vec4)), "xyz")
	NormalWorld         = Normalize(Mul(NormalMatrix, NormalLocal))
	PositionView        = Mul(ViewMatrix, Mul(ModelMatrix, Convert(PositionLocal, Vec4)))
	ModelViewProjection = Mul(ProjectionMatrix, PositionView)
)
