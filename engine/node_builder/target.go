package node_builder

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/gogpu/gputypes"
)

// target spells generated code in one shading language.
type target interface {
	Language() node.Target

	TypeName(t node.DataType) (string, error)
	Literal(t node.DataType, values []float64) (string, error)
	Construct(t node.DataType, args []string) (string, error)
	Cast(expr string, from, to node.DataType) (string, error)
	Bitcast(expr string, from, to node.DataType) (string, error)
	Call(fn string, args []string) (string, error)
	Sample(req node.SampleRequest, stage node.Stage) (string, error)
	Subgroup(op, expr string, t node.DataType) (string, error)

	LoopHeader(counter, start, end string) string
	DeclareVar(name string, t node.DataType, init string) (string, error)
	DeclareConst(name string, t node.DataType, init string) (string, error)

	BuiltinExpr(kind node.BuiltinKind) string
	AttributeExpr(name string) string
	VaryingExpr(name string) string
	UniformExpr(group *UniformGroupLayout, member string) string
	TextureNames(index int) (string, string)
	StorageName(name string) string
	PositionOutput() string
	FragmentOutput(name string) string
	DepthOutput() string
	ClipDistanceOutput(i int) string

	Assemble(u *stageUnit) (string, error)
}

// stageUnit is everything a target needs to wrap a generated body into a complete shader.
type stageUnit struct {
	stage         node.Stage
	label         string
	features      node.Features
	multiview     int
	body          string
	uniforms      []*UniformGroupLayout
	textures      []*TextureBinding
	storage       []*StorageBinding
	attributes    []AttributeLayout
	varyings      []VaryingLayout
	builtins      []node.BuiltinKind
	outputs       []string
	hasDepth      bool
	clipDistances int
	workgroupSize [3]uint32
}

func newTarget(t node.Target) target {
	if t == node.TargetGLSL {
		return &glslTarget{}
	}
	return &wgslTarget{}
}

// formatFloat prints v as a float literal that always carries a decimal point or an exponent.
func formatFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("literal %v is not finite", v)
	}
	s := strconv.FormatFloat(v, 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s, nil
}

// formatInt prints v as an integer literal body, rejecting fractional and out-of-range values.
func formatInt(v float64, unsigned bool) (string, error) {
	if v != math.Trunc(v) {
		return "", fmt.Errorf("integer literal %v has a fractional part", v)
	}
	if unsigned {
		if v < 0 || v > math.MaxUint32 {
			return "", fmt.Errorf("uint literal %v out of range", v)
		}
		return strconv.FormatUint(uint64(v), 10), nil
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return "", fmt.Errorf("int literal %v out of range", v)
	}
	return strconv.FormatInt(int64(v), 10), nil
}

// literalComponents expands values to one per component of t.
func literalComponents(t node.DataType, values []float64) ([]float64, error) {
	n := t.Components()
	switch {
	case !t.IsScalar() && !t.IsVector():
		return nil, fmt.Errorf("no literal of type %s", t)
	case len(values) == 1:
		out := make([]float64, n)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	case len(values) != n:
		return nil, fmt.Errorf("literal of type %s needs %d values, got %d", t, n, len(values))
	}
	return values, nil
}

var (
	identRegex   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	literalRegex = regexp.MustCompile(`^-?[0-9][0-9.eE+\-]*[iuhf]?$`)
	invalidIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// isTrivial reports whether expr is an identifier, a member access or a literal, which are never worth a temporary.
func isTrivial(expr string) bool {
	return expr == "" || expr == "true" || expr == "false" || identRegex.MatchString(expr) || literalRegex.MatchString(expr)
}

// reservedWords are identifiers of either language that user-supplied names must not collide with.
var reservedWords = map[string]bool{
	"alias": true, "array": true, "bitcast": true, "bool": true, "break": true, "case": true, "const": true,
	"continue": true, "default": true, "discard": true, "do": true, "else": true, "enable": true, "false": true,
	"fn": true, "for": true, "if": true, "in": true, "inout": true, "input": true, "int": true, "let": true,
	"loop": true, "mat2": true, "mat3": true, "mat4": true, "out": true, "precision": true,
	"ptr": true, "return": true, "sample": true, "sampler": true, "struct": true, "switch": true, "texture": true,
	"true": true, "uniform": true, "var": true, "varyings": true, "vec2": true, "vec3": true, "vec4": true,
	"void": true, "while": true, "render": true, "object": true, "material": true, "main": true,
}

// sanitize turns a user-supplied name into an identifier valid in both languages.
func sanitize(name string) string {
	s := invalidIdent.ReplaceAllString(name, "_")
	if s == "" {
		s = "value"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	if strings.HasPrefix(s, "gl_") || strings.HasPrefix(s, "__") {
		s = "u" + s
	}
	if reservedWords[s] {
		s += "_"
	}
	return s
}

// vertexFormat maps an attribute type to its vertex format.
func vertexFormat(t node.DataType) (gputypes.VertexFormat, error) {
	formats := map[node.DataType]gputypes.VertexFormat{
		node.Float: gputypes.VertexFormatFloat32, node.Vec2: gputypes.VertexFormatFloat32x2,
		node.Vec3: gputypes.VertexFormatFloat32x3, node.Vec4: gputypes.VertexFormatFloat32x4,
		node.Int: gputypes.VertexFormatSint32, node.IVec2: gputypes.VertexFormatSint32x2,
		node.IVec3: gputypes.VertexFormatSint32x3, node.IVec4: gputypes.VertexFormatSint32x4,
		node.Uint: gputypes.VertexFormatUint32, node.UVec2: gputypes.VertexFormatUint32x2,
		node.UVec3: gputypes.VertexFormatUint32x3, node.UVec4: gputypes.VertexFormatUint32x4,
	}
	f, ok := formats[t]
	if !ok {
		return 0, fmt.Errorf("no vertex format for %s", t)
	}
	return f, nil
}

// indent prefixes every non-empty line of s with depth tabs.
func indent(s string, depth int) string {
	if s == "" {
		return s
	}
	prefix := strings.Repeat("\t", depth)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
