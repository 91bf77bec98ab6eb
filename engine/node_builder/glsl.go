package node_builder

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
)

// glslTarget emits GLSL ES 3.00 for render stages and GLSL ES 3.10 for compute.
type glslTarget struct{}

var _ target = &glslTarget{}

var glslScalars = map[node.DataType]string{
	node.Bool: "bool", node.Int: "int", node.Uint: "uint", node.Float: "float",
}

var glslVectorPrefix = map[node.DataType]string{
	node.Float: "vec", node.Int: "ivec", node.Uint: "uvec",
}

var glslBuiltins = map[node.BuiltinKind]string{
	node.BuiltinVertexIndex:          "uint(gl_VertexID)",
	node.BuiltinInstanceIndex:        "uint(gl_InstanceID)",
	node.BuiltinFragCoord:            "gl_FragCoord",
	node.BuiltinFrontFacing:          "gl_FrontFacing",
	node.BuiltinGlobalInvocationID:   "gl_GlobalInvocationID",
	node.BuiltinLocalInvocationID:    "gl_LocalInvocationID",
	node.BuiltinLocalInvocationIndex: "gl_LocalInvocationIndex",
	node.BuiltinWorkgroupID:          "gl_WorkGroupID",
	node.BuiltinNumWorkgroups:        "gl_NumWorkGroups",
	node.BuiltinViewIndex:            "gl_ViewID_OVR",
}

func (g *glslTarget) Language() node.Target {
	return node.TargetGLSL
}

func (g *glslTarget) TypeName(t node.DataType) (string, error) {
	if t.Base() == node.Half {
		return "", fmt.Errorf("GLSL has no %s type", t)
	}
	switch {
	case t.IsScalar():
		return glslScalars[t], nil
	case t.IsVector():
		return fmt.Sprintf("%s%d", glslVectorPrefix[t.Base()], t.Components()), nil
	case t.IsMatrix():
		return fmt.Sprintf("mat%d", t.Components()), nil
	}
	return "", fmt.Errorf("type %s has no GLSL value spelling", t)
}

func (g *glslTarget) scalarLiteral(t node.DataType, v float64) (string, error) {
	switch t {
	case node.Bool:
		if v != 0 {
			return "true", nil
		}
		return "false", nil
	case node.Int:
		return formatInt(v, false)
	case node.Uint:
		s, err := formatInt(v, true)
		return s + "u", err
	case node.Float:
		return formatFloat(v)
	}
	return "", fmt.Errorf("GLSL has no %s literal", t)
}

func (g *glslTarget) Literal(t node.DataType, values []float64) (string, error) {
	comps, err := literalComponents(t, values)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(comps))
	splat := true
	for i, v := range comps {
		if parts[i], err = g.scalarLiteral(t.Base(), v); err != nil {
			return "", err
		}
		splat = splat && parts[i] == parts[0]
	}
	if t.IsScalar() {
		return parts[0], nil
	}
	if splat {
		parts = parts[:1]
	}
	return g.Construct(t, parts)
}

func (g *glslTarget) Construct(t node.DataType, args []string) (string, error) {
	name, err := g.TypeName(t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")), nil
}

func (g *glslTarget) Cast(expr string, from, to node.DataType) (string, error) {
	if from.Components() != to.Components() && !from.IsScalar() {
		return "", fmt.Errorf("cannot cast %s to %s", from, to)
	}
	return g.Construct(to, []string{expr})
}

func (g *glslTarget) Bitcast(expr string, from, to node.DataType) (string, error) {
	var fn string
	switch fb, tb := from.Base(), to.Base(); {
	case fb == node.Float && tb == node.Int:
		fn = "floatBitsToInt"
	case fb == node.Float && tb == node.Uint:
		fn = "floatBitsToUint"
	case fb == node.Int && tb == node.Float:
		fn = "intBitsToFloat"
	case fb == node.Uint && tb == node.Float:
		fn = "uintBitsToFloat"
	default:
		// int and uint share their bit pattern under conversion
		return g.Construct(to, []string{expr})
	}
	return fmt.Sprintf("%s(%s)", fn, expr), nil
}

func (g *glslTarget) Call(fn string, args []string) (string, error) {
	want := map[string]int{"saturate": 1, "oneMinus": 1, "atan2": 2, "select": 3}
	if n, ok := want[fn]; ok && len(args) != n {
		return "", fmt.Errorf("%s takes %d arguments, got %d", fn, n, len(args))
	}
	switch fn {
	case "saturate":
		return fmt.Sprintf("clamp(%s, 0.0, 1.0)", args[0]), nil
	case "oneMinus":
		return fmt.Sprintf("(1.0 - %s)", args[0]), nil
	case "atan2":
		return fmt.Sprintf("atan(%s, %s)", args[0], args[1]), nil
	case "select":
		return fmt.Sprintf("(%s ? %s : %s)", args[0], args[1], args[2]), nil
	case "workgroupBarrier":
		return "barrier()", nil
	case "storageBarrier":
		return "memoryBarrierBuffer()", nil
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(args, ", ")), nil
}

func (g *glslTarget) Sample(req node.SampleRequest, stage node.Stage) (string, error) {
	depth := req.TextureType == node.DepthTexture
	dim := req.Texture.Dimension()
	shadow := depth && req.Texture.Compare()
	t := req.TextureName

	coord := req.UV
	if dim == resource.Texture2DArray {
		coord = fmt.Sprintf("vec3(%s, float(%s))", req.UV, req.Layer)
	}
	red := func(expr string) string {
		if depth {
			return expr + ".r"
		}
		return expr
	}

	switch {
	case req.Load:
		if shadow {
			return "", fmt.Errorf("texel loads from a comparison-sampled depth texture are not supported")
		}
		c := req.UV
		if dim == resource.Texture2DArray {
			c = fmt.Sprintf("ivec3(%s, %s)", req.UV, req.Layer)
		}
		level := req.Level
		if level == "" {
			level = "0"
		}
		return red(fmt.Sprintf("texelFetch(%s, %s, %s)", t, c, level)), nil
	case req.Compare != "":
		// shadow lookups carry the reference in the last coordinate
		var c string
		switch dim {
		case resource.Texture2DArray:
			c = fmt.Sprintf("vec4(%s, float(%s), %s)", req.UV, req.Layer, req.Compare)
		case resource.TextureCube:
			c = fmt.Sprintf("vec4(%s, %s)", req.UV, req.Compare)
		default:
			c = fmt.Sprintf("vec3(%s, %s)", req.UV, req.Compare)
			if stage != node.StageFragment || req.Level != "" {
				return fmt.Sprintf("textureLod(%s, %s, 0.0)", t, c), nil
			}
		}
		return fmt.Sprintf("texture(%s, %s)", t, c), nil
	case shadow:
		return "", fmt.Errorf("a depth texture with a comparison sampler must be sampled with a compare reference")
	case req.Level != "":
		return red(fmt.Sprintf("textureLod(%s, %s, %s)", t, coord, req.Level)), nil
	case req.Bias != "":
		return red(fmt.Sprintf("texture(%s, %s, %s)", t, coord, req.Bias)), nil
	case req.GradX != "":
		return red(fmt.Sprintf("textureGrad(%s, %s, %s, %s)", t, coord, req.GradX, req.GradY)), nil
	case stage == node.StageFragment:
		return red(fmt.Sprintf("texture(%s, %s)", t, coord)), nil
	}
	return red(fmt.Sprintf("textureLod(%s, %s, 0.0)", t, coord)), nil
}

func (g *glslTarget) Subgroup(op, _ string, _ node.DataType) (string, error) {
	return "", fmt.Errorf("%s is not available in GLSL", op)
}

func (g *glslTarget) LoopHeader(counter, start, end string) string {
	return fmt.Sprintf("for (int %s = %s; %s < %s; %s++)", counter, start, counter, end, counter)
}

func (g *glslTarget) DeclareVar(name string, t node.DataType, init string) (string, error) {
	tn, err := g.TypeName(t)
	if err != nil {
		return "", err
	}
	if init == "" {
		return fmt.Sprintf("%s %s", tn, name), nil
	}
	return fmt.Sprintf("%s %s = %s", tn, name, init), nil
}

func (g *glslTarget) DeclareConst(name string, t node.DataType, init string) (string, error) {
	return g.DeclareVar(name, t, init)
}

func (g *glslTarget) BuiltinExpr(kind node.BuiltinKind) string {
	return glslBuiltins[kind]
}

func (g *glslTarget) AttributeExpr(name string) string {
	return "a_" + name
}

func (g *glslTarget) VaryingExpr(name string) string {
	return name
}

func (g *glslTarget) UniformExpr(group *UniformGroupLayout, member string) string {
	return group.InstanceName + "." + member
}

// TextureNames returns the combined sampler name twice.
func (g *glslTarget) TextureNames(index int) (string, string) {
	name := fmt.Sprintf("texture%d", index)
	return name, name
}

func (g *glslTarget) StorageName(name string) string {
	return name
}

func (g *glslTarget) PositionOutput() string {
	return "gl_Position"
}

func (g *glslTarget) FragmentOutput(name string) string {
	return "fragColor_" + name
}

func (g *glslTarget) DepthOutput() string {
	return "gl_FragDepth"
}

func (g *glslTarget) ClipDistanceOutput(i int) string {
	return fmt.Sprintf("gl_ClipDistance[%d]", i)
}

func glslSamplerType(t *TextureBinding) string {
	base := "sampler2D"
	switch t.ViewDimension {
	case gputypes.TextureViewDimension2DArray:
		base = "sampler2DArray"
	case gputypes.TextureViewDimensionCube:
		base = "samplerCube"
	case gputypes.TextureViewDimension3D:
		base = "sampler3D"
	}
	switch {
	case t.Comparison:
		return base + "Shadow"
	case t.SampleType == gputypes.TextureSampleTypeSint:
		return "i" + base
	case t.SampleType == gputypes.TextureSampleTypeUint:
		return "u" + base
	}
	return base
}

func (g *glslTarget) Assemble(u *stageUnit) (string, error) {
	var sb strings.Builder

	if u.stage == node.StageCompute {
		sb.WriteString("#version 310 es\n")
	} else {
		sb.WriteString("#version 300 es\n")
	}
	multiview := u.stage == node.StageVertex && u.multiview > 1
	if multiview {
		sb.WriteString("#extension GL_OVR_multiview2 : require\n")
	}
	if u.stage == node.StageVertex && u.clipDistances > 0 {
		sb.WriteString("#extension GL_EXT_clip_cull_distance : require\n")
	}
	sb.WriteString("precision highp float;\nprecision highp int;\n")
	if multiview {
		fmt.Fprintf(&sb, "layout(num_views = %d) in;\n", u.multiview)
	}
	if u.stage == node.StageCompute {
		fmt.Fprintf(&sb, "layout(local_size_x = %d, local_size_y = %d, local_size_z = %d) in;\n",
			u.workgroupSize[0], u.workgroupSize[1], u.workgroupSize[2])
	}
	sb.WriteString("\n")

	for _, grp := range u.uniforms {
		fmt.Fprintf(&sb, "layout(std140) uniform %s {\n", grp.BlockName)
		for _, m := range grp.Members {
			tn, err := g.TypeName(m.Type)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "\t%s %s;\n", tn, m.Name)
		}
		fmt.Fprintf(&sb, "} %s;\n\n", grp.InstanceName)
	}
	for _, t := range u.textures {
		fmt.Fprintf(&sb, "uniform highp %s %s;\n", glslSamplerType(t), t.Name)
	}
	for _, s := range u.storage {
		tn, err := g.TypeName(s.Element)
		if err != nil {
			return "", err
		}
		readonly := ""
		if s.ReadOnly {
			readonly = "readonly "
		}
		fmt.Fprintf(&sb, "layout(std430, binding = %d) %sbuffer %sBuffer {\n\t%s %s[];\n};\n", s.Binding, readonly, s.Name, tn, s.Name)
	}
	if len(u.textures) > 0 || len(u.storage) > 0 {
		sb.WriteString("\n")
	}

	switch u.stage {
	case node.StageVertex:
		for _, a := range u.attributes {
			tn, err := g.TypeName(a.Type)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "layout(location = %d) in %s a_%s;\n", a.Location, tn, a.Ident)
		}
		if err := g.varyings(&sb, u, "out"); err != nil {
			return "", err
		}
	case node.StageFragment:
		if err := g.varyings(&sb, u, "in"); err != nil {
			return "", err
		}
		for i, name := range u.outputs {
			fmt.Fprintf(&sb, "layout(location = %d) out vec4 fragColor_%s;\n", i, name)
		}
	}
	if u.stage != node.StageCompute {
		sb.WriteString("\n")
	}

	sb.WriteString("void main() {\n")
	sb.WriteString(u.body)
	sb.WriteString("}\n")
	return sb.String(), nil
}

func (g *glslTarget) varyings(sb *strings.Builder, u *stageUnit, qualifier string) error {
	for _, v := range u.varyings {
		tn, err := g.TypeName(v.Type)
		if err != nil {
			return err
		}
		flat := ""
		if v.Flat {
			flat = "flat "
		}
		fmt.Fprintf(sb, "%s%s %s %s;\n", flat, qualifier, tn, v.Name)
	}
	return nil
}
