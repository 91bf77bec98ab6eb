package node_builder

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
)

// wgslTarget emits WGSL for the explicit-resource backend.
type wgslTarget struct{}

var _ target = &wgslTarget{}

var wgslScalars = map[node.DataType]string{
	node.Bool: "bool", node.Int: "i32", node.Uint: "u32", node.Float: "f32", node.Half: "f16",
}

// wgslCalls renames built-in functions whose WGSL name differs from the canonical one.
var wgslCalls = map[string]string{
	"inversesqrt": "inverseSqrt",
	"dFdx":        "dpdx",
	"dFdy":        "dpdy",
	"faceforward": "faceForward",
}

var wgslBuiltins = map[node.BuiltinKind]struct {
	attr string
	expr string
}{
	node.BuiltinVertexIndex:          {"vertex_index", "vertexIndex"},
	node.BuiltinInstanceIndex:        {"instance_index", "instanceIndex"},
	node.BuiltinFrontFacing:          {"front_facing", "frontFacing"},
	node.BuiltinGlobalInvocationID:   {"global_invocation_id", "globalInvocationId"},
	node.BuiltinLocalInvocationID:    {"local_invocation_id", "localInvocationId"},
	node.BuiltinLocalInvocationIndex: {"local_invocation_index", "localInvocationIndex"},
	node.BuiltinWorkgroupID:          {"workgroup_id", "workgroupId"},
	node.BuiltinNumWorkgroups:        {"num_workgroups", "numWorkgroups"},
	node.BuiltinSubgroupSize:         {"subgroup_size", "subgroupSize"},
	node.BuiltinSubgroupInvocationID: {"subgroup_invocation_id", "subgroupInvocationId"},
}

func (w *wgslTarget) Language() node.Target {
	return node.TargetWGSL
}

func (w *wgslTarget) TypeName(t node.DataType) (string, error) {
	switch {
	case t.IsScalar():
		return wgslScalars[t], nil
	case t.IsVector():
		return fmt.Sprintf("vec%d<%s>", t.Components(), wgslScalars[t.Base()]), nil
	case t.IsMatrix():
		return fmt.Sprintf("mat%dx%d<f32>", t.Components(), t.Components()), nil
	}
	return "", fmt.Errorf("type %s has no WGSL value spelling", t)
}

func (w *wgslTarget) scalarLiteral(t node.DataType, v float64) (string, error) {
	switch t {
	case node.Bool:
		if v != 0 {
			return "true", nil
		}
		return "false", nil
	case node.Int:
		s, err := formatInt(v, false)
		return s + "i", err
	case node.Uint:
		s, err := formatInt(v, true)
		return s + "u", err
	case node.Half:
		s, err := formatFloat(v)
		return s + "h", err
	}
	return formatFloat(v)
}

func (w *wgslTarget) Literal(t node.DataType, values []float64) (string, error) {
	comps, err := literalComponents(t, values)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(comps))
	splat := true
	for i, v := range comps {
		if parts[i], err = w.scalarLiteral(t.Base(), v); err != nil {
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
	return w.Construct(t, parts)
}

func (w *wgslTarget) Construct(t node.DataType, args []string) (string, error) {
	name, err := w.TypeName(t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")), nil
}

func (w *wgslTarget) Cast(expr string, from, to node.DataType) (string, error) {
	if from.Components() != to.Components() && !from.IsScalar() {
		return "", fmt.Errorf("cannot cast %s to %s", from, to)
	}
	return w.Construct(to, []string{expr})
}

func (w *wgslTarget) Bitcast(expr string, _, to node.DataType) (string, error) {
	name, err := w.TypeName(to)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("bitcast<%s>(%s)", name, expr), nil
}

func (w *wgslTarget) Call(fn string, args []string) (string, error) {
	switch fn {
	case "mod":
		if len(args) != 2 {
			return "", fmt.Errorf("mod takes 2 arguments, got %d", len(args))
		}
		return fmt.Sprintf("(%s - %s * floor(%s / %s))", args[0], args[1], args[0], args[1]), nil
	case "oneMinus":
		if len(args) != 1 {
			return "", fmt.Errorf("oneMinus takes 1 argument, got %d", len(args))
		}
		return fmt.Sprintf("(1.0 - %s)", args[0]), nil
	case "select":
		if len(args) != 3 {
			return "", fmt.Errorf("select takes 3 arguments, got %d", len(args))
		}
		return fmt.Sprintf("select(%s, %s, %s)", args[2], args[1], args[0]), nil
	}
	if renamed, ok := wgslCalls[fn]; ok {
		fn = renamed
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(args, ", ")), nil
}

func (w *wgslTarget) Sample(req node.SampleRequest, stage node.Stage) (string, error) {
	depth := req.TextureType == node.DepthTexture
	array := req.Texture.Dimension() == resource.Texture2DArray
	st := req.Texture.SampleType()

	call := func(fn string, extra ...string) string {
		args := []string{req.TextureName, req.SamplerName, req.UV}
		if array {
			args = append(args, req.Layer)
		}
		return fmt.Sprintf("%s(%s)", fn, strings.Join(append(args, extra...), ", "))
	}

	switch {
	case req.Load:
		args := []string{req.TextureName, req.UV}
		if array {
			args = append(args, req.Layer)
		}
		level := req.Level
		if level == "" {
			level = "0i"
		}
		return fmt.Sprintf("textureLoad(%s)", strings.Join(append(args, level), ", ")), nil
	case st == gputypes.TextureSampleTypeSint || st == gputypes.TextureSampleTypeUint:
		return "", fmt.Errorf("integer textures can only be read with a texel load")
	case req.Compare != "":
		if stage == node.StageFragment && req.Level == "" {
			return call("textureSampleCompare", req.Compare), nil
		}
		return call("textureSampleCompareLevel", req.Compare), nil
	case req.Level != "":
		if depth {
			return call("textureSampleLevel", "i32("+req.Level+")"), nil
		}
		return call("textureSampleLevel", req.Level), nil
	case req.Bias != "":
		if depth {
			return "", fmt.Errorf("depth textures cannot be sampled with a bias")
		}
		return call("textureSampleBias", req.Bias), nil
	case req.GradX != "":
		if depth {
			return "", fmt.Errorf("depth textures cannot be sampled with gradients")
		}
		return call("textureSampleGrad", req.GradX, req.GradY), nil
	case stage == node.StageFragment:
		return call("textureSample"), nil
	case depth:
		return call("textureSampleLevel", "0i"), nil
	}
	return call("textureSampleLevel", "0.0"), nil
}

func (w *wgslTarget) Subgroup(op, expr string, _ node.DataType) (string, error) {
	return fmt.Sprintf("%s(%s)", op, expr), nil
}

func (w *wgslTarget) LoopHeader(counter, start, end string) string {
	return fmt.Sprintf("for (var %s: i32 = %s; %s < %s; %s++)", counter, start, counter, end, counter)
}

func (w *wgslTarget) DeclareVar(name string, t node.DataType, init string) (string, error) {
	tn, err := w.TypeName(t)
	if err != nil {
		return "", err
	}
	if init == "" {
		return fmt.Sprintf("var %s: %s", name, tn), nil
	}
	return fmt.Sprintf("var %s: %s = %s", name, tn, init), nil
}

func (w *wgslTarget) DeclareConst(name string, _ node.DataType, init string) (string, error) {
	return fmt.Sprintf("let %s = %s", name, init), nil
}

func (w *wgslTarget) BuiltinExpr(kind node.BuiltinKind) string {
	if kind == node.BuiltinFragCoord {
		return "varyings.position"
	}
	return wgslBuiltins[kind].expr
}

func (w *wgslTarget) AttributeExpr(name string) string {
	return "input." + name
}

func (w *wgslTarget) VaryingExpr(name string) string {
	return "varyings." + name
}

func (w *wgslTarget) UniformExpr(group *UniformGroupLayout, member string) string {
	return group.InstanceName + "." + member
}

func (w *wgslTarget) TextureNames(index int) (string, string) {
	name := fmt.Sprintf("texture%d", index)
	return name, name + "Sampler"
}

func (w *wgslTarget) StorageName(name string) string {
	return name
}

func (w *wgslTarget) PositionOutput() string {
	return "varyings.position"
}

func (w *wgslTarget) FragmentOutput(name string) string {
	return "fragmentOutput." + name
}

func (w *wgslTarget) DepthOutput() string {
	return "fragmentOutput.depth"
}

func (w *wgslTarget) ClipDistanceOutput(i int) string {
	return fmt.Sprintf("varyings.clipDistances[%d]", i)
}

func wgslTextureType(t *TextureBinding) string {
	if t.SampleType == gputypes.TextureSampleTypeDepth {
		switch t.ViewDimension {
		case gputypes.TextureViewDimension2DArray:
			return "texture_depth_2d_array"
		case gputypes.TextureViewDimensionCube:
			return "texture_depth_cube"
		}
		return "texture_depth_2d"
	}
	base := "texture_2d"
	switch t.ViewDimension {
	case gputypes.TextureViewDimension2DArray:
		base = "texture_2d_array"
	case gputypes.TextureViewDimensionCube:
		base = "texture_cube"
	case gputypes.TextureViewDimension3D:
		base = "texture_3d"
	}
	scalar := "f32"
	switch t.SampleType {
	case gputypes.TextureSampleTypeSint:
		scalar = "i32"
	case gputypes.TextureSampleTypeUint:
		scalar = "u32"
	}
	return fmt.Sprintf("%s<%s>", base, scalar)
}

func (w *wgslTarget) Assemble(u *stageUnit) (string, error) {
	var sb strings.Builder

	pragmas := 0
	enable := func(ext string) {
		fmt.Fprintf(&sb, "enable %s;\n", ext)
		pragmas++
	}
	if u.features.Has(node.FeatureShaderF16) {
		enable("f16")
	}
	if u.features.Has(node.FeatureSubgroups) {
		enable("subgroups")
	}
	if u.stage == node.StageVertex && u.clipDistances > 0 {
		enable("clip_distances")
	}
	if pragmas > 0 {
		sb.WriteString("\n")
	}

	for _, g := range u.uniforms {
		fmt.Fprintf(&sb, "struct %s {\n", g.BlockName)
		for _, m := range g.Members {
			tn, err := w.TypeName(m.Type)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "\t%s: %s,\n", m.Name, tn)
		}
		sb.WriteString("}\n\n")
		fmt.Fprintf(&sb, "@group(%d) @binding(%d) var<uniform> %s: %s;\n\n", g.BindGroup, g.Binding, g.InstanceName, g.BlockName)
	}

	for _, t := range u.textures {
		fmt.Fprintf(&sb, "@group(%d) @binding(%d) var %s: %s;\n", t.Group, t.Binding, t.Name, wgslTextureType(t))
		samplerType := "sampler"
		if t.Comparison {
			samplerType = "sampler_comparison"
		}
		fmt.Fprintf(&sb, "@group(%d) @binding(%d) var %s: %s;\n", t.Group, t.SamplerBinding, t.SamplerName, samplerType)
	}
	for _, s := range u.storage {
		tn, err := w.TypeName(s.Element)
		if err != nil {
			return "", err
		}
		access := "read_write"
		if s.ReadOnly {
			access = "read"
		}
		fmt.Fprintf(&sb, "@group(%d) @binding(%d) var<storage, %s> %s: array<%s>;\n", s.Group, s.Binding, access, s.Name, tn)
	}
	if len(u.textures) > 0 || len(u.storage) > 0 {
		sb.WriteString("\n")
	}

	params := []string{}
	for _, k := range u.builtins {
		b, ok := wgslBuiltins[k]
		if !ok {
			continue
		}
		tn, err := w.TypeName(k.Type())
		if err != nil {
			return "", err
		}
		params = append(params, fmt.Sprintf("@builtin(%s) %s: %s", b.attr, b.expr, tn))
	}

	switch u.stage {
	case node.StageCompute:
		fmt.Fprintf(&sb, "@compute @workgroup_size(%d, %d, %d)\n", u.workgroupSize[0], u.workgroupSize[1], u.workgroupSize[2])
		fmt.Fprintf(&sb, "fn main(%s) {\n", strings.Join(params, ", "))
		sb.WriteString(u.body)
		sb.WriteString("}\n")
		return sb.String(), nil

	case node.StageVertex:
		if len(u.attributes) > 0 {
			sb.WriteString("struct VertexInput {\n")
			for _, a := range u.attributes {
				tn, err := w.TypeName(a.Type)
				if err != nil {
					return "", err
				}
				fmt.Fprintf(&sb, "\t@location(%d) %s: %s,\n", a.Location, a.Ident, tn)
			}
			sb.WriteString("}\n\n")
			params = append([]string{"input: VertexInput"}, params...)
		}
		if err := w.varyingsStruct(&sb, u); err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "@vertex\nfn main(%s) -> Varyings {\n", strings.Join(params, ", "))
		sb.WriteString("\tvar varyings: Varyings;\n")
		sb.WriteString(u.body)
		sb.WriteString("\treturn varyings;\n}\n")
		return sb.String(), nil
	}

	if err := w.varyingsStruct(&sb, u); err != nil {
		return "", err
	}
	sb.WriteString("struct FragmentOutput {\n")
	for i, name := range u.outputs {
		fmt.Fprintf(&sb, "\t@location(%d) %s: vec4<f32>,\n", i, name)
	}
	if u.hasDepth {
		sb.WriteString("\t@builtin(frag_depth) depth: f32,\n")
	}
	sb.WriteString("}\n\n")
	params = append([]string{"varyings: Varyings"}, params...)
	fmt.Fprintf(&sb, "@fragment\nfn main(%s) -> FragmentOutput {\n", strings.Join(params, ", "))
	sb.WriteString("\tvar fragmentOutput: FragmentOutput;\n")
	sb.WriteString(u.body)
	sb.WriteString("\treturn fragmentOutput;\n}\n")
	return sb.String(), nil
}

// varyingsStruct declares the stage interface. Clip distances are a vertex output only.
func (w *wgslTarget) varyingsStruct(sb *strings.Builder, u *stageUnit) error {
	sb.WriteString("struct Varyings {\n\t@builtin(position) position: vec4<f32>,\n")
	if u.stage == node.StageVertex && u.clipDistances > 0 {
		fmt.Fprintf(sb, "\t@builtin(clip_distances) clipDistances: array<f32, %d>,\n", u.clipDistances)
	}
	for _, v := range u.varyings {
		tn, err := w.TypeName(v.Type)
		if err != nil {
			return err
		}
		interp := ""
		if v.Flat {
			interp = "@interpolate(flat) "
		}
		fmt.Fprintf(sb, "\t@location(%d) %s%s: %s,\n", v.Location, interp, v.Name, tn)
	}
	sb.WriteString("}\n\n")
	return nil
}
