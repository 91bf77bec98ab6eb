package loader

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/texture_utils"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"go.uber.org/multierr"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var binaryOps = map[string]func(a, b node.Node) *node.OperatorNode{
	"add": node.Add, "sub": node.Sub, "mul": node.Mul, "div": node.Div, "rem": node.Remainder,
	"eq": node.Equal, "ne": node.NotEqual, "lt": node.LessThan, "le": node.LessEqual,
	"gt": node.GreaterThan, "ge": node.GreaterEqual, "and": node.And, "or": node.Or,
	"bitAnd": node.BitAnd, "bitOr": node.BitOr, "bitXor": node.BitXor, "shl": node.ShiftLeft, "shr": node.ShiftRight,
}

var unaryOps = map[string]func(a node.Node) *node.UnaryNode{
	"negate": node.Negate, "not": node.Not, "bitNot": node.BitNot,
}

var builtins = map[string]node.Node{
	"time": node.Time, "deltaTime": node.DeltaTime, "resolution": node.Resolution,
	"cameraPosition": node.CameraPosition, "modelMatrix": node.ModelMatrix, "normalMatrix": node.NormalMatrix,
	"viewMatrix": node.ViewMatrix, "projectionMatrix": node.ProjectionMatrix,
	"positionLocal": node.PositionLocal, "normalLocal": node.NormalLocal, "uv": node.UV, "vertexColor": node.VertexColor,
	"positionWorld": node.PositionWorld, "normalWorld": node.NormalWorld, "positionView": node.PositionView,
	"modelViewProjection": node.ModelViewProjection,
	"vertexIndex": node.VertexIndex, "instanceIndex": node.InstanceIndex, "fragCoord": node.FragCoord,
	"frontFacing": node.FrontFacing, "viewIndex": node.ViewIndex,
}

// documentBuilder turns a documentSpec into nodes. Each id is built once; shared references reuse the node.
type documentBuilder struct {
	spec     *documentSpec
	name     string
	dir      string
	open     func(name string) (io.ReadCloser, error)
	executor *common.Executor

	built    map[string]node.Node
	failed   map[string]error
	stack    []string
	textures []resource.Texture
}

// build creates every node then the material. Errors of independent nodes are all reported.
func (b *documentBuilder) build() (*Document, error) {
	b.built = make(map[string]node.Node, len(b.spec.Nodes.ids))
	b.failed = map[string]error{}
	var errs error
	for _, id := range b.spec.Nodes.ids {
		if _, seen := b.failed[id]; seen {
			continue
		}
		if _, err := b.resolve(id); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		b.dispose()
		return nil, errs
	}

	m, err := b.material()
	if err != nil {
		b.dispose()
		return nil, err
	}
	return &Document{
		Name:     b.name,
		Material: m,
		Outputs:  b.spec.Outputs,
		nodes:    b.built,
		ids:      b.spec.Nodes.ids,
		textures: b.textures,
	}, nil
}

func (b *documentBuilder) dispose() {
	for _, t := range b.textures {
		t.Dispose()
	}
	b.textures = nil
}

func (b *documentBuilder) resolve(id string) (node.Node, error) {
	if n, ok := b.built[id]; ok {
		return n, nil
	}
	if err, ok := b.failed[id]; ok {
		return nil, err
	}
	for i, open := range b.stack {
		if open == id {
			path := append(append([]string{}, b.stack[i:]...), id)
			return nil, &CycleError{Path: path}
		}
	}
	spec, ok := b.spec.Nodes.specs[id]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", id)
	}

	b.stack = append(b.stack, id)
	n, err := b.node(id, spec)
	b.stack = b.stack[:len(b.stack)-1]
	if err != nil {
		var cycle *CycleError
		var located *NodeError
		if !errors.As(err, &cycle) && !errors.As(err, &located) {
			err = &NodeError{ID: id, Line: spec.line, Err: err}
		}
		b.failed[id] = err
		return nil, err
	}
	b.built[id] = n
	return n, nil
}

// args resolves the argument ids of s, requiring exactly want of them.
func (b *documentBuilder) args(s nodeSpec, want int) ([]node.Node, error) {
	if len(s.Args) != want {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", s.Op, want, len(s.Args))
	}
	return b.refs(s.Args)
}

func (b *documentBuilder) refs(ids []string) ([]node.Node, error) {
	out := make([]node.Node, len(ids))
	for i, id := range ids {
		n, err := b.resolve(id)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (b *documentBuilder) optional(id string) (node.Node, error) {
	if id == "" {
		return nil, nil
	}
	return b.resolve(id)
}

func (b *documentBuilder) dataType(s nodeSpec) (node.DataType, error) {
	if s.Type == "" {
		return node.Void, fmt.Errorf("%s needs a type", s.Op)
	}
	return node.ParseDataType(s.Type)
}

func (b *documentBuilder) node(id string, s nodeSpec) (node.Node, error) {
	if fn, ok := binaryOps[s.Op]; ok {
		a, err := b.args(s, 2)
		if err != nil {
			return nil, err
		}
		return fn(a[0], a[1]), nil
	}
	if fn, ok := unaryOps[s.Op]; ok {
		a, err := b.args(s, 1)
		if err != nil {
			return nil, err
		}
		return fn(a[0]), nil
	}
	if arity, ok := node.MathArity(s.Op); ok {
		a, err := b.args(s, arity)
		if err != nil {
			return nil, err
		}
		return node.Math(s.Op, a...), nil
	}

	switch s.Op {
	case "const":
		t, err := b.dataType(s)
		if err != nil {
			return nil, err
		}
		if !t.IsScalar() && !t.IsVector() {
			return nil, fmt.Errorf("const of type %s is not a scalar or vector", t)
		}
		if len(s.Value) != 1 && len(s.Value) != t.Components() {
			return nil, fmt.Errorf("const %s takes 1 or %d values, got %d", t, t.Components(), len(s.Value))
		}
		return node.Const(t, s.Value...), nil

	case "uniform":
		t, err := b.dataType(s)
		if err != nil {
			return nil, err
		}
		v, err := uniformValue(t, s.Value)
		if err != nil {
			return nil, err
		}
		return node.Uniform(common.Coalesce(s.Name, id), t, v), nil

	case "attribute":
		t, err := b.dataType(s)
		if err != nil {
			return nil, err
		}
		if s.Name == "" {
			return nil, fmt.Errorf("attribute needs a name")
		}
		return node.Attribute(s.Name, t), nil

	case "builtin":
		n, ok := builtins[s.Name]
		if !ok {
			return nil, fmt.Errorf("unknown builtin %q", s.Name)
		}
		return n, nil

	case "texture":
		return b.texture(id, s)

	case "sample":
		return b.sample(s)

	case "convert", "bitcast":
		a, err := b.args(s, 1)
		if err != nil {
			return nil, err
		}
		t, err := b.dataType(s)
		if err != nil {
			return nil, err
		}
		if s.Op == "bitcast" {
			return node.Bitcast(a[0], t), nil
		}
		return node.Convert(a[0], t), nil

	case "swizzle":
		a, err := b.args(s, 1)
		if err != nil {
			return nil, err
		}
		if s.Components == "" {
			return nil, fmt.Errorf("swizzle needs components")
		}
		return node.Swizzle(a[0], s.Components), nil

	case "join":
		if len(s.Args) < 2 || len(s.Args) > 4 {
			return nil, fmt.Errorf("join takes 2 to 4 arguments, got %d", len(s.Args))
		}
		a, err := b.refs(s.Args)
		if err != nil {
			return nil, err
		}
		return node.Join(a...), nil

	case "select":
		a, err := b.args(s, 3)
		if err != nil {
			return nil, err
		}
		return node.Select(a[0], a[1], a[2]), nil

	case "varying":
		a, err := b.args(s, 1)
		if err != nil {
			return nil, err
		}
		return node.Varying(a[0], common.Coalesce(s.Name, id)), nil

	case "mrt":
		if len(s.Outputs) == 0 {
			return nil, fmt.Errorf("mrt needs outputs")
		}
		outputs := make(map[string]node.Node, len(s.Outputs))
		for name, ref := range s.Outputs {
			n, err := b.resolve(ref)
			if err != nil {
				return nil, err
			}
			outputs[name] = n
		}
		return node.MRT(outputs), nil

	case "":
		return nil, fmt.Errorf("missing op")
	}
	return nil, fmt.Errorf("unknown op %q", s.Op)
}

// uniformValue converts document values into the Go value a uniform of type t packs. An empty value is the zero
// value, identity for matrices.
func uniformValue(t node.DataType, v floats) (any, error) {
	n := t.Components()
	if t.IsMatrix() {
		n *= n
	}
	if len(v) != 0 && len(v) != n && !(t.IsVector() && len(v) == 1) {
		return nil, fmt.Errorf("uniform %s takes %d values, got %d", t, n, len(v))
	}
	at := func(i int) float32 {
		switch {
		case len(v) == 0:
			return 0
		case len(v) == 1:
			return float32(v[0])
		}
		return float32(v[i])
	}

	switch t {
	case node.Float, node.Half:
		return at(0), nil
	case node.Int:
		return int32(at(0)), nil
	case node.Uint:
		return uint32(at(0)), nil
	case node.Vec2:
		return [2]float32{at(0), at(1)}, nil
	case node.Vec3:
		return [3]float32{at(0), at(1), at(2)}, nil
	case node.Vec4:
		return [4]float32{at(0), at(1), at(2), at(3)}, nil
	case node.Mat3:
		if len(v) == 0 {
			return common.Identity4().NormalMatrix(), nil
		}
		var m common.Mat3
		for i := range m {
			m[i] = at(i)
		}
		return m, nil
	case node.Mat4:
		if len(v) == 0 {
			return common.Identity4(), nil
		}
		var m common.Mat4
		for i := range m {
			m[i] = at(i)
		}
		return m, nil
	}
	return nil, fmt.Errorf("uniforms of type %s are not supported", t)
}

func (b *documentBuilder) texture(id string, s nodeSpec) (node.Node, error) {
	sampler, err := samplerFor(s)
	if err != nil {
		return nil, err
	}
	opts := []resource.TextureBuilderOption{
		resource.WithTextureLabel(b.name + "/" + id),
		resource.WithMipmaps(s.Mipmaps),
		resource.WithSampler(sampler),
	}
	switch {
	case s.File != "":
		srgb := s.SRGB == nil || *s.SRGB
		format := gputypes.TextureFormatRGBA8Unorm
		if srgb {
			format = gputypes.TextureFormatRGBA8UnormSrgb
		}
		// the pending load must resolve to the format the texture is created with
		opts = append(opts, resource.WithFormat(format))
		path := s.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(b.dir, path)
		}
		if b.executor != nil {
			opts = append(opts, resource.WithLoad(common.Submit(b.executor, func() (common.TextureStagingData, error) {
				return b.decodeImage(path, srgb)
			})))
			break
		}
		img, err := b.decodeImage(path, srgb)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resource.WithImage(img))
	case s.Width > 0 && s.Height > 0:
		opts = append(opts, resource.WithSize(s.Width, s.Height))
	}
	t := resource.NewTexture(opts...)
	b.textures = append(b.textures, t)
	return node.Texture(t), nil
}

func (b *documentBuilder) decodeImage(path string, srgb bool) (common.TextureStagingData, error) {
	f, err := b.open(path)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return texture_utils.FromImage(img, srgb), nil
}

func samplerFor(s nodeSpec) (common.SamplerStagingData, error) {
	var out common.SamplerStagingData
	switch s.Wrap {
	case "", "repeat":
	case "clamp":
		out.AddressModeU, out.AddressModeV, out.AddressModeW = gputypes.AddressModeClampToEdge, gputypes.AddressModeClampToEdge, gputypes.AddressModeClampToEdge
	case "mirror":
		out.AddressModeU, out.AddressModeV, out.AddressModeW = gputypes.AddressModeMirrorRepeat, gputypes.AddressModeMirrorRepeat, gputypes.AddressModeMirrorRepeat
	default:
		return out, fmt.Errorf("unknown wrap mode %q", s.Wrap)
	}
	switch s.Filter {
	case "", "linear":
	case "nearest":
		out.MagFilter, out.MinFilter = gputypes.FilterModeNearest, gputypes.FilterModeNearest
		out.MipmapFilter = gputypes.MipmapFilterModeNearest
	default:
		return out, fmt.Errorf("unknown filter %q", s.Filter)
	}
	return out, nil
}

func (b *documentBuilder) sample(s nodeSpec) (node.Node, error) {
	if s.Texture == "" {
		return nil, fmt.Errorf("sample needs a texture")
	}
	ref, err := b.resolve(s.Texture)
	if err != nil {
		return nil, err
	}
	tex, ok := ref.(*node.TextureNode)
	if !ok {
		return nil, fmt.Errorf("sample texture %q is a %s node", s.Texture, strings.TrimPrefix(fmt.Sprintf("%T", ref), "*node."))
	}
	a, err := b.args(s, 1)
	if err != nil {
		return nil, err
	}

	var opts []node.SampleOption
	if s.Load {
		opts = append(opts, node.WithLoad())
	}
	level, err := b.optional(s.Level)
	if err != nil {
		return nil, err
	}
	if level != nil {
		opts = append(opts, node.WithLevel(level))
	}
	bias, err := b.optional(s.Bias)
	if err != nil {
		return nil, err
	}
	if bias != nil {
		opts = append(opts, node.WithBias(bias))
	}
	return tex.Sample(a[0], opts...), nil
}

// material applies the classic values and binds every slot to its node.
func (b *documentBuilder) material() (material.Material, error) {
	ms := b.spec.Material
	opts := []material.MaterialBuilderOption{
		material.WithName(common.Coalesce(ms.Name, b.name)),
		material.WithTransparent(ms.Transparent),
	}
	if len(ms.Color) != 0 {
		if len(ms.Color) != 3 {
			return nil, fmt.Errorf("material color takes 3 values, got %d", len(ms.Color))
		}
		opts = append(opts, material.WithColor([3]float32{ms.Color[0], ms.Color[1], ms.Color[2]}))
	}
	if ms.Opacity != nil {
		opts = append(opts, material.WithOpacity(*ms.Opacity))
	}
	if ms.AlphaTest > 0 {
		opts = append(opts, material.WithAlphaTest(ms.AlphaTest))
	}
	if ms.Side != "" {
		side, err := material.ParseSide(ms.Side)
		if err != nil {
			return nil, err
		}
		opts = append(opts, material.WithSide(side))
	}
	if ms.Map != "" {
		tex, ok := b.built[ms.Map].(*node.TextureNode)
		if !ok {
			return nil, fmt.Errorf("material map %q is not a texture node", ms.Map)
		}
		opts = append(opts, material.WithMap(tex.Value()))
	}

	var errs error
	for _, name := range slices.Sorted(maps.Keys(ms.Slots)) {
		ref := ms.Slots[name]
		slot, err := material.ParseSlot(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n, ok := b.built[ref]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("material slot %s: unknown node %q", name, ref))
			continue
		}
		opts = append(opts, material.WithNode(slot, n))
	}
	if errs != nil {
		return nil, errs
	}
	return material.NewMaterial(opts...), nil
}
