package node

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
)

// TextureNode binds a texture and its sampler. The bound texture may be swapped at runtime; only a change of its
// shape (dimension, depth, integer sample type) changes the node key and therefore the program.
type TextureNode struct {
	base
	mu      *sync.Mutex
	texture resource.Texture
	before  func(f *Frame) error
}

var _ Node = &TextureNode{}
var _ BeforeUpdater = &TextureNode{}

// Texture creates a texture binding.
func Texture(t resource.Texture) *TextureNode {
	return &TextureNode{base: newBase("texture"), mu: &sync.Mutex{}, texture: t}
}

// Value returns the bound texture.
func (t *TextureNode) Value() resource.Texture {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.texture
}

// SetValue binds another texture. Bindings are rebuilt, the program is kept when the shape matches.
func (t *TextureNode) SetValue(tex resource.Texture) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.texture = tex
}

// OnBefore sets work that runs before every draw reading the texture, such as rendering the pass producing it.
// fn runs once per reading object; it memoizes itself when the work is per frame.
//
// Parameters:
//   - fn: the pre-draw work
//
// Returns:
//   - *TextureNode: the node, for chaining
func (t *TextureNode) OnBefore(fn func(f *Frame) error) *TextureNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.before = fn
	return t
}

func (t *TextureNode) UpdateBeforeType() UpdateType {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.before == nil {
		return UpdateNone
	}
	return UpdateObject
}

func (t *TextureNode) UpdateBefore(f *Frame) error {
	t.mu.Lock()
	fn := t.before
	t.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(f)
}

// Key mixes in the node ID and the texture shape.
func (t *TextureNode) Key() uint64 {
	dt := t.dataType()
	return newKeyer(t.kind).u64(t.id).u64(uint64(dt)).u64(uint64(t.Dimension())).u64(uint64(t.sampleType())).u64(t.compareKey()).sum()
}

// Dimension returns the bound texture's dimension, 2D when nothing is bound.
func (t *TextureNode) Dimension() resource.TextureDimension {
	tex := t.Value()
	if tex == nil {
		return resource.Texture2D
	}
	return tex.Dimension()
}

func (t *TextureNode) compareKey() uint64 {
	if t.Compare() {
		return 1
	}
	return 0
}

// Compare reports whether the bound texture's sampler is a comparison sampler.
func (t *TextureNode) Compare() bool {
	tex := t.Value()
	return tex != nil && tex.Sampler().Compare != gputypes.CompareFunctionUndefined
}

func (t *TextureNode) sampleType() gputypes.TextureSampleType {
	tex := t.Value()
	if tex == nil {
		return gputypes.TextureSampleTypeFloat
	}
	return tex.SampleType()
}

// SampleType returns the shader sample type of the bound texture.
func (t *TextureNode) SampleType() gputypes.TextureSampleType {
	return t.sampleType()
}

func (t *TextureNode) dataType() DataType {
	tex := t.Value()
	if tex == nil {
		return Texture2D
	}
	if tex.IsDepth() {
		return DepthTexture
	}
	switch tex.Dimension() {
	case resource.Texture2DArray:
		return Texture2DArray
	case resource.TextureCube:
		return TextureCube
	case resource.Texture3D:
		return Texture3D
	}
	return Texture2D
}

func (t *TextureNode) Type(Builder) (DataType, error) {
	return t.dataType(), nil
}

func (t *TextureNode) Setup(b Builder) error {
	if t.Value() == nil {
		return b.TypeError(t, "texture node has no texture bound")
	}
	_, _, err := b.TextureBinding(t)
	return err
}

// Generate returns the texture identifier. Sampling goes through Sample.
func (t *TextureNode) Generate(b Builder) (string, error) {
	name, _, err := b.TextureBinding(t)
	return name, err
}

// Sample creates a sample of this texture at uv.
//
// Parameters:
//   - uv: the coordinates, vec2 (vec3 for cube and 3D textures), or integer texel coordinates with WithLoad
//   - options: variadic list of SampleOption functions selecting the sampling form
//
// Returns:
//   - *SampleNode: the sample node
func (t *TextureNode) Sample(uv Node, options ...SampleOption) *SampleNode {
	s := &SampleNode{base: newBase("sample"), texture: t, uv: uv}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// SampleOption selects a sampling form.
type SampleOption func(*SampleNode)

// WithLevel samples an explicit mip level.
func WithLevel(level Node) SampleOption {
	return func(s *SampleNode) {
		s.level = level
	}
}

// WithBias adds a level-of-detail bias to automatic selection.
func WithBias(bias Node) SampleOption {
	return func(s *SampleNode) {
		s.bias = bias
	}
}

// WithGrad samples with explicit screen-space gradients.
//
// Parameters:
//   - dx: the uv derivative along x
//   - dy: the uv derivative along y
//
// Returns:
//   - SampleOption: a function that applies the gradient option to a sample
func WithGrad(dx, dy Node) SampleOption {
	return func(s *SampleNode) {
		s.gradX, s.gradY = dx, dy
	}
}

// WithCompare performs a depth comparison against reference, yielding a float. Comparisons always read mip level 0,
// so WithLevel may only accompany it as the constant 0.
func WithCompare(reference Node) SampleOption {
	return func(s *SampleNode) {
		s.compare = reference
	}
}

// WithDepthLayer selects the array layer of a 2D array texture.
func WithDepthLayer(layer Node) SampleOption {
	return func(s *SampleNode) {
		s.layer = layer
	}
}

// WithLoad reads a texel without filtering. uv must be integer texel coordinates; level defaults to 0.
func WithLoad() SampleOption {
	return func(s *SampleNode) {
		s.load = true
	}
}

// SampleRequest is a fully generated sample handed to the target.
type SampleRequest struct {
	Texture     *TextureNode
	TextureType DataType
	TextureName string
	SamplerName string
	UV          string
	Level       string
	Bias        string
	GradX       string
	GradY       string
	Compare     string
	Layer       string
	Load        bool
	Result      DataType
}

// SampleNode is a texture sample or texel load.
type SampleNode struct {
	base
	texture      *TextureNode
	uv           Node
	level        Node
	bias         Node
	gradX, gradY Node
	compare      Node
	layer        Node
	load         bool
}

var _ Node = &SampleNode{}

// TextureNode returns the sampled binding.
func (s *SampleNode) TextureNode() *TextureNode {
	return s.texture
}

func (s *SampleNode) Children() []Node {
	return compact(s.texture, s.uv, s.level, s.bias, s.gradX, s.gradY, s.compare, s.layer)
}

func (s *SampleNode) Key() uint64 {
	load := uint64(0)
	if s.load {
		load = 1
	}
	// the texture key may change at runtime, never cache
	return newKeyer(s.kind).u64(load).nodes(s.texture, s.uv, s.level, s.bias, s.gradX, s.gradY, s.compare, s.layer).sum()
}

func (s *SampleNode) Type(b Builder) (DataType, error) {
	if s.compare != nil {
		return Float, nil
	}
	tt, err := b.TypeOf(s.texture)
	if err != nil {
		return Void, err
	}
	if tt == DepthTexture {
		return Float, nil
	}
	switch s.texture.SampleType() {
	case gputypes.TextureSampleTypeSint:
		return IVec4, nil
	case gputypes.TextureSampleTypeUint:
		return UVec4, nil
	}
	return Vec4, nil
}

// validate rejects contradictory sampling forms.
func (s *SampleNode) validate(b Builder) error {
	grad := s.gradX != nil || s.gradY != nil
	switch {
	case (s.gradX == nil) != (s.gradY == nil):
		return b.TypeError(s, "gradient sampling needs both dx and dy")
	case s.compare != nil && grad:
		return b.TypeError(s, "depth compare cannot be combined with explicit gradients")
	case s.compare != nil && s.bias != nil:
		return b.TypeError(s, "depth compare cannot be combined with a bias")
	case s.compare != nil && s.level != nil && !isZeroConst(s.level):
		return b.TypeError(s, "depth compare only samples level 0, the level must be the constant 0")
	case s.level != nil && s.bias != nil:
		return b.TypeError(s, "explicit level cannot be combined with a bias")
	case s.level != nil && grad:
		return b.TypeError(s, "explicit level cannot be combined with gradients")
	case s.bias != nil && grad:
		return b.TypeError(s, "bias cannot be combined with gradients")
	case s.load && (s.bias != nil || grad || s.compare != nil):
		return b.TypeError(s, "texel load cannot be combined with bias, gradients or compare")
	}
	return nil
}

func isZeroConst(n Node) bool {
	c, ok := n.(*ConstNode)
	if !ok {
		return false
	}
	for _, v := range c.Values() {
		if v != 0 {
			return false
		}
	}
	return true
}

func (s *SampleNode) uvType(dim resource.TextureDimension) DataType {
	if s.load {
		if dim == resource.Texture3D {
			return IVec3
		}
		return IVec2
	}
	if dim == resource.TextureCube || dim == resource.Texture3D {
		return Vec3
	}
	return Vec2
}

func (s *SampleNode) Setup(b Builder) error {
	if err := s.validate(b); err != nil {
		return err
	}
	tt, err := b.TypeOf(s.texture)
	if err != nil {
		return err
	}
	if s.compare != nil && tt != DepthTexture {
		return b.TypeError(s, "depth compare needs a depth texture, got %s", tt)
	}
	if s.compare != nil && !s.texture.Compare() {
		return b.TypeError(s, "depth compare needs a comparison sampler on the bound texture")
	}
	dim := s.texture.Dimension()
	if s.layer != nil && dim != resource.Texture2DArray {
		return b.TypeError(s, "array layer given for a %s", tt)
	}
	if s.layer == nil && dim == resource.Texture2DArray {
		return b.TypeError(s, "sampling a texture array needs WithDepthLayer")
	}
	if b.Stage() != StageFragment && (s.bias != nil || (s.gradX != nil && b.Target() == TargetWGSL)) {
		return b.StageError(s, StageFragment)
	}
	if s.load && dim == resource.TextureCube {
		return b.TypeError(s, "texel loads from cube textures are not supported")
	}

	ut, err := b.TypeOf(s.uv)
	if err != nil {
		return err
	}
	want := s.uvType(dim)
	if ut.Components() != want.Components() || ut.Base() != want.Base() && !(s.load && ut.Base() == Uint) {
		return b.TypeError(s, "sample coordinates of a %s must be %s, got %s", tt, want, ut)
	}
	return nil
}

func (s *SampleNode) Generate(b Builder) (string, error) {
	tt, err := b.TypeOf(s.texture)
	if err != nil {
		return "", err
	}
	result, err := b.TypeOf(s)
	if err != nil {
		return "", err
	}
	texName, samplerName, err := b.TextureBinding(s.texture)
	if err != nil {
		return "", err
	}
	req := SampleRequest{
		Texture:     s.texture,
		TextureType: tt,
		TextureName: texName,
		SamplerName: samplerName,
		Load:        s.load,
		Result:      result,
	}

	uvType := s.uvType(s.texture.Dimension())
	if req.UV, err = b.Build(s.uv, Void); err != nil {
		return "", err
	}
	if s.load {
		ut, _ := b.TypeOf(s.uv)
		if ut != uvType {
			if req.UV, err = b.Cast(req.UV, ut, uvType); err != nil {
				return "", err
			}
		}
	}

	build := func(n Node, t DataType) (string, error) {
		if n == nil {
			return "", nil
		}
		return b.Build(n, t)
	}
	levelType := Float
	if s.load {
		levelType = Int
	}
	if req.Level, err = build(s.level, levelType); err != nil {
		return "", err
	}
	if req.Bias, err = build(s.bias, Float); err != nil {
		return "", err
	}
	gradType := VectorOf(Float, uvType.Components())
	if req.GradX, err = build(s.gradX, gradType); err != nil {
		return "", err
	}
	if req.GradY, err = build(s.gradY, gradType); err != nil {
		return "", err
	}
	if req.Compare, err = build(s.compare, Float); err != nil {
		return "", err
	}
	if req.Layer, err = build(s.layer, Int); err != nil {
		return "", err
	}
	return b.Sample(req)
}
