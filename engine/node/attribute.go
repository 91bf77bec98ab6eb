package node

// AttributeNode reads a named vertex attribute. Read in the fragment stage it is passed through a varying.
type AttributeNode struct {
	base
	name string
	typ  DataType
}

var _ StageScoped = &AttributeNode{}

// Attribute creates a vertex attribute reader.
//
// Parameters:
//   - name: the geometry attribute name, for example "position" or "uv"
//   - t: the attribute type
//
// Returns:
//   - *AttributeNode: the attribute node
func Attribute(name string, t DataType) *AttributeNode {
	return &AttributeNode{base: newBase("attribute"), name: name, typ: t}
}

// Name returns the geometry attribute name.
func (a *AttributeNode) Name() string {
	return a.name
}

func (a *AttributeNode) Key() uint64 {
	return a.cachedKey(func() uint64 {
		return newKeyer(a.kind).str(a.name).u64(uint64(a.typ)).sum()
	})
}

func (a *AttributeNode) ChildrenIn(Stage) []Node {
	return nil
}

func (a *AttributeNode) Type(Builder) (DataType, error) {
	return a.typ, nil
}

func (a *AttributeNode) Setup(b Builder) error {
	if !a.typ.IsScalar() && !a.typ.IsVector() {
		return b.TypeError(a, "attribute %q of type %s is not a scalar or vector", a.name, a.typ)
	}
	switch b.Stage() {
	case StageVertex:
		_, err := b.VertexAttribute(a.name, a.typ)
		return err
	case StageFragment:
		return b.RegisterVarying(a, varyingName(a.name), a.typ.Base() != Float)
	}
	return b.StageError(a, StageVertex, StageFragment)
}

func (a *AttributeNode) Generate(b Builder) (string, error) {
	if b.Stage() == StageFragment {
		return b.Varying(a, varyingName(a.name))
	}
	return b.VertexAttribute(a.name, a.typ)
}

func varyingName(name string) string {
	return "v_" + name
}

// Common geometry attributes.
var (
	PositionLocal = Attribute("position", Vec3)
	NormalLocal   = Attribute("normal", Vec3)
	UV            = Attribute("uv", Vec2)
	VertexColor   = Attribute("color", Vec4)
)

// VaryingNode computes its source in the vertex stage and reads the interpolated value in the fragment stage.
type VaryingNode struct {
	base
	source Node
	name   string
	flat   bool
}

var _ StageScoped = &VaryingNode{}

// Varying creates a vertex-to-fragment pass-through.
//
// Parameters:
//   - source: the vertex stage value
//   - name: the varying name, chosen by the builder when empty
//
// Returns:
//   - *VaryingNode: the varying node
func Varying(source Node, name string) *VaryingNode {
	return &VaryingNode{base: newBase("varying"), source: source, name: name}
}

// Flat disables interpolation. Integer varyings are always flat.
func (v *VaryingNode) Flat() *VaryingNode {
	v.flat = true
	return v
}

func (v *VaryingNode) Children() []Node {
	return []Node{v.source}
}

func (v *VaryingNode) ChildrenIn(stage Stage) []Node {
	if stage == StageVertex {
		return []Node{v.source}
	}
	return nil
}

func (v *VaryingNode) Key() uint64 {
	return v.cachedKey(func() uint64 {
		flat := uint64(0)
		if v.flat {
			flat = 1
		}
		return newKeyer(v.kind).str(v.name).u64(flat).nodes(v.source).sum()
	})
}

func (v *VaryingNode) Type(b Builder) (DataType, error) {
	return b.TypeOf(v.source)
}

func (v *VaryingNode) Setup(b Builder) error {
	switch b.Stage() {
	case StageVertex:
		return nil
	case StageFragment:
		t, err := b.TypeOf(v.source)
		if err != nil {
			return err
		}
		if !t.IsScalar() && !t.IsVector() {
			return b.TypeError(v, "varying %q of type %s is not a scalar or vector", v.name, t)
		}
		return b.RegisterVarying(v.source, v.name, v.flat || t.Base() != Float)
	}
	return b.StageError(v, StageVertex, StageFragment)
}

func (v *VaryingNode) Generate(b Builder) (string, error) {
	if b.Stage() == StageFragment {
		return b.Varying(v.source, v.name)
	}
	return b.Build(v.source, Void)
}
