package node

import "fmt"

// ConstNode is a literal scalar or vector.
type ConstNode struct {
	base
	typ    DataType
	values []float64
}

var _ Node = &ConstNode{}

// Const creates a literal of type t. Vectors take one value per component or a single value to splat.
//
// Parameters:
//   - t: a scalar or vector type
//   - values: the component values
//
// Returns:
//   - *ConstNode: the literal node
func Const(t DataType, values ...float64) *ConstNode {
	return &ConstNode{base: newBase("const"), typ: t, values: values}
}

// FloatConst creates a float literal.
func FloatConst(v float64) *ConstNode {
	return Const(Float, v)
}

// IntConst creates an int literal.
func IntConst(v int) *ConstNode {
	return Const(Int, float64(v))
}

// UintConst creates a uint literal.
func UintConst(v uint32) *ConstNode {
	return Const(Uint, float64(v))
}

// BoolConst creates a bool literal.
func BoolConst(v bool) *ConstNode {
	if v {
		return Const(Bool, 1)
	}
	return Const(Bool, 0)
}

// Vec2Const creates a vec2 literal.
func Vec2Const(x, y float64) *ConstNode {
	return Const(Vec2, x, y)
}

// Vec3Const creates a vec3 literal.
func Vec3Const(x, y, z float64) *ConstNode {
	return Const(Vec3, x, y, z)
}

// Vec4Const creates a vec4 literal.
func Vec4Const(x, y, z, w float64) *ConstNode {
	return Const(Vec4, x, y, z, w)
}

// Color creates an opaque RGB color literal as a vec3.
func Color(r, g, b float64) *ConstNode {
	return Const(Vec3, r, g, b)
}

// Values returns the literal's component values.
func (c *ConstNode) Values() []float64 {
	return c.values
}

func (c *ConstNode) Key() uint64 {
	return c.cachedKey(func() uint64 {
		k := newKeyer(c.kind).u64(uint64(c.typ))
		for _, v := range c.values {
			k.f64(v)
		}
		return k.sum()
	})
}

func (c *ConstNode) Type(Builder) (DataType, error) {
	return c.typ, nil
}

func (c *ConstNode) Setup(b Builder) error {
	if !c.typ.IsScalar() && !c.typ.IsVector() {
		return b.TypeError(c, "literal of type %s is not a scalar or vector", c.typ)
	}
	if len(c.values) != 1 && len(c.values) != c.typ.Components() {
		return b.TypeError(c, "literal of type %s needs 1 or %d values, got %d", c.typ, c.typ.Components(), len(c.values))
	}
	if c.typ.Base() == Half && !b.HasFeature(FeatureShaderF16) {
		return b.Unsupported(c, FeatureShaderF16.String())
	}
	return nil
}

func (c *ConstNode) Generate(b Builder) (string, error) {
	return b.Literal(c.typ, c.values...)
}

func (c *ConstNode) String() string {
	return fmt.Sprintf("%s%v", c.typ, c.values)
}
