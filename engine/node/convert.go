package node

import (
	"fmt"
	"strings"
)

// ConvertNode is an explicit type conversion. Unlike implicit conversions it may narrow: vectors lose trailing
// components and floats truncate toward zero when converted to integers.
type ConvertNode struct {
	base
	a  Node
	to DataType
}

// Convert creates an explicit conversion of a to type to.
func Convert(a Node, to DataType) *ConvertNode {
	return &ConvertNode{base: newBase("convert"), a: a, to: to}
}

func (c *ConvertNode) Children() []Node {
	return []Node{c.a}
}

func (c *ConvertNode) Key() uint64 {
	return c.cachedKey(func() uint64 {
		return newKeyer(c.kind).u64(uint64(c.to)).nodes(c.a).sum()
	})
}

func (c *ConvertNode) Type(b Builder) (DataType, error) {
	from, err := b.TypeOf(c.a)
	if err != nil {
		return Void, err
	}
	if !from.IsNumeric() && from != Bool || !c.to.IsNumeric() && c.to != Bool {
		return Void, b.TypeError(c, "cannot convert %s to %s", from, c.to)
	}
	return c.to, nil
}

func (c *ConvertNode) Setup(b Builder) error {
	_, err := b.TypeOf(c)
	return err
}

func (c *ConvertNode) Generate(b Builder) (string, error) {
	from, err := b.TypeOf(c.a)
	if err != nil {
		return "", err
	}
	expr, err := b.Build(c.a, Void)
	if err != nil {
		return "", err
	}
	if from == c.to {
		return expr, nil
	}

	fn, tn := from.Components(), c.to.Components()
	switch {
	case fn > tn:
		expr = fmt.Sprintf("%s.%s", expr, "xyzw"[:tn])
		from = VectorOf(from.Base(), tn)
	case fn < tn && fn > 1:
		// widen with zeros, w defaults to one
		pad := make([]string, 0, tn-fn+1)
		pad = append(pad, expr)
		zero, err := b.Literal(from.Base(), 0)
		if err != nil {
			return "", err
		}
		one, err := b.Literal(from.Base(), 1)
		if err != nil {
			return "", err
		}
		for i := fn; i < tn; i++ {
			if i == 3 {
				pad = append(pad, one)
			} else {
				pad = append(pad, zero)
			}
		}
		if expr, err = b.Construct(VectorOf(from.Base(), tn), pad...); err != nil {
			return "", err
		}
		from = VectorOf(from.Base(), tn)
	}
	if from == c.to {
		return expr, nil
	}
	return b.Cast(expr, from, c.to)
}

// SwizzleNode selects and reorders vector components.
type SwizzleNode struct {
	base
	a          Node
	components string
}

// Swizzle selects components of a by letters from xyzw or rgba, for example "xy" or "bgr".
//
// Parameters:
//   - a: the source vector
//   - components: one to four component letters
//
// Returns:
//   - *SwizzleNode: the selection node
func Swizzle(a Node, components string) *SwizzleNode {
	return &SwizzleNode{base: newBase("swizzle"), a: a, components: components}
}

func (s *SwizzleNode) Children() []Node {
	return []Node{s.a}
}

func (s *SwizzleNode) Key() uint64 {
	return s.cachedKey(func() uint64 {
		return newKeyer(s.kind).str(s.normalized()).nodes(s.a).sum()
	})
}

// normalized rewrites rgba letters to xyzw.
func (s *SwizzleNode) normalized() string {
	return strings.NewReplacer("r", "x", "g", "y", "b", "z", "a", "w").Replace(s.components)
}

func (s *SwizzleNode) Type(b Builder) (DataType, error) {
	from, err := b.TypeOf(s.a)
	if err != nil {
		return Void, err
	}
	if !from.IsScalar() && !from.IsVector() {
		return Void, b.TypeError(s, "swizzle of %s", from)
	}
	comps := s.normalized()
	if len(comps) < 1 || len(comps) > 4 {
		return Void, b.TypeError(s, "swizzle %q must select 1 to 4 components", s.components)
	}
	for _, c := range comps {
		i := strings.IndexRune("xyzw", c)
		if i < 0 || i >= from.Components() {
			return Void, b.TypeError(s, "swizzle %q reads past the %d components of %s", s.components, from.Components(), from)
		}
	}
	return VectorOf(from.Base(), len(comps)), nil
}

func (s *SwizzleNode) Setup(b Builder) error {
	_, err := b.TypeOf(s)
	return err
}

func (s *SwizzleNode) Generate(b Builder) (string, error) {
	from, err := b.TypeOf(s.a)
	if err != nil {
		return "", err
	}
	t, err := b.TypeOf(s)
	if err != nil {
		return "", err
	}
	expr, err := b.Build(s.a, Void)
	if err != nil {
		return "", err
	}
	if from.IsScalar() {
		// scalars cannot be swizzled, x only repeats the value
		if t.IsScalar() {
			return expr, nil
		}
		return b.Cast(expr, from, t)
	}
	return fmt.Sprintf("%s.%s", expr, s.normalized()), nil
}

// JoinNode builds a vector from scalars and smaller vectors of a common base type.
type JoinNode struct {
	base
	parts []Node
}

// Join concatenates the components of parts into one vector.
func Join(parts ...Node) *JoinNode {
	return &JoinNode{base: newBase("join"), parts: parts}
}

func Vector2(x, y Node) *JoinNode { return Join(x, y) }
func Vector3(x, y, z Node) *JoinNode { return Join(x, y, z) }
func Vector4(x, y, z, w Node) *JoinNode { return Join(x, y, z, w) }

func (j *JoinNode) Children() []Node {
	return j.parts
}

func (j *JoinNode) Key() uint64 {
	return j.cachedKey(func() uint64 {
		return newKeyer(j.kind).nodes(j.parts...).sum()
	})
}

func (j *JoinNode) Type(b Builder) (DataType, error) {
	count := 0
	baseType := Void
	for _, p := range j.parts {
		t, err := b.TypeOf(p)
		if err != nil {
			return Void, err
		}
		if !t.IsScalar() && !t.IsVector() {
			return Void, b.TypeError(j, "cannot join %s", t)
		}
		if baseType == Void {
			baseType = t.Base()
		} else if t.Base() != baseType {
			return Void, b.TypeError(j, "join mixes %s and %s components", baseType, t.Base())
		}
		count += t.Components()
	}
	out := VectorOf(baseType, count)
	if count < 2 || out == Void {
		return Void, b.TypeError(j, "join of %d %s components has no vector type", count, baseType)
	}
	return out, nil
}

func (j *JoinNode) Setup(b Builder) error {
	_, err := b.TypeOf(j)
	return err
}

func (j *JoinNode) Generate(b Builder) (string, error) {
	t, err := b.TypeOf(j)
	if err != nil {
		return "", err
	}
	args := make([]string, len(j.parts))
	for i, p := range j.parts {
		if args[i], err = b.Build(p, Void); err != nil {
			return "", err
		}
	}
	return b.Construct(t, args...)
}

// BitcastNode reinterprets the bits of a 32-bit scalar or vector as another 32-bit type.
type BitcastNode struct {
	base
	a  Node
	to DataType
}

// Bitcast creates a bit reinterpretation of a as type to.
func Bitcast(a Node, to DataType) *BitcastNode {
	return &BitcastNode{base: newBase("bitcast"), a: a, to: to}
}

func (c *BitcastNode) Children() []Node {
	return []Node{c.a}
}

func (c *BitcastNode) Key() uint64 {
	return c.cachedKey(func() uint64 {
		return newKeyer(c.kind).u64(uint64(c.to)).nodes(c.a).sum()
	})
}

func (c *BitcastNode) Type(b Builder) (DataType, error) {
	from, err := b.TypeOf(c.a)
	if err != nil {
		return Void, err
	}
	is32 := func(t DataType) bool {
		base := t.Base()
		return t.IsNumeric() && (base == Float || base == Int || base == Uint)
	}
	if !is32(from) || !is32(c.to) || from.Components() != c.to.Components() {
		return Void, b.TypeError(c, "bitcast from %s to %s needs 32-bit types of equal width", from, c.to)
	}
	return c.to, nil
}

func (c *BitcastNode) Setup(b Builder) error {
	_, err := b.TypeOf(c)
	return err
}

func (c *BitcastNode) Generate(b Builder) (string, error) {
	from, err := b.TypeOf(c.a)
	if err != nil {
		return "", err
	}
	expr, err := b.Build(c.a, Void)
	if err != nil {
		return "", err
	}
	if from == c.to {
		return expr, nil
	}
	return b.Bitcast(expr, from, c.to)
}
