package node

import "fmt"

// OperatorNode is a binary infix operation.
type OperatorNode struct {
	base
	op   string
	a, b Node
}

// Operator creates a binary operation. Supported operators are + - * / % for arithmetic, == != < <= > >= for
// scalar comparison, && || for logic and & | ^ << >> for integer bit manipulation.
//
// Parameters:
//   - op: the operator
//   - a: the left operand
//   - b: the right operand
//
// Returns:
//   - *OperatorNode: the operation node
func Operator(op string, a, b Node) *OperatorNode {
	return &OperatorNode{base: newBase("operator"), op: op, a: a, b: b}
}

func Add(a, b Node) *OperatorNode { return Operator("+", a, b) }
func Sub(a, b Node) *OperatorNode { return Operator("-", a, b) }
func Mul(a, b Node) *OperatorNode { return Operator("*", a, b) }
func Div(a, b Node) *OperatorNode { return Operator("/", a, b) }
func Remainder(a, b Node) *OperatorNode { return Operator("%", a, b) }
func Equal(a, b Node) *OperatorNode { return Operator("==", a, b) }
func NotEqual(a, b Node) *OperatorNode { return Operator("!=", a, b) }
func LessThan(a, b Node) *OperatorNode { return Operator("<", a, b) }
func LessEqual(a, b Node) *OperatorNode { return Operator("<=", a, b) }
func GreaterThan(a, b Node) *OperatorNode { return Operator(">", a, b) }
func GreaterEqual(a, b Node) *OperatorNode { return Operator(">=", a, b) }
func And(a, b Node) *OperatorNode { return Operator("&&", a, b) }
func Or(a, b Node) *OperatorNode { return Operator("||", a, b) }
func BitAnd(a, b Node) *OperatorNode { return Operator("&", a, b) }
func BitOr(a, b Node) *OperatorNode { return Operator("|", a, b) }
func BitXor(a, b Node) *OperatorNode { return Operator("^", a, b) }
func ShiftLeft(a, b Node) *OperatorNode { return Operator("<<", a, b) }
func ShiftRight(a, b Node) *OperatorNode { return Operator(">>", a, b) }

// Op returns the operator.
func (o *OperatorNode) Op() string {
	return o.op
}

func (o *OperatorNode) Children() []Node {
	return []Node{o.a, o.b}
}

func (o *OperatorNode) Key() uint64 {
	return o.cachedKey(func() uint64 {
		return newKeyer(o.kind).str(o.op).nodes(o.a, o.b).sum()
	})
}

func (o *OperatorNode) Type(b Builder) (DataType, error) {
	ta, err := b.TypeOf(o.a)
	if err != nil {
		return Void, err
	}
	tb, err := b.TypeOf(o.b)
	if err != nil {
		return Void, err
	}

	switch o.op {
	case "==", "!=", "<", "<=", ">", ">=":
		if !ta.IsScalar() || !tb.IsScalar() {
			return Void, b.TypeError(o, "comparison %s needs scalar operands, got %s and %s", o.op, ta, tb)
		}
		if ta != tb {
			return Void, b.TypeError(o, "comparison %s between %s and %s", o.op, ta, tb)
		}
		if ta == Bool && o.op != "==" && o.op != "!=" {
			return Void, b.TypeError(o, "ordering comparison %s on bool", o.op)
		}
		return Bool, nil

	case "&&", "||":
		if ta != Bool || tb != Bool {
			return Void, b.TypeError(o, "logical %s needs bool operands, got %s and %s", o.op, ta, tb)
		}
		return Bool, nil

	case "&", "|", "^", "<<", ">>":
		if base := ta.Base(); !ta.IsNumeric() || (base != Int && base != Uint) {
			return Void, b.TypeError(o, "bitwise %s needs integer operands, got %s", o.op, ta)
		}
		if o.op == "<<" || o.op == ">>" {
			if tb.Base() != Uint || tb.Components() != ta.Components() {
				return Void, b.TypeError(o, "shift amount must be uint with %d components, got %s", ta.Components(), tb)
			}
			return ta, nil
		}
		if ta != tb {
			return Void, b.TypeError(o, "bitwise %s between %s and %s", o.op, ta, tb)
		}
		return ta, nil

	case "%":
		if !ta.IsNumeric() || ta.IsFloat() {
			return Void, b.TypeError(o, "remainder %% needs integer operands, got %s (use Mod for floats)", ta)
		}
		return arithmeticType(b, o, ta, tb)

	case "+", "-", "/":
		if ta.IsMatrix() || tb.IsMatrix() {
			if ta != tb || o.op == "/" {
				return Void, b.TypeError(o, "%s between %s and %s", o.op, ta, tb)
			}
			return ta, nil
		}
		return arithmeticType(b, o, ta, tb)

	case "*":
		switch {
		case ta.IsMatrix() && tb.IsMatrix():
			if ta != tb {
				return Void, b.TypeError(o, "matrix product of %s and %s", ta, tb)
			}
			return ta, nil
		case ta.IsMatrix() && tb.IsVector(), ta.IsVector() && tb.IsMatrix():
			m, v := ta, tb
			if ta.IsVector() {
				m, v = tb, ta
			}
			if v.Base() != Float || v.Components() != m.Components() {
				return Void, b.TypeError(o, "matrix-vector product of %s and %s", ta, tb)
			}
			return v, nil
		case ta.IsMatrix() || tb.IsMatrix():
			if (ta.IsMatrix() && tb != Float) || (tb.IsMatrix() && ta != Float) {
				return Void, b.TypeError(o, "matrix-scalar product of %s and %s", ta, tb)
			}
			if ta.IsMatrix() {
				return ta, nil
			}
			return tb, nil
		}
		return arithmeticType(b, o, ta, tb)
	}
	return Void, b.TypeError(o, "unknown operator %q", o.op)
}

// arithmeticType allows equal numeric types or a scalar broadcast against a vector of the same base.
func arithmeticType(b Builder, n Node, ta, tb DataType) (DataType, error) {
	if !ta.IsNumeric() || !tb.IsNumeric() {
		return Void, b.TypeError(n, "arithmetic on %s and %s", ta, tb)
	}
	if ta.Base() != tb.Base() {
		return Void, b.TypeError(n, "mixed scalar types %s and %s need an explicit Convert", ta, tb)
	}
	switch {
	case ta == tb:
		return ta, nil
	case ta.IsScalar():
		return tb, nil
	case tb.IsScalar():
		return ta, nil
	}
	return Void, b.TypeError(n, "component count mismatch between %s and %s", ta, tb)
}

func (o *OperatorNode) Setup(b Builder) error {
	_, err := b.TypeOf(o)
	return err
}

func (o *OperatorNode) Generate(b Builder) (string, error) {
	a, err := b.Build(o.a, Void)
	if err != nil {
		return "", err
	}
	c, err := b.Build(o.b, Void)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", a, o.op, c), nil
}

// UnaryNode is a prefix operation: negation, logical not or bitwise complement.
type UnaryNode struct {
	base
	op string
	a  Node
}

// Negate returns -a.
func Negate(a Node) *UnaryNode {
	return &UnaryNode{base: newBase("unary"), op: "-", a: a}
}

// Not returns !a for a bool.
func Not(a Node) *UnaryNode {
	return &UnaryNode{base: newBase("unary"), op: "!", a: a}
}

// BitNot returns ~a for an integer scalar or vector.
func BitNot(a Node) *UnaryNode {
	return &UnaryNode{base: newBase("unary"), op: "~", a: a}
}

func (u *UnaryNode) Children() []Node {
	return []Node{u.a}
}

func (u *UnaryNode) Key() uint64 {
	return u.cachedKey(func() uint64 {
		return newKeyer(u.kind).str(u.op).nodes(u.a).sum()
	})
}

func (u *UnaryNode) Type(b Builder) (DataType, error) {
	t, err := b.TypeOf(u.a)
	if err != nil {
		return Void, err
	}
	switch u.op {
	case "-":
		if !t.IsNumeric() || t.Base() == Uint {
			return Void, b.TypeError(u, "negation of %s", t)
		}
	case "!":
		if t != Bool {
			return Void, b.TypeError(u, "logical not of %s", t)
		}
	case "~":
		if !t.IsNumeric() || t.IsFloat() {
			return Void, b.TypeError(u, "bitwise complement of %s", t)
		}
	}
	return t, nil
}

func (u *UnaryNode) Setup(b Builder) error {
	_, err := b.TypeOf(u)
	return err
}

func (u *UnaryNode) Generate(b Builder) (string, error) {
	a, err := b.Build(u.a, Void)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s%s)", u.op, a), nil
}
