package node

import (
	"fmt"
	"slices"
)

// mathRule describes the signature of a built-in function.
type mathRule int

const (
	// ruleSame: every argument has the first argument's float type, the result too
	ruleSame mathRule = iota
	// ruleSameNumeric: like ruleSame but ints are accepted
	ruleSameNumeric
	// ruleSameOrScalar: trailing arguments may be a scalar of the first argument's base
	ruleSameOrScalar
	// ruleReduce: float vector arguments of equal type, float result
	ruleReduce
	// ruleVec3: float vec3 arguments, vec3 result
	ruleVec3
	// ruleMatrix: one matrix argument
	ruleMatrix
)

var mathFunctions = map[string]struct {
	arity int
	rule  mathRule
}{
	"abs": {1, ruleSameNumeric}, "sign": {1, ruleSameNumeric},
	"floor": {1, ruleSame}, "ceil": {1, ruleSame}, "fract": {1, ruleSame}, "round": {1, ruleSame}, "trunc": {1, ruleSame},
	"sqrt": {1, ruleSame}, "inversesqrt": {1, ruleSame}, "exp": {1, ruleSame}, "exp2": {1, ruleSame},
	"log": {1, ruleSame}, "log2": {1, ruleSame},
	"sin": {1, ruleSame}, "cos": {1, ruleSame}, "tan": {1, ruleSame},
	"asin": {1, ruleSame}, "acos": {1, ruleSame}, "atan": {1, ruleSame},
	"radians": {1, ruleSame}, "degrees": {1, ruleSame}, "saturate": {1, ruleSame}, "oneMinus": {1, ruleSame},
	"normalize": {1, ruleSame},
	"dFdx": {1, ruleSame}, "dFdy": {1, ruleSame}, "fwidth": {1, ruleSame},
	"length": {1, ruleReduce},
	"distance": {2, ruleReduce}, "dot": {2, ruleReduce},
	"cross": {2, ruleVec3},
	"reflect": {2, ruleSame}, "atan2": {2, ruleSame}, "pow": {2, ruleSame},
	"min": {2, ruleSameOrScalar}, "max": {2, ruleSameOrScalar}, "mod": {2, ruleSameOrScalar},
	"step": {2, ruleSameOrScalar},
	"mix": {3, ruleSameOrScalar}, "clamp": {3, ruleSameOrScalar}, "smoothstep": {3, ruleSameOrScalar},
	"refract": {3, ruleSameOrScalar}, "faceforward": {3, ruleSame},
	"transpose": {1, ruleMatrix}, "determinant": {1, ruleMatrix},
}

// MathArity returns the argument count of a built-in function, false when fn is not one.
func MathArity(fn string) (int, bool) {
	f, ok := mathFunctions[fn]
	return f.arity, ok
}

// fragmentOnly lists the functions that need screen-space derivatives.
var fragmentOnly = []string{"dFdx", "dFdy", "fwidth"}

// MathNode is a built-in function call.
type MathNode struct {
	base
	fn   string
	args []Node
}

// Math creates a built-in function call by canonical name. The argument count and types are checked at build time.
//
// Parameters:
//   - fn: the function name, for example "dot" or "smoothstep"
//   - args: the arguments
//
// Returns:
//   - *MathNode: the call node
func Math(fn string, args ...Node) *MathNode {
	return &MathNode{base: newBase("math"), fn: fn, args: args}
}

func Abs(a Node) *MathNode { return Math("abs", a) }
func Floor(a Node) *MathNode { return Math("floor", a) }
func Fract(a Node) *MathNode { return Math("fract", a) }
func Sqrt(a Node) *MathNode { return Math("sqrt", a) }
func Sin(a Node) *MathNode { return Math("sin", a) }
func Cos(a Node) *MathNode { return Math("cos", a) }
func Normalize(a Node) *MathNode { return Math("normalize", a) }
func Saturate(a Node) *MathNode { return Math("saturate", a) }
func OneMinus(a Node) *MathNode { return Math("oneMinus", a) }
func Length(a Node) *MathNode { return Math("length", a) }
func Dot(a, b Node) *MathNode { return Math("dot", a, b) }
func Cross(a, b Node) *MathNode { return Math("cross", a, b) }
func Pow(a, b Node) *MathNode { return Math("pow", a, b) }
func Min(a, b Node) *MathNode { return Math("min", a, b) }
func Max(a, b Node) *MathNode { return Math("max", a, b) }
func Mod(a, b Node) *MathNode { return Math("mod", a, b) }
func Step(edge, x Node) *MathNode { return Math("step", edge, x) }
func Mix(a, b, t Node) *MathNode { return Math("mix", a, b, t) }
func Clamp(x, lo, hi Node) *MathNode { return Math("clamp", x, lo, hi) }
func Smoothstep(e0, e1, x Node) *MathNode { return Math("smoothstep", e0, e1, x) }
func Transpose(m Node) *MathNode { return Math("transpose", m) }
func DFdx(a Node) *MathNode { return Math("dFdx", a) }
func DFdy(a Node) *MathNode { return Math("dFdy", a) }
func Fwidth(a Node) *MathNode { return Math("fwidth", a) }

// Fn returns the canonical function name.
func (m *MathNode) Fn() string {
	return m.fn
}

func (m *MathNode) Children() []Node {
	return m.args
}

func (m *MathNode) Key() uint64 {
	return m.cachedKey(func() uint64 {
		return newKeyer(m.kind).str(m.fn).nodes(m.args...).sum()
	})
}

func (m *MathNode) Type(b Builder) (DataType, error) {
	sig, ok := mathFunctions[m.fn]
	if !ok {
		return Void, b.TypeError(m, "unknown function %q", m.fn)
	}
	if len(m.args) != sig.arity {
		return Void, b.TypeError(m, "%s takes %d arguments, got %d", m.fn, sig.arity, len(m.args))
	}
	types := make([]DataType, len(m.args))
	for i, a := range m.args {
		t, err := b.TypeOf(a)
		if err != nil {
			return Void, err
		}
		types[i] = t
	}
	first := types[0]

	switch sig.rule {
	case ruleMatrix:
		if !first.IsMatrix() {
			return Void, b.TypeError(m, "%s needs a matrix, got %s", m.fn, first)
		}
		if m.fn == "determinant" {
			return Float, nil
		}
		return first, nil

	case ruleReduce:
		if !first.IsFloat() || (!first.IsVector() && m.fn == "dot") {
			return Void, b.TypeError(m, "%s needs float vectors, got %s", m.fn, first)
		}
		for _, t := range types[1:] {
			if t != first {
				return Void, b.TypeError(m, "%s arguments %s and %s differ", m.fn, first, t)
			}
		}
		return first.Base(), nil

	case ruleVec3:
		if first != Vec3 || types[1] != Vec3 {
			return Void, b.TypeError(m, "%s needs vec3 arguments, got %s and %s", m.fn, first, types[1])
		}
		return Vec3, nil
	}

	if sig.rule == ruleSameNumeric {
		if !first.IsNumeric() || first.Base() == Uint && m.fn == "sign" {
			return Void, b.TypeError(m, "%s needs a signed numeric argument, got %s", m.fn, first)
		}
		return first, nil
	}

	result := first
	// step(edge, x) and mix-style calls may lead with a scalar
	if m.fn == "step" || m.fn == "smoothstep" {
		result = types[len(types)-1]
	}
	if !result.IsFloat() {
		return Void, b.TypeError(m, "%s needs float arguments, got %s", m.fn, result)
	}
	if m.fn == "normalize" && !result.IsVector() {
		return Void, b.TypeError(m, "normalize needs a vector, got %s", result)
	}
	for i, t := range types {
		if t == result {
			continue
		}
		scalarOK := sig.rule == ruleSameOrScalar && t == result.Base()
		if m.fn == "refract" && i == 2 {
			scalarOK = t == result.Base()
		}
		if !scalarOK {
			return Void, b.TypeError(m, "%s argument %d is %s, want %s", m.fn, i, t, result)
		}
	}
	if m.fn == "refract" && types[2] != result.Base() {
		return Void, b.TypeError(m, "refract eta must be a scalar, got %s", types[2])
	}
	return result, nil
}

func (m *MathNode) Setup(b Builder) error {
	if slices.Contains(fragmentOnly, m.fn) && b.Stage() != StageFragment {
		return b.StageError(m, StageFragment)
	}
	_, err := b.TypeOf(m)
	return err
}

func (m *MathNode) Generate(b Builder) (string, error) {
	t, err := b.TypeOf(m)
	if err != nil {
		return "", err
	}
	args := make([]string, len(m.args))
	for i, a := range m.args {
		at, err := b.TypeOf(a)
		if err != nil {
			return "", err
		}
		out := Void
		// splat scalar operands where the target has no scalar overload
		if at.IsScalar() && t.IsVector() && m.fn != "refract" && m.fn != "dot" && m.fn != "length" {
			out = t
		}
		if args[i], err = b.Build(a, out); err != nil {
			return "", err
		}
	}
	expr, err := b.Call(m.fn, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.fn, err)
	}
	return expr, nil
}
