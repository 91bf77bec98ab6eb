package node

// CondNode is an if/else. With value branches it yields the taken branch's value; with statement branches (Void)
// it only emits code.
type CondNode struct {
	base
	cond      Node
	then, els Node
}

// If creates a conditional. els may be nil for a statement-only branch.
//
// Parameters:
//   - cond: a bool condition
//   - then: the value or statement of the taken branch
//   - els: the value or statement otherwise, nil for none
//
// Returns:
//   - *CondNode: the conditional node
func If(cond, then, els Node) *CondNode {
	return &CondNode{base: newBase("cond"), cond: cond, then: then, els: els}
}

func (c *CondNode) Children() []Node {
	return compact(c.cond, c.then, c.els)
}

func (c *CondNode) Key() uint64 {
	return c.cachedKey(func() uint64 {
		return newKeyer(c.kind).nodes(c.cond, c.then, c.els).sum()
	})
}

func (c *CondNode) Type(b Builder) (DataType, error) {
	tt, err := b.TypeOf(c.then)
	if err != nil {
		return Void, err
	}
	if c.els == nil {
		if tt != Void {
			return Void, b.TypeError(c, "an if without else cannot yield a %s", tt)
		}
		return Void, nil
	}
	te, err := b.TypeOf(c.els)
	if err != nil {
		return Void, err
	}
	if tt != te {
		return Void, b.TypeError(c, "branches yield %s and %s", tt, te)
	}
	return tt, nil
}

func (c *CondNode) Setup(b Builder) error {
	ct, err := b.TypeOf(c.cond)
	if err != nil {
		return err
	}
	if ct != Bool {
		return b.TypeError(c, "condition must be bool, got %s", ct)
	}
	_, err = b.TypeOf(c)
	return err
}

func (c *CondNode) Generate(b Builder) (string, error) {
	t, err := b.TypeOf(c)
	if err != nil {
		return "", err
	}
	cond, err := b.Build(c.cond, Bool)
	if err != nil {
		return "", err
	}

	if err := predeclare(b, c.then, c.els); err != nil {
		return "", err
	}
	result := ""
	if t != Void {
		if result, err = b.DeclareVar("nodeCond", t, ""); err != nil {
			return "", err
		}
	}
	branch := func(n Node) error {
		v, err := b.Build(n, t)
		if err != nil {
			return err
		}
		if t != Void {
			b.Line(result + " = " + v)
		}
		return nil
	}

	b.OpenScope("if (" + cond + ")")
	if err := branch(c.then); err != nil {
		return "", err
	}
	b.CloseScope()
	if c.els != nil {
		b.OpenScope("else")
		if err := branch(c.els); err != nil {
			return "", err
		}
		b.CloseScope()
	}
	return result, nil
}

// SelectNode picks between two values without branching.
type SelectNode struct {
	base
	cond, a, b Node
}

// Select returns a when cond is true, otherwise b.
func Select(cond, a, b Node) *SelectNode {
	return &SelectNode{base: newBase("select"), cond: cond, a: a, b: b}
}

func (s *SelectNode) Children() []Node {
	return []Node{s.cond, s.a, s.b}
}

func (s *SelectNode) Key() uint64 {
	return s.cachedKey(func() uint64 {
		return newKeyer(s.kind).nodes(s.cond, s.a, s.b).sum()
	})
}

func (s *SelectNode) Type(b Builder) (DataType, error) {
	ta, err := b.TypeOf(s.a)
	if err != nil {
		return Void, err
	}
	tb, err := b.TypeOf(s.b)
	if err != nil {
		return Void, err
	}
	if ta != tb || ta == Void {
		return Void, b.TypeError(s, "select between %s and %s", ta, tb)
	}
	return ta, nil
}

func (s *SelectNode) Setup(b Builder) error {
	ct, err := b.TypeOf(s.cond)
	if err != nil {
		return err
	}
	if ct != Bool {
		return b.TypeError(s, "condition must be bool, got %s", ct)
	}
	_, err = b.TypeOf(s)
	return err
}

func (s *SelectNode) Generate(b Builder) (string, error) {
	cond, err := b.Build(s.cond, Bool)
	if err != nil {
		return "", err
	}
	a, err := b.Build(s.a, Void)
	if err != nil {
		return "", err
	}
	c, err := b.Build(s.b, Void)
	if err != nil {
		return "", err
	}
	return b.Call("select", cond, a, c)
}

// LoopIndexNode is the counter of the enclosing loop. Its expression is bound by the loop while the body is built.
type LoopIndexNode struct {
	base
}

func (l *LoopIndexNode) Key() uint64 {
	return newKeyer(l.kind).u64(l.id).sum()
}

func (l *LoopIndexNode) Type(Builder) (DataType, error) {
	return Int, nil
}

func (l *LoopIndexNode) Generate(b Builder) (string, error) {
	return "", b.TypeError(l, "loop index used outside its loop")
}

// LoopNode repeats a statement body over an int range.
type LoopNode struct {
	base
	start, end Node
	index      *LoopIndexNode
	body       Node
}

// Loop creates a counting loop over [start, end). body receives the counter node and returns the statement to
// repeat, typically a Block of assignments.
//
// Parameters:
//   - start: the first counter value (int)
//   - end: the exclusive bound (int)
//   - body: builds the repeated statement from the counter
//
// Returns:
//   - *LoopNode: the loop node
func Loop(start, end Node, body func(i Node) Node) *LoopNode {
	idx := &LoopIndexNode{base: newBase("loopIndex")}
	return &LoopNode{base: newBase("loop"), start: start, end: end, index: idx, body: body(idx)}
}

func (l *LoopNode) Children() []Node {
	return []Node{l.start, l.end, l.body}
}

func (l *LoopNode) Key() uint64 {
	return l.cachedKey(func() uint64 {
		return newKeyer(l.kind).u64(l.index.Key()).nodes(l.start, l.end, l.body).sum()
	})
}

func (l *LoopNode) Type(Builder) (DataType, error) {
	return Void, nil
}

func (l *LoopNode) Setup(b Builder) error {
	for _, n := range []Node{l.start, l.end} {
		t, err := b.TypeOf(n)
		if err != nil {
			return err
		}
		if t != Int {
			return b.TypeError(l, "loop bounds must be int, got %s", t)
		}
	}
	return nil
}

func (l *LoopNode) Generate(b Builder) (string, error) {
	start, err := b.Build(l.start, Int)
	if err != nil {
		return "", err
	}
	end, err := b.Build(l.end, Int)
	if err != nil {
		return "", err
	}
	if err := predeclare(b, l.body); err != nil {
		return "", err
	}
	counter := b.UniqueName("i")
	b.OpenScope(b.LoopHeader(counter, start, end))
	b.Bind(l.index, counter)
	if _, err := b.Build(l.body, Void); err != nil {
		return "", err
	}
	b.CloseScope()
	return "", nil
}

// VarNode is a mutable local variable.
type VarNode struct {
	base
	init Node
	name string
}

// Var declares a mutable local initialised from init.
//
// Parameters:
//   - init: the initial value, which also fixes the type
//   - name: the name hint
//
// Returns:
//   - *VarNode: the variable node
func Var(init Node, name string) *VarNode {
	if name == "" {
		name = "nodeVar"
	}
	return &VarNode{base: newBase("var"), init: init, name: name}
}

func (v *VarNode) Children() []Node {
	return []Node{v.init}
}

// Key mixes in the node ID: two variables never share storage.
func (v *VarNode) Key() uint64 {
	return newKeyer(v.kind).u64(v.id).nodes(v.init).sum()
}

func (v *VarNode) Mutable() bool {
	return true
}

func (v *VarNode) Type(b Builder) (DataType, error) {
	return b.TypeOf(v.init)
}

func (v *VarNode) Generate(b Builder) (string, error) {
	t, err := b.TypeOf(v)
	if err != nil {
		return "", err
	}
	init, err := b.Build(v.init, t)
	if err != nil {
		return "", err
	}
	return b.DeclareVar(v.name, t, init)
}

// AssignNode writes a value to a variable or storage element.
type AssignNode struct {
	base
	target Node
	value  Node
}

// Assign creates an assignment statement. target must be a Var or a storage element.
func Assign(target, value Node) *AssignNode {
	return &AssignNode{base: newBase("assign"), target: target, value: value}
}

func (a *AssignNode) Children() []Node {
	return []Node{a.target, a.value}
}

// Key mixes in the node ID: an assignment is an ordered side effect.
func (a *AssignNode) Key() uint64 {
	return newKeyer(a.kind).u64(a.id).nodes(a.target, a.value).sum()
}

func (a *AssignNode) Type(Builder) (DataType, error) {
	return Void, nil
}

func (a *AssignNode) Setup(b Builder) error {
	switch a.target.(type) {
	case *VarNode, *StorageElementNode:
	default:
		return b.TypeError(a, "cannot assign to a %s node", a.target.Kind())
	}
	if se, ok := a.target.(*StorageElementNode); ok && se.buffer.ReadOnly() {
		return b.TypeError(a, "storage buffer %q is read-only", se.buffer.Name())
	}
	return nil
}

func (a *AssignNode) Generate(b Builder) (string, error) {
	tt, err := b.TypeOf(a.target)
	if err != nil {
		return "", err
	}
	target, err := b.Build(a.target, Void)
	if err != nil {
		return "", err
	}
	value, err := b.Build(a.value, tt)
	if err != nil {
		return "", err
	}
	b.Line(target + " = " + value)
	return "", nil
}

// BlockNode runs statements in order and yields the value of result.
type BlockNode struct {
	base
	result     Node
	statements []Node
}

// Block sequences statements before yielding result. result may be nil for a pure statement block.
func Block(result Node, statements ...Node) *BlockNode {
	return &BlockNode{base: newBase("block"), result: result, statements: statements}
}

func (bl *BlockNode) Children() []Node {
	return compact(append(append([]Node{}, bl.statements...), bl.result)...)
}

func (bl *BlockNode) Key() uint64 {
	return bl.cachedKey(func() uint64 {
		return newKeyer(bl.kind).nodes(bl.statements...).nodes(bl.result).sum()
	})
}

func (bl *BlockNode) Type(b Builder) (DataType, error) {
	if bl.result == nil {
		return Void, nil
	}
	return b.TypeOf(bl.result)
}

func (bl *BlockNode) Generate(b Builder) (string, error) {
	for _, s := range bl.statements {
		if _, err := b.Build(s, Void); err != nil {
			return "", err
		}
	}
	if bl.result == nil {
		return "", nil
	}
	return b.Build(bl.result, Void)
}

// DiscardNode drops the current fragment.
type DiscardNode struct {
	base
}

// Discard creates a fragment discard statement, usually wrapped in If.
func Discard() *DiscardNode {
	return &DiscardNode{base: newBase("discard")}
}

func (d *DiscardNode) Key() uint64 {
	return newKeyer(d.kind).sum()
}

func (d *DiscardNode) Type(Builder) (DataType, error) {
	return Void, nil
}

func (d *DiscardNode) Setup(b Builder) error {
	if b.Stage() != StageFragment {
		return b.StageError(d, StageFragment)
	}
	return nil
}

func (d *DiscardNode) Generate(b Builder) (string, error) {
	b.Line("discard")
	return "", nil
}

// predeclare declares the variables assigned inside bodies in the current scope, so they outlive the scope the
// body opens.
func predeclare(b Builder, bodies ...Node) error {
	for _, body := range bodies {
		if body == nil {
			continue
		}
		err := Walk(body, func(n Node) error {
			a, ok := n.(*AssignNode)
			if !ok {
				return nil
			}
			if v, ok := a.target.(*VarNode); ok {
				_, err := b.Build(v, Void)
				return err
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}