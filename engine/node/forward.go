package node

import "sync"

// ForwardNode is a late-bound reference, set after construction. It allows graphs to be declared before their
// inputs exist; a forward reference that ends up pointing at one of its own ancestors is a cycle and fails the
// build.
type ForwardNode struct {
	base
	mu     *sync.Mutex
	name   string
	target Node
}

// Forward creates an unbound reference.
func Forward(name string) *ForwardNode {
	return &ForwardNode{base: newBase("forward"), mu: &sync.Mutex{}, name: name}
}

// Set binds the reference.
func (f *ForwardNode) Set(n Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = n
}

// Target returns the bound node, nil when unbound.
func (f *ForwardNode) Target() Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

func (f *ForwardNode) Children() []Node {
	return compact(f.Target())
}

// Key delegates to the target. It must not be called on a cyclic graph.
func (f *ForwardNode) Key() uint64 {
	return newKeyer(f.kind).nodes(f.Target()).sum()
}

func (f *ForwardNode) Type(b Builder) (DataType, error) {
	t := f.Target()
	if t == nil {
		return Void, b.TypeError(f, "forward reference %q is unbound", f.name)
	}
	return b.TypeOf(t)
}

func (f *ForwardNode) Setup(b Builder) error {
	_, err := f.Type(b)
	return err
}

func (f *ForwardNode) Generate(b Builder) (string, error) {
	return b.Build(f.Target(), Void)
}
