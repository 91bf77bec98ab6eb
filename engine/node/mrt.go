package node

import (
	"maps"
	"slices"
)

// MRTNode routes named fragment outputs to the attachments of a multiple render target. Names match the
// attachment names of the render target being drawn into; "output" is the default color output.
type MRTNode struct {
	base
	outputs map[string]Node
}

// MRT creates a multiple render target output.
//
// Parameters:
//   - outputs: the attachment name to value map, for example {"output": color, "normal": normalView}
//
// Returns:
//   - *MRTNode: the MRT node
func MRT(outputs map[string]Node) *MRTNode {
	return &MRTNode{base: newBase("mrt"), outputs: maps.Clone(outputs)}
}

// Names returns the output names in sorted order.
func (m *MRTNode) Names() []string {
	return slices.Sorted(maps.Keys(m.outputs))
}

// Output returns the node of the named output.
func (m *MRTNode) Output(name string) (Node, bool) {
	n, ok := m.outputs[name]
	return n, ok
}

// Merge returns a new MRT node with the outputs of other added, other winning on conflicts.
func (m *MRTNode) Merge(other *MRTNode) *MRTNode {
	out := maps.Clone(m.outputs)
	maps.Copy(out, other.outputs)
	return MRT(out)
}

func (m *MRTNode) Children() []Node {
	out := make([]Node, 0, len(m.outputs))
	for _, name := range m.Names() {
		out = append(out, m.outputs[name])
	}
	return out
}

func (m *MRTNode) Key() uint64 {
	return m.cachedKey(func() uint64 {
		k := newKeyer(m.kind)
		for _, name := range m.Names() {
			k.str(name).nodes(m.outputs[name])
		}
		return k.sum()
	})
}

func (m *MRTNode) Type(Builder) (DataType, error) {
	return Void, nil
}

func (m *MRTNode) Setup(b Builder) error {
	if b.Stage() != StageFragment {
		return b.StageError(m, StageFragment)
	}
	if len(m.outputs) == 0 {
		return b.TypeError(m, "mrt has no outputs")
	}
	for _, name := range m.Names() {
		t, err := b.TypeOf(m.outputs[name])
		if err != nil {
			return err
		}
		if !t.IsScalar() && !t.IsVector() || t == Bool {
			return b.TypeError(m, "mrt output %q of type %s is not a color", name, t)
		}
	}
	return nil
}

// Generate fails: the builder writes each output to its attachment location directly.
func (m *MRTNode) Generate(b Builder) (string, error) {
	return "", b.TypeError(m, "mrt node used as a value")
}
