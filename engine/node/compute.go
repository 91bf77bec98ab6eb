package node

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
)

// StorageBufferNode binds a storage attribute as a runtime-sized array of elements.
type StorageBufferNode struct {
	base
	attribute *resource.Attribute
	element   DataType
	readOnly  bool
}

var _ Node = &StorageBufferNode{}

// Storage creates a storage buffer binding over a storage attribute.
//
// Parameters:
//   - attr: the backing attribute; its item size and component type must match element
//   - element: the element type (scalar, vec2 or vec4 of float, int or uint)
//
// Returns:
//   - *StorageBufferNode: the buffer node
func Storage(attr *resource.Attribute, element DataType) *StorageBufferNode {
	return &StorageBufferNode{base: newBase("storage"), attribute: attr, element: element}
}

// ReadOnlyStorage creates a read-only storage binding, which is also readable from the vertex stage under WGSL.
func ReadOnlyStorage(attr *resource.Attribute, element DataType) *StorageBufferNode {
	s := Storage(attr, element)
	s.readOnly = true
	return s
}

// Attribute returns the backing attribute.
func (s *StorageBufferNode) Attribute() *resource.Attribute {
	return s.attribute
}

// Name returns the backing attribute's name.
func (s *StorageBufferNode) Name() string {
	if s.attribute == nil {
		return ""
	}
	return s.attribute.Name()
}

// ReadOnly reports whether shaders may only read the buffer.
func (s *StorageBufferNode) ReadOnly() bool {
	return s.readOnly
}

// ElementType returns the element type.
func (s *StorageBufferNode) ElementType() DataType {
	return s.element
}

// Element returns an accessor of the element at index, usable as a value or as an Assign target.
func (s *StorageBufferNode) Element(index Node) *StorageElementNode {
	return &StorageElementNode{base: newBase("storageElement"), buffer: s, index: index}
}

// Key mixes in the node ID: every storage node owns a binding.
func (s *StorageBufferNode) Key() uint64 {
	ro := uint64(0)
	if s.readOnly {
		ro = 1
	}
	return newKeyer(s.kind).u64(s.id).u64(uint64(s.element)).u64(ro).sum()
}

func (s *StorageBufferNode) Type(Builder) (DataType, error) {
	return s.element, nil
}

func (s *StorageBufferNode) Setup(b Builder) error {
	if s.attribute == nil {
		return b.TypeError(s, "storage node has no attribute bound")
	}
	if !slices.Contains([]DataType{Float, Int, Uint, Vec2, IVec2, UVec2, Vec4, IVec4, UVec4}, s.element) {
		return b.TypeError(s, "storage element type %s is not supported, use a scalar, vec2 or vec4", s.element)
	}
	if s.attribute.ItemSize() != s.element.Components() {
		return b.TypeError(s, "storage %q holds %d components per element, %s needs %d", s.Name(), s.attribute.ItemSize(), s.element, s.element.Components())
	}
	want := map[DataType]resource.ComponentType{Float: resource.ComponentFloat32, Int: resource.ComponentInt32, Uint: resource.ComponentUint32}
	if s.attribute.Component() != want[s.element.Base()] {
		return b.TypeError(s, "storage %q component type does not match %s", s.Name(), s.element)
	}

	switch {
	case b.Stage() == StageCompute:
	case b.Stage() == StageFragment && b.Target() == TargetWGSL:
	case b.Stage() == StageVertex && b.Target() == TargetWGSL && s.readOnly:
	default:
		if b.Target() == TargetGLSL {
			return b.StageError(s, StageCompute)
		}
		return b.TypeError(s, "storage %q must be read-only in the vertex stage", s.Name())
	}
	if !b.HasFeature(FeatureStorageBuffers) {
		return b.Unsupported(s, FeatureStorageBuffers.String())
	}
	_, err := b.StorageBinding(s)
	return err
}

// Generate returns the array identifier. Elements are read through Element.
func (s *StorageBufferNode) Generate(b Builder) (string, error) {
	return b.StorageBinding(s)
}

// StorageElementNode reads or writes one element of a storage buffer.
type StorageElementNode struct {
	base
	buffer *StorageBufferNode
	index  Node
}

var _ Mutable = &StorageElementNode{}

// Buffer returns the indexed buffer.
func (e *StorageElementNode) Buffer() *StorageBufferNode {
	return e.buffer
}

func (e *StorageElementNode) Children() []Node {
	return []Node{e.buffer, e.index}
}

func (e *StorageElementNode) Key() uint64 {
	return e.cachedKey(func() uint64 {
		return newKeyer(e.kind).nodes(e.buffer, e.index).sum()
	})
}

// Mutable reports true for writable buffers: another invocation or an Assign may change the element.
func (e *StorageElementNode) Mutable() bool {
	return !e.buffer.readOnly
}

func (e *StorageElementNode) Type(Builder) (DataType, error) {
	return e.buffer.element, nil
}

func (e *StorageElementNode) Setup(b Builder) error {
	t, err := b.TypeOf(e.index)
	if err != nil {
		return err
	}
	if t != Int && t != Uint {
		return b.TypeError(e, "storage index must be int or uint, got %s", t)
	}
	return nil
}

func (e *StorageElementNode) Generate(b Builder) (string, error) {
	array, err := b.Build(e.buffer, Void)
	if err != nil {
		return "", err
	}
	index, err := b.Build(e.index, Void)
	if err != nil {
		return "", err
	}
	return array + "[" + index + "]", nil
}

// ComputeNode is a compute kernel: a statement body dispatched over count invocations.
type ComputeNode struct {
	base
	body          Node
	count         uint32
	workgroupSize [3]uint32
}

// ComputeOption configures a ComputeNode.
type ComputeOption func(*ComputeNode)

// WithWorkgroupSize sets the workgroup size. The default is 64x1x1.
func WithWorkgroupSize(x, y, z uint32) ComputeOption {
	return func(c *ComputeNode) {
		c.workgroupSize = [3]uint32{max(x, 1), max(y, 1), max(z, 1)}
	}
}

// Compute creates a kernel over count invocations.
//
// Parameters:
//   - body: the statement run by every invocation, typically a Block of Assigns
//   - count: the number of invocations
//   - options: variadic list of ComputeOption functions
//
// Returns:
//   - *ComputeNode: the kernel node
func Compute(body Node, count uint32, options ...ComputeOption) *ComputeNode {
	c := &ComputeNode{base: newBase("compute"), body: body, count: count, workgroupSize: [3]uint32{64, 1, 1}}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Count returns the number of invocations.
func (c *ComputeNode) Count() uint32 {
	return c.count
}

// WorkgroupSize returns the workgroup dimensions.
func (c *ComputeNode) WorkgroupSize() [3]uint32 {
	return c.workgroupSize
}

// DispatchSize returns the workgroup counts needed to cover Count invocations along x.
func (c *ComputeNode) DispatchSize() [3]uint32 {
	per := c.workgroupSize[0] * c.workgroupSize[1] * c.workgroupSize[2]
	return [3]uint32{(c.count + per - 1) / per, 1, 1}
}

// Body returns the kernel body.
func (c *ComputeNode) Body() Node {
	return c.body
}

func (c *ComputeNode) Children() []Node {
	return []Node{c.body}
}

func (c *ComputeNode) Key() uint64 {
	return c.cachedKey(func() uint64 {
		ws := c.workgroupSize
		return newKeyer(c.kind).u64(uint64(ws[0])).u64(uint64(ws[1])).u64(uint64(ws[2])).nodes(c.body).sum()
	})
}

func (c *ComputeNode) Type(Builder) (DataType, error) {
	return Void, nil
}

func (c *ComputeNode) Setup(b Builder) error {
	if b.Stage() != StageCompute {
		return b.StageError(c, StageCompute)
	}
	if b.Target() == TargetGLSL && !b.HasFeature(FeatureComputeShaders) {
		return b.Unsupported(c, FeatureComputeShaders.String())
	}
	return nil
}

func (c *ComputeNode) Generate(b Builder) (string, error) {
	if err := predeclare(b, c.body); err != nil {
		return "", err
	}
	_, err := b.Build(c.body, Void)
	return "", err
}

// InvocationIndex is the flat index of the current compute invocation.
var InvocationIndex = Swizzle(GlobalInvocationID, "x")

var subgroupOps = map[string]bool{
	"subgroupAdd":            false,
	"subgroupMul":            false,
	"subgroupMin":            false,
	"subgroupMax":            false,
	"subgroupAnd":            true,
	"subgroupOr":             true,
	"subgroupXor":            true,
	"subgroupBroadcastFirst": false,
}

// SubgroupNode is a reduction or broadcast across the invocations of a subgroup.
type SubgroupNode struct {
	base
	op string
	a  Node
}

// Subgroup creates a subgroup operation. op is one of subgroupAdd, subgroupMul, subgroupMin, subgroupMax,
// subgroupAnd, subgroupOr, subgroupXor or subgroupBroadcastFirst.
func Subgroup(op string, a Node) *SubgroupNode {
	return &SubgroupNode{base: newBase("subgroup"), op: op, a: a}
}

func SubgroupAdd(a Node) *SubgroupNode { return Subgroup("subgroupAdd", a) }
func SubgroupMax(a Node) *SubgroupNode { return Subgroup("subgroupMax", a) }
func SubgroupMin(a Node) *SubgroupNode { return Subgroup("subgroupMin", a) }

func (s *SubgroupNode) Children() []Node {
	return []Node{s.a}
}

func (s *SubgroupNode) Key() uint64 {
	return s.cachedKey(func() uint64 {
		return newKeyer(s.kind).str(s.op).nodes(s.a).sum()
	})
}

// Subgroup results differ per invocation set, never hoist them out of a scope.
func (s *SubgroupNode) Mutable() bool {
	return true
}

func (s *SubgroupNode) Type(b Builder) (DataType, error) {
	t, err := b.TypeOf(s.a)
	if err != nil {
		return Void, err
	}
	bitwise, ok := subgroupOps[s.op]
	if !ok {
		return Void, b.TypeError(s, "unknown subgroup operation %q", s.op)
	}
	if !t.IsScalar() && !t.IsVector() || !t.IsNumeric() {
		return Void, b.TypeError(s, "%s of %s", s.op, t)
	}
	if bitwise && t.Base() != Int && t.Base() != Uint {
		return Void, b.TypeError(s, "%s needs an integer operand, got %s", s.op, t)
	}
	return t, nil
}

func (s *SubgroupNode) Setup(b Builder) error {
	if b.Stage() == StageVertex {
		return b.StageError(s, StageCompute, StageFragment)
	}
	if b.Target() != TargetWGSL || !b.HasFeature(FeatureSubgroups) {
		return b.Unsupported(s, FeatureSubgroups.String())
	}
	_, err := b.TypeOf(s)
	return err
}

func (s *SubgroupNode) Generate(b Builder) (string, error) {
	t, err := b.TypeOf(s)
	if err != nil {
		return "", err
	}
	expr, err := b.Build(s.a, Void)
	if err != nil {
		return "", err
	}
	return b.Subgroup(s.op, expr, t)
}

// BarrierNode synchronises the invocations of a workgroup.
type BarrierNode struct {
	base
	scope string
}

// WorkgroupBarrier waits for all invocations of the workgroup and makes their workgroup memory writes visible.
func WorkgroupBarrier() *BarrierNode {
	return &BarrierNode{base: newBase("barrier"), scope: "workgroupBarrier"}
}

// StorageBarrier makes storage buffer writes of the workgroup visible.
func StorageBarrier() *BarrierNode {
	return &BarrierNode{base: newBase("barrier"), scope: "storageBarrier"}
}

// Key mixes in the node ID: a barrier is an ordered side effect.
func (n *BarrierNode) Key() uint64 {
	return newKeyer(n.kind).u64(n.id).str(n.scope).sum()
}

func (n *BarrierNode) Type(Builder) (DataType, error) {
	return Void, nil
}

func (n *BarrierNode) Setup(b Builder) error {
	if b.Stage() != StageCompute {
		return b.StageError(n, StageCompute)
	}
	return nil
}

func (n *BarrierNode) Generate(b Builder) (string, error) {
	call, err := b.Call(n.scope)
	if err != nil {
		return "", err
	}
	b.Line(call)
	return "", nil
}
