package node

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// UniformGroup is the bind group a uniform lives in. Groups are laid out in this order.
type UniformGroup int

const (
	// GroupRender holds per-render and per-frame values such as camera matrices and time.
	GroupRender UniformGroup = iota

	// GroupObject holds per-object values such as the model matrix.
	GroupObject

	// GroupMaterial holds material values set by application code.
	GroupMaterial
)

func (g UniformGroup) String() string {
	return [...]string{"render", "object", "material"}[g]
}

// GroupFor maps an update type to the group its uniforms are packed into.
func GroupFor(u UpdateType) UniformGroup {
	switch u {
	case UpdateObject:
		return GroupObject
	case UpdateFrame, UpdateRender:
		return GroupRender
	}
	return GroupMaterial
}

// UniformNode is a named runtime value. Changing its value never triggers a recompile; the value is re-packed
// into its group's buffer before the next draw.
type UniformNode struct {
	base
	mu *sync.Mutex

	name       string
	typ        DataType
	updateType UpdateType
	value      any
	version    uint64
	onUpdate   func(f *Frame) (any, bool)
}

var _ Updater = &UniformNode{}

// UniformOption configures a UniformNode.
type UniformOption func(*UniformNode)

// WithUpdate sets the update classification and the function that refreshes the value. The function returns false
// when it has no value for the current frame, leaving the previous value in place.
//
// Parameters:
//   - updateType: how often fn runs
//   - fn: the refresh function
//
// Returns:
//   - UniformOption: a function that applies the update option to a uniform
func WithUpdate(updateType UpdateType, fn func(f *Frame) (any, bool)) UniformOption {
	return func(u *UniformNode) {
		u.updateType = updateType
		u.onUpdate = fn
	}
}

// Uniform creates a uniform of type t with an initial value.
//
// Parameters:
//   - name: the name hint used in generated code
//   - t: a scalar, vector or matrix type
//   - value: the initial value (float32, int32, uint32, bool, [N]float32, common.Mat3 or common.Mat4)
//   - options: variadic list of UniformOption functions
//
// Returns:
//   - *UniformNode: the uniform node
func Uniform(name string, t DataType, value any, options ...UniformOption) *UniformNode {
	u := &UniformNode{
		base:    newBase("uniform"),
		mu:      &sync.Mutex{},
		name:    name,
		typ:     t,
		value:   value,
		version: 1,
	}
	for _, opt := range options {
		opt(u)
	}
	return u
}

// Name returns the name hint.
func (u *UniformNode) Name() string {
	return u.name
}

// Group returns the bind group the uniform is packed into.
func (u *UniformNode) Group() UniformGroup {
	return GroupFor(u.updateType)
}

func (u *UniformNode) UpdateType() UpdateType {
	return u.updateType
}

// Value returns the current value.
func (u *UniformNode) Value() any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.value
}

// SetValue replaces the value and bumps the value version. The program is unaffected.
func (u *UniformNode) SetValue(v any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.value = v
	u.version++
}

// Version returns the value version.
func (u *UniformNode) Version() uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.version
}

func (u *UniformNode) Update(f *Frame) error {
	if u.onUpdate == nil {
		return nil
	}
	if v, ok := u.onUpdate(f); ok {
		u.SetValue(v)
	}
	return nil
}

// Key mixes the node ID in: every uniform node owns its own slot.
func (u *UniformNode) Key() uint64 {
	return newKeyer(u.kind).u64(u.id).u64(uint64(u.typ)).sum()
}

func (u *UniformNode) Type(Builder) (DataType, error) {
	return u.typ, nil
}

func (u *UniformNode) Setup(b Builder) error {
	if !u.typ.IsScalar() && !u.typ.IsVector() && !u.typ.IsMatrix() {
		return b.TypeError(u, "uniform %q of type %s is not a scalar, vector or matrix", u.name, u.typ)
	}
	if u.typ == Bool {
		return b.TypeError(u, "uniform %q: bool uniforms are not host-shareable, use uint", u.name)
	}
	if u.typ == Mat2 {
		// column padding differs between WGSL and std140
		return b.TypeError(u, "uniform %q: mat2 uniforms are not supported, use a vec4", u.name)
	}
	if u.typ.Base() == Half {
		return b.TypeError(u, "uniform %q: half uniforms are not supported", u.name)
	}
	_, err := b.Uniform(u)
	return err
}

func (u *UniformNode) Generate(b Builder) (string, error) {
	return b.Uniform(u)
}

// Pack writes the value into buf at offset using std140 layout. Matrix columns are padded to 16 bytes.
//
// Parameters:
//   - buf: the destination buffer
//   - offset: the member offset
//
// Returns:
//   - error: an error if the value does not match the uniform type
func (u *UniformNode) Pack(buf []byte, offset uint32) error {
	v := u.Value()
	switch val := v.(type) {
	case float32:
		common.PutFloat32s(buf, offset, val)
	case float64:
		common.PutFloat32s(buf, offset, float32(val))
	case int32:
		common.PutUint32s(buf, offset, uint32(val))
	case int:
		common.PutUint32s(buf, offset, uint32(int32(val)))
	case uint32:
		common.PutUint32s(buf, offset, val)
	case [2]float32:
		common.PutFloat32s(buf, offset, val[:]...)
	case [3]float32:
		common.PutFloat32s(buf, offset, val[:]...)
	case [4]float32:
		common.PutFloat32s(buf, offset, val[:]...)
	case common.Mat3:
		common.PutColumns(buf, offset, 3, val[:])
	case common.Mat4:
		common.PutFloat32s(buf, offset, val[:]...)
	case nil:
	default:
		return fmt.Errorf("uniform %q: cannot pack value of type %T as %s", u.name, v, u.typ)
	}
	return nil
}
