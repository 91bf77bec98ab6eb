package resource

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/gogpu/gputypes"
)

// AttributeKind is the GPU buffer role of an Attribute.
type AttributeKind int

const (
	// AttributeVertex is per-vertex data bound as a vertex buffer.
	AttributeVertex AttributeKind = iota

	// AttributeInstanced is per-instance data bound as a vertex buffer with instance step mode.
	AttributeInstanced

	// AttributeIndex is an index buffer.
	AttributeIndex

	// AttributeStorage is a read/write storage buffer, typically written by compute.
	AttributeStorage
)

// ComponentType is the scalar type of each attribute component.
type ComponentType int

const (
	ComponentFloat32 ComponentType = iota
	ComponentUint32
	ComponentInt32
	ComponentUint16
)

// Size returns the component size in bytes.
func (c ComponentType) Size() int {
	if c == ComponentUint16 {
		return 2
	}
	return 4
}

// Attribute is a typed array of vertex, index or storage data with a version bumped on every mutation.
// The zero value is not usable, create attributes with NewAttribute or one of its typed helpers.
type Attribute struct {
	mu *sync.Mutex

	id        uint64
	name      string
	kind      AttributeKind
	component ComponentType
	itemSize  int
	data      []byte
	version   uint64

	// updateRanges are byte ranges changed since the last upload; empty means a full upload
	updateRanges [][2]int

	events *disposer[*Attribute]
}

// NewAttribute creates an attribute over raw bytes.
//
// Parameters:
//   - name: the attribute name, for example "position"
//   - kind: the buffer role
//   - component: the scalar component type
//   - itemSize: the number of components per element (1..4, 16 for mat4 instance data)
//   - data: the packed little-endian data
//
// Returns:
//   - *Attribute: the new attribute
func NewAttribute(name string, kind AttributeKind, component ComponentType, itemSize int, data []byte) *Attribute {
	return &Attribute{
		mu:        &sync.Mutex{},
		id:        NextID(),
		name:      name,
		kind:      kind,
		component: component,
		itemSize:  max(itemSize, 1),
		data:      data,
		version:   1,
		events:    &disposer[*Attribute]{},
	}
}

// NewFloat32Attribute creates a float vertex attribute.
//
// Parameters:
//   - name: the attribute name
//   - itemSize: the number of floats per vertex
//   - values: the packed values
//
// Returns:
//   - *Attribute: the new attribute
func NewFloat32Attribute(name string, itemSize int, values []float32) *Attribute {
	return NewAttribute(name, AttributeVertex, ComponentFloat32, itemSize, common.SliceToBytes(values))
}

// NewIndexAttribute creates a 32-bit index buffer.
func NewIndexAttribute(indices []uint32) *Attribute {
	return NewAttribute("index", AttributeIndex, ComponentUint32, 1, common.SliceToBytes(indices))
}

// NewStorageAttribute creates a zeroed storage buffer of count elements with itemSize float components each.
//
// Parameters:
//   - name: the buffer name
//   - itemSize: the number of components per element
//   - count: the number of elements
//
// Returns:
//   - *Attribute: the new attribute
func NewStorageAttribute(name string, itemSize, count int) *Attribute {
	return NewAttribute(name, AttributeStorage, ComponentFloat32, itemSize, make([]byte, itemSize*count*4))
}

func (a *Attribute) ID() uint64 {
	return a.id
}

func (a *Attribute) Name() string {
	return a.name
}

func (a *Attribute) Kind() AttributeKind {
	return a.kind
}

func (a *Attribute) Component() ComponentType {
	return a.component
}

func (a *Attribute) ItemSize() int {
	return a.itemSize
}

// Stride returns the byte size of one element.
func (a *Attribute) Stride() int {
	return a.itemSize * a.component.Size()
}

// Count returns the number of elements.
func (a *Attribute) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.data) / a.Stride()
}

// Data returns the packed bytes. Callers must not mutate the slice, use SetData or Update instead.
func (a *Attribute) Data() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

// ByteLength returns the size of the data in bytes.
func (a *Attribute) ByteLength() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.data)
}

// Version returns the mutation counter.
func (a *Attribute) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// SetData replaces all data and bumps the version. A size change forces backends to reallocate the buffer.
func (a *Attribute) SetData(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = data
	a.updateRanges = nil
	a.version++
}

// Update overwrites bytes starting at offset and records the range for a partial upload.
//
// Parameters:
//   - offset: the byte offset
//   - data: the bytes to write
//
// Returns:
//   - error: an error if the write would exceed the attribute size
func (a *Attribute) Update(offset int, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if offset < 0 || offset+len(data) > len(a.data) {
		return fmt.Errorf("attribute %q: update [%d, %d) out of range %d", a.name, offset, offset+len(data), len(a.data))
	}
	copy(a.data[offset:], data)
	a.updateRanges = append(a.updateRanges, [2]int{offset, len(data)})
	a.version++
	return nil
}

// TakeUpdateRanges returns and clears the pending partial ranges as (offset, length) pairs.
// An empty result after a version change means the whole buffer must be uploaded.
func (a *Attribute) TakeUpdateRanges() [][2]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.updateRanges
	a.updateRanges = nil
	return r
}

// VertexFormat maps the component type and item size to the GPU vertex format.
//
// Returns:
//   - gputypes.VertexFormat: the vertex format
//   - error: an error if the combination has no vertex format
func (a *Attribute) VertexFormat() (gputypes.VertexFormat, error) {
	formats := map[ComponentType][4]gputypes.VertexFormat{
		ComponentFloat32: {gputypes.VertexFormatFloat32, gputypes.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x3, gputypes.VertexFormatFloat32x4},
		ComponentUint32:  {gputypes.VertexFormatUint32, gputypes.VertexFormatUint32x2, gputypes.VertexFormatUint32x3, gputypes.VertexFormatUint32x4},
		ComponentInt32:   {gputypes.VertexFormatSint32, gputypes.VertexFormatSint32x2, gputypes.VertexFormatSint32x3, gputypes.VertexFormatSint32x4},
	}
	row, ok := formats[a.component]
	if !ok || a.itemSize < 1 || a.itemSize > 4 {
		return 0, fmt.Errorf("attribute %q: no vertex format for %d components of type %d", a.name, a.itemSize, a.component)
	}
	return row[a.itemSize-1], nil
}

// IndexFormat returns the index format of an index attribute.
func (a *Attribute) IndexFormat() gputypes.IndexFormat {
	if a.component == ComponentUint16 {
		return gputypes.IndexFormatUint16
	}
	return gputypes.IndexFormatUint32
}

// BufferUsage returns the GPU usage flags the attribute's buffer must be created with.
func (a *Attribute) BufferUsage() gputypes.BufferUsage {
	switch a.kind {
	case AttributeIndex:
		return gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst
	case AttributeStorage:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	default:
		return gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
	}
}

// Dispose releases the attribute and notifies listeners once.
func (a *Attribute) Dispose() {
	a.events.dispose(a)
}

func (a *Attribute) Disposed() bool {
	return a.events.isDisposed()
}

// OnDispose registers a listener invoked when the attribute is disposed.
func (a *Attribute) OnDispose(fn func(*Attribute)) {
	a.events.onDispose(fn)
}
