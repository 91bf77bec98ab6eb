package bind_group_provider

import (
	"bytes"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
)

// BufferWrite describes a single uniform buffer write targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  uint32
	Offset   uint32
	Data     []byte
}

// Apply performs the writes in order and reports how many changed buffer contents.
func Apply(writes []BufferWrite) int {
	changed := 0
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		if buf.Write(w.Offset, w.Data) {
			changed++
		}
	}
	return changed
}

// UniformBuffer is the CPU copy of a uniform buffer. Writes that change bytes bump the version and widen the dirty
// range the backend uploads next.
type UniformBuffer struct {
	mu *sync.Mutex

	id      uint64
	data    []byte
	version uint64
	lo, hi  int
}

// NewUniformBuffer allocates a zeroed buffer of size bytes.
func NewUniformBuffer(size uint32) *UniformBuffer {
	return &UniformBuffer{
		mu:      &sync.Mutex{},
		id:      resource.NextID(),
		data:    make([]byte, size),
		version: 1,
		lo:      0,
		hi:      int(size),
	}
}

func (b *UniformBuffer) ID() uint64 {
	return b.id
}

// Size returns the buffer size in bytes.
func (b *UniformBuffer) Size() uint64 {
	return uint64(len(b.data))
}

// Data returns the buffer contents. The slice must not be modified.
func (b *UniformBuffer) Data() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

func (b *UniformBuffer) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Write copies data at offset. Data past the end of the buffer is dropped.
//
// Parameters:
//   - offset: the byte offset
//   - data: the bytes to write
//
// Returns:
//   - bool: true if the contents changed
func (b *UniformBuffer) Write(offset uint32, data []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := int(offset)
	if start >= len(b.data) {
		return false
	}
	end := min(start+len(data), len(b.data))
	if bytes.Equal(b.data[start:end], data[:end-start]) {
		return false
	}
	copy(b.data[start:end], data)
	if b.lo == b.hi {
		b.lo, b.hi = start, end
	} else {
		b.lo, b.hi = min(b.lo, start), max(b.hi, end)
	}
	b.version++
	return true
}

// TakeDirty returns the byte range changed since the last call and clears it.
//
// Returns:
//   - int: the start offset
//   - []byte: the changed bytes, nil when nothing changed
func (b *UniformBuffer) TakeDirty() (int, []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lo == b.hi {
		return 0, nil
	}
	lo, hi := b.lo, b.hi
	b.lo, b.hi = 0, 0
	out := make([]byte, hi-lo)
	copy(out, b.data[lo:hi])
	return lo, out
}
