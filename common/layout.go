package common

import (
	"encoding/binary"
	"math"
)

// UniformMember is one member placed in a UniformLayout.
type UniformMember struct {
	Name   string
	Offset uint32
	Size   uint32
	Align  uint32
}

// UniformLayout accumulates members of a uniform block using std140 placement rules. WGSL's uniform address
// space uses the same alignment for every type this engine emits, so one layout serves both backends.
type UniformLayout struct {
	Members []UniformMember
	size    uint32
}

// Add places a member after the previously added ones.
//
// Parameters:
//   - name: the member name
//   - size: the member size in bytes
//   - align: the member alignment in bytes
//
// Returns:
//   - UniformMember: the placed member with its offset
func (l *UniformLayout) Add(name string, size, align uint32) UniformMember {
	m := UniformMember{
		Name:   name,
		Offset: AlignUp(l.size, align),
		Size:   size,
		Align:  align,
	}
	l.Members = append(l.Members, m)
	l.size = m.Offset + size
	return m
}

// Member finds a member by name.
func (l *UniformLayout) Member(name string) (UniformMember, bool) {
	for _, m := range l.Members {
		if m.Name == name {
			return m, true
		}
	}
	return UniformMember{}, false
}

// Size returns the block size rounded up to 16 bytes, the minimum uniform buffer granularity.
func (l *UniformLayout) Size() uint32 {
	return max(AlignUp(l.size, 16), 16)
}

// AlignUp rounds v up to the next multiple of align. An align of 0 returns v.
func AlignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// PutFloat32s writes values little-endian into buf at offset.
//
// Parameters:
//   - buf: the destination buffer
//   - offset: the byte offset of the first value
//   - values: the values to write
func PutFloat32s(buf []byte, offset uint32, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[offset+uint32(i)*4:], math.Float32bits(v))
	}
}

// PutUint32s writes unsigned values little-endian into buf at offset.
func PutUint32s(buf []byte, offset uint32, values ...uint32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[offset+uint32(i)*4:], v)
	}
}

// PutColumns writes a column-major matrix with each column padded to a 16 byte stride.
//
// Parameters:
//   - buf: the destination buffer
//   - offset: the byte offset of the first column
//   - rows: the number of rows per column (2, 3 or 4)
//   - values: the matrix elements in column-major order
func PutColumns(buf []byte, offset uint32, rows int, values []float32) {
	cols := len(values) / rows
	for c := 0; c < cols; c++ {
		PutFloat32s(buf, offset+uint32(c)*16, values[c*rows:(c+1)*rows]...)
	}
}
