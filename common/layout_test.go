package common

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniformLayout_Std140Placement(t *testing.T) {
	var l UniformLayout
	a := l.Add("a", 4, 4)  // float
	b := l.Add("b", 12, 16) // vec3
	c := l.Add("c", 4, 4)  // float packs into vec3 tail
	d := l.Add("d", 64, 16) // mat4

	assert.Equal(t, uint32(0), a.Offset)
	assert.Equal(t, uint32(16), b.Offset)
	assert.Equal(t, uint32(28), c.Offset)
	assert.Equal(t, uint32(32), d.Offset)
	assert.Equal(t, uint32(96), l.Size())

	m, ok := l.Member("c")
	assert.True(t, ok)
	assert.Equal(t, c, m)
}

func TestUniformLayout_EmptyHasMinimumSize(t *testing.T) {
	var l UniformLayout
	assert.Equal(t, uint32(16), l.Size())
}

func TestPutColumns_PadsMat3(t *testing.T) {
	buf := make([]byte, 48)
	PutColumns(buf, 0, 3, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})

	read := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(1), read(0))
	assert.Equal(t, float32(3), read(8))
	assert.Equal(t, float32(0), read(12))
	assert.Equal(t, float32(4), read(16))
	assert.Equal(t, float32(9), read(40))
}

func TestMat4_InverseRoundTrip(t *testing.T) {
	m := Compose([3]float32{1, 2, 3}, [3]float32{0.3, 0.2, 0.1}, [3]float32{2, 2, 2})
	inv, ok := m.Inverse()
	assert.True(t, ok)

	id := m.Mul(inv)
	for i, v := range Identity4() {
		assert.InDelta(t, v, id[i], 1e-5)
	}
}

func TestPerspective_DepthRanges(t *testing.T) {
	zeroToOne := Perspective(1, 1, 1, 10, DepthRangeZeroToOne)
	negOne := Perspective(1, 1, 1, 10, DepthRangeNegOneToOne)

	near := [4]float32{0, 0, -1, 1}
	p := zeroToOne.MulVec4(near)
	assert.InDelta(t, 0, p[2]/p[3], 1e-6)

	p = negOne.MulVec4(near)
	assert.InDelta(t, -1, p[2]/p[3], 1e-6)
}
