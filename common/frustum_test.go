package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrustum_SphereVisible(t *testing.T) {
	for _, dr := range []DepthRange{DepthRangeZeroToOne, DepthRangeNegOneToOne} {
		proj := Perspective(1.2, 1, 0.1, 100, dr)
		view := LookAt([3]float32{0, 0, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
		f := FrustumFromMatrix(proj.Mul(view), dr)

		assert.True(t, f.SphereVisible([3]float32{0, 0, 0}, 1), "origin in front of camera")
		assert.False(t, f.SphereVisible([3]float32{0, 0, 20}, 1), "behind the camera")
		assert.False(t, f.SphereVisible([3]float32{0, 0, -200}, 1), "beyond the far plane")
		assert.True(t, f.SphereVisible([3]float32{0, 0, 10}, 6), "straddles the near plane")
	}
}
