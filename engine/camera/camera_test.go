package camera_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clipDepth projects a view-space point on the camera axis and returns its NDC depth.
func clipDepth(c camera.Camera, distance float32) float32 {
	v := c.ProjectionMatrix().MulVec4([4]float32{0, 0, -distance, 1})
	return v[2] / v[3]
}

func TestProjectionFollowsDepthRange(t *testing.T) {
	c := camera.NewCamera(camera.WithNear(1), camera.WithFar(10))

	assert.InDelta(t, 0, clipDepth(c, 1), 1e-5, "near maps to 0 for WebGPU")
	assert.InDelta(t, 1, clipDepth(c, 10), 1e-5)

	c.SetDepthRange(common.DepthRangeNegOneToOne)
	assert.InDelta(t, -1, clipDepth(c, 1), 1e-5, "near maps to -1 for OpenGL")
	assert.InDelta(t, 1, clipDepth(c, 10), 1e-5)
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	c := camera.NewCamera()
	c.LookAt([3]float32{3, 4, 5}, [3]float32{0, 0, 0})

	eye := c.ViewMatrix().MulVec4([4]float32{3, 4, 5, 1})
	assert.InDelta(t, 0, eye[0], 1e-5)
	assert.InDelta(t, 0, eye[1], 1e-5)
	assert.InDelta(t, 0, eye[2], 1e-5)
	assert.Equal(t, c.ProjectionMatrix().Mul(c.ViewMatrix()), c.ViewProjectionMatrix())
}

func TestOrbitDrivesCamera(t *testing.T) {
	o := camera.NewOrbit(camera.WithRadius(10), camera.WithAngles(0, 0), camera.WithRadiusBounds(2, 20))
	c := camera.NewCamera(camera.WithController(o))

	pos := c.Position()
	assert.InDelta(t, 10, pos[2], 1e-5, "azimuth 0 sits on +Z")

	o.Zoom(100)
	assert.Equal(t, float32(2), o.Radius(), "zoom stops at the minimum radius")
	c.Update()
	pos = c.Position()
	assert.InDelta(t, 2, pos[2], 1e-5)

	o.Rotate(0, 10)
	require.Less(t, o.Position()[1], float32(2), "elevation is clamped short of the pole")
}
