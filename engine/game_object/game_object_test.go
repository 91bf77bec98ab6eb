package game_object_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/game_object"
	"github.com/stretchr/testify/assert"
)

func TestModelMatrixTracksTransform(t *testing.T) {
	g := game_object.NewGameObject(game_object.WithPosition([3]float32{1, 2, 3}), game_object.WithScale([3]float32{2, 2, 2}))

	m := g.ModelMatrix()
	assert.Equal(t, float32(1), m[12])
	assert.Equal(t, float32(2), m[13])
	assert.Equal(t, float32(3), m[14])
	assert.Equal(t, float32(2), m[0])

	g.SetPosition([3]float32{4, 0, 0})
	assert.Equal(t, float32(4), g.ModelMatrix()[12], "moving invalidates the cached matrix")
}

func TestAdvanceAppliesRotationSpeed(t *testing.T) {
	g := game_object.NewGameObject(game_object.WithRotationSpeed([3]float32{0, 2, 0}))
	before := g.ModelMatrix()

	g.Advance(0.5)
	assert.InDelta(t, 1.0, g.Rotation()[1], 1e-6)
	assert.NotEqual(t, before, g.ModelMatrix())
	assert.True(t, g.Enabled())
	assert.NotZero(t, g.ID())
}
