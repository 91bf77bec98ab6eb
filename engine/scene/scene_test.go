package scene_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/game_object"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() resource.Geometry {
	return resource.NewGeometry("triangle",
		resource.NewFloat32Attribute("position", 3, []float32{-1, -1, 0, 1, -1, 0, 0, 1, 0}))
}

func object(pos [3]float32) game_object.GameObject {
	return game_object.NewGameObject(
		game_object.WithGeometry(triangle()),
		game_object.WithMaterial(material.NewMaterial()),
		game_object.WithPosition(pos),
	)
}

func TestRenderablesKeepOrderAndCull(t *testing.T) {
	a, b, far := object([3]float32{0, 0, 0}), object([3]float32{1, 0, 0}), object([3]float32{0, 0, -500})
	hidden := object([3]float32{0, 0, 0})
	hidden.SetEnabled(false)
	s := scene.NewScene(scene.WithObjects(a, hidden, far, b))

	list := s.Renderables()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID(), list[0].ID())
	assert.Equal(t, b.ID(), list[1].ID())

	s.SetCullingDisabled(true)
	assert.Len(t, s.Renderables(), 3, "beyond the far plane is kept without culling")
}

func TestRemoveReindexes(t *testing.T) {
	a, b, c := object([3]float32{}), object([3]float32{}), object([3]float32{})
	s := scene.NewScene()
	s.Add(a)
	s.Add(b)
	s.Add(c)
	s.Add(a)
	require.Equal(t, 3, s.Count(), "adding twice keeps one entry")

	s.Remove(b.ID())
	assert.Nil(t, s.Get(b.ID()))
	assert.Same(t, c, s.Get(c.ID()))
	assert.Equal(t, []game_object.GameObject{a, c}, s.Objects())

	s.Clear()
	assert.Zero(t, s.Count())
}

func TestUpdateAdvancesInParallel(t *testing.T) {
	s := scene.NewScene(scene.WithUpdateWorkers(4))
	for range 600 {
		s.Add(game_object.NewGameObject(game_object.WithRotationSpeed([3]float32{1, 0, 0})))
	}
	s.Update(0.25)
	for _, obj := range s.Objects() {
		assert.InDelta(t, 0.25, obj.Rotation()[0], 1e-6)
	}
}
