package game_object

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
)

// GameObjectBuilderOption is a functional option applied to a game object during construction via NewGameObject.
type GameObjectBuilderOption func(*gameObject)

// WithName sets the debug name.
func WithName(name string) GameObjectBuilderOption {
	return func(g *gameObject) {
		g.name = name
	}
}

// WithEnabled sets whether the object is drawn. Objects are enabled by default.
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(g *gameObject) {
		g.enabled.Store(enabled)
	}
}

// WithGeometry sets the geometry to draw.
//
// Parameters:
//   - geo: the geometry
//
// Returns:
//   - GameObjectBuilderOption: option function to apply
func WithGeometry(geo resource.Geometry) GameObjectBuilderOption {
	return func(g *gameObject) {
		g.geometry = geo
	}
}

// WithMaterial sets the material to draw with.
//
// Parameters:
//   - m: the material
//
// Returns:
//   - GameObjectBuilderOption: option function to apply
func WithMaterial(m material.Material) GameObjectBuilderOption {
	return func(g *gameObject) {
		g.material = m
	}
}

// WithPosition sets the initial world-space position.
func WithPosition(p [3]float32) GameObjectBuilderOption {
	return func(g *gameObject) {
		g.position = p
	}
}

// WithRotation sets the initial Euler rotation in radians.
func WithRotation(r [3]float32) GameObjectBuilderOption {
	return func(g *gameObject) {
		g.rotation = r
	}
}

// WithRotationSpeed sets the rotation in radians per second applied by Advance.
//
// Parameters:
//   - r: the per-axis angular speed
//
// Returns:
//   - GameObjectBuilderOption: option function to apply
func WithRotationSpeed(r [3]float32) GameObjectBuilderOption {
	return func(g *gameObject) {
		g.rotationSpeed = r
	}
}

// WithScale sets the initial per-axis scale.
func WithScale(s [3]float32) GameObjectBuilderOption {
	return func(g *gameObject) {
		g.scale = s
	}
}
