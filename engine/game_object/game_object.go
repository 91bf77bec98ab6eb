package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
)

type gameObject struct {
	mu *sync.Mutex

	id       uint64
	name     string
	enabled  atomic.Bool
	geometry resource.Geometry
	material material.Material

	position      [3]float32
	rotation      [3]float32
	rotationSpeed [3]float32
	scale         [3]float32

	// model caches the composed transform until a transform field changes
	model      common.Mat4
	modelValid bool
}

// GameObject is a scene entity: geometry drawn with a material at a position, rotation and scale. It implements
// renderer.Renderable.
type GameObject interface {
	renderer.Renderable

	// Name returns the debug name.
	Name() string

	// Enabled returns whether this object is drawn.
	Enabled() bool

	// SetEnabled sets whether this object is drawn.
	SetEnabled(enabled bool)

	// SetGeometry replaces the geometry. The renderer rebuilds the object's attributes on the next draw.
	SetGeometry(g resource.Geometry)

	// SetMaterial replaces the material.
	SetMaterial(m material.Material)

	// Position returns the world-space position.
	Position() [3]float32

	// Rotation returns the Euler rotation in radians, applied Y then X then Z.
	Rotation() [3]float32

	// RotationSpeed returns the rotation added per second by Advance.
	RotationSpeed() [3]float32

	// Scale returns the per-axis scale.
	Scale() [3]float32

	// SetPosition sets the world-space position.
	SetPosition(p [3]float32)

	// SetRotation sets the Euler rotation in radians.
	SetRotation(r [3]float32)

	// SetRotationSpeed sets the rotation added per second by Advance.
	SetRotationSpeed(r [3]float32)

	// SetScale sets the per-axis scale.
	SetScale(s [3]float32)

	// Advance applies the rotation speed over dt seconds.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Advance(dt float32)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a game object at the origin with unit scale.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the new object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	g := &gameObject{
		mu:    &sync.Mutex{},
		id:    resource.NextID(),
		scale: [3]float32{1, 1, 1},
	}
	g.enabled.Store(true)
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) Name() string {
	return g.name
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) Geometry() resource.Geometry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.geometry
}

func (g *gameObject) SetGeometry(geo resource.Geometry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.geometry = geo
}

func (g *gameObject) Material() material.Material {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.material
}

func (g *gameObject) SetMaterial(m material.Material) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.material = m
}

func (g *gameObject) ModelMatrix() common.Mat4 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.modelValid {
		g.model = common.Compose(g.position, g.rotation, g.scale)
		g.modelValid = true
	}
	return g.model
}

func (g *gameObject) Position() [3]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}

func (g *gameObject) Rotation() [3]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotation
}

func (g *gameObject) RotationSpeed() [3]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotationSpeed
}

func (g *gameObject) Scale() [3]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scale
}

func (g *gameObject) SetPosition(p [3]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = p
	g.modelValid = false
}

func (g *gameObject) SetRotation(r [3]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = r
	g.modelValid = false
}

func (g *gameObject) SetRotationSpeed(r [3]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotationSpeed = r
}

func (g *gameObject) SetScale(s [3]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scale = s
	g.modelValid = false
}

func (g *gameObject) Advance(dt float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rotationSpeed == [3]float32{} {
		return
	}
	for i := range g.rotation {
		g.rotation[i] += g.rotationSpeed[i] * dt
	}
	g.modelValid = false
}
