package camera

import (
	"math"
	"sync"
)

// Controller owns a camera's position and target. The camera reads both on Update.
type Controller interface {
	// Position returns the world-space eye position.
	Position() [3]float32

	// Target returns the world-space look-at point.
	Target() [3]float32
}

// Orbit circles a target point on a sphere given by radius, azimuth around +Y and elevation above the
// horizontal plane.
type Orbit struct {
	mu *sync.Mutex

	target    [3]float32
	radius    float32
	azimuth   float32
	elevation float32

	minRadius, maxRadius       float32
	minElevation, maxElevation float32

	// zoomSpeed scales Zoom deltas into radius changes
	zoomSpeed float32
}

var _ Controller = &Orbit{}

// NewOrbit creates an orbit controller around the origin.
//
// Parameters:
//   - options: functional options to configure the orbit
//
// Returns:
//   - *Orbit: the controller
func NewOrbit(options ...OrbitOption) *Orbit {
	o := &Orbit{
		mu:           &sync.Mutex{},
		radius:       5,
		elevation:    float32(math.Pi / 6),
		minRadius:    0.5,
		maxRadius:    1000,
		minElevation: float32(-math.Pi/2 + 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),
		zoomSpeed:    1,
	}
	for _, opt := range options {
		opt(o)
	}
	o.clamp()
	return o
}

func (o *Orbit) Position() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	cosElev := float32(math.Cos(float64(o.elevation)))
	sinElev := float32(math.Sin(float64(o.elevation)))
	cosAzim := float32(math.Cos(float64(o.azimuth)))
	sinAzim := float32(math.Sin(float64(o.azimuth)))
	return [3]float32{
		o.target[0] + o.radius*cosElev*sinAzim,
		o.target[1] + o.radius*sinElev,
		o.target[2] + o.radius*cosElev*cosAzim,
	}
}

func (o *Orbit) Target() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

// SetTarget moves the pivot, keeping radius and angles.
func (o *Orbit) SetTarget(target [3]float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.target = target
}

// Rotate adds to the azimuth and elevation, in radians. Elevation is clamped short of the poles.
func (o *Orbit) Rotate(dAzimuth, dElevation float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.azimuth += dAzimuth
	o.elevation += dElevation
	o.clamp()
}

// Zoom moves toward the target for positive delta and away for negative, within the radius bounds.
func (o *Orbit) Zoom(delta float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.radius -= delta * o.zoomSpeed
	o.clamp()
}

// Radius returns the distance to the target.
func (o *Orbit) Radius() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.radius
}

func (o *Orbit) clamp() {
	o.radius = min(max(o.radius, o.minRadius), o.maxRadius)
	o.elevation = min(max(o.elevation, o.minElevation), o.maxElevation)
}
