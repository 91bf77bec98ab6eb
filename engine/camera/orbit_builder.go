package camera

// OrbitOption is a functional option applied to an Orbit via NewOrbit.
type OrbitOption func(*Orbit)

// WithOrbitTarget sets the pivot point.
func WithOrbitTarget(target [3]float32) OrbitOption {
	return func(o *Orbit) {
		o.target = target
	}
}

// WithRadius sets the initial distance to the target.
func WithRadius(radius float32) OrbitOption {
	return func(o *Orbit) {
		o.radius = radius
	}
}

// WithAngles sets the initial azimuth and elevation in radians.
//
// Parameters:
//   - azimuth: the angle around +Y, 0 looks down -Z from +Z
//   - elevation: the angle above the horizontal plane
//
// Returns:
//   - OrbitOption: a function that applies the angles
func WithAngles(azimuth, elevation float32) OrbitOption {
	return func(o *Orbit) {
		o.azimuth, o.elevation = azimuth, elevation
	}
}

// WithRadiusBounds limits the distance to the target.
func WithRadiusBounds(minRadius, maxRadius float32) OrbitOption {
	return func(o *Orbit) {
		o.minRadius, o.maxRadius = minRadius, maxRadius
	}
}

// WithZoomSpeed scales Zoom deltas. Defaults to 1.
func WithZoomSpeed(speed float32) OrbitOption {
	return func(o *Orbit) {
		o.zoomSpeed = speed
	}
}
