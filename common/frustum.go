package common

import (
	"math"
)

// Plane represents a plane ax + by + cz + d = 0 where (a, b, c) is the unit normal.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum holds the six planes of a view frustum, oriented so the positive half-space is inside.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumFromMatrix extracts frustum planes from a combined projection * view matrix using the
// Gribb/Hartmann method. The near plane follows the given depth convention.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the column-major view-projection matrix
//   - depthRange: the clip-space depth convention the matrix was built for
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func FrustumFromMatrix(viewProj Mat4, depthRange DepthRange) Frustum {
	row := func(r int) [4]float32 {
		return [4]float32{viewProj[r], viewProj[4+r], viewProj[8+r], viewProj[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	combine := func(a [4]float32, sign float32, b [4]float32) Plane {
		p := Plane{
			Normal:   [3]float32{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]},
			Distance: a[3] + sign*b[3],
		}
		return p.normalized()
	}

	var f Frustum
	f.Planes[0] = combine(r3, 1, r0)
	f.Planes[1] = combine(r3, -1, r0)
	f.Planes[2] = combine(r3, 1, r1)
	f.Planes[3] = combine(r3, -1, r1)
	if depthRange == DepthRangeZeroToOne {
		f.Planes[4] = Plane{Normal: [3]float32{r2[0], r2[1], r2[2]}, Distance: r2[3]}.normalized()
	} else {
		f.Planes[4] = combine(r3, 1, r2)
	}
	f.Planes[5] = combine(r3, -1, r2)
	return f
}

// SphereVisible reports whether a sphere intersects or lies inside the frustum.
//
// Parameters:
//   - center: the sphere center in world space
//   - radius: the sphere radius
//
// Returns:
//   - bool: false only when the sphere is entirely outside one plane
func (f Frustum) SphereVisible(center [3]float32, radius float32) bool {
	for _, p := range f.Planes {
		if p.Normal[0]*center[0]+p.Normal[1]*center[1]+p.Normal[2]*center[2]+p.Distance < -radius {
			return false
		}
	}
	return true
}

func (p Plane) normalized() Plane {
	length := float32(math.Sqrt(float64(p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2])))
	if length == 0 {
		return p
	}
	inv := 1 / length
	return Plane{
		Normal:   [3]float32{p.Normal[0] * inv, p.Normal[1] * inv, p.Normal[2] * inv},
		Distance: p.Distance * inv,
	}
}
