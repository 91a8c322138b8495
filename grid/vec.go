package grid

import "math"

// Vec is a 3-vector. Positions, velocities, and magnetic fields all use
// it.
type Vec [3]float64

// Dot returns the inner product of u and v.
func (u Vec) Dot(v Vec) float64 {
	return u[0]*v[0] + u[1]*v[1] + u[2]*v[2]
}

// Sub returns u - v.
func (u Vec) Sub(v Vec) Vec {
	return Vec{u[0] - v[0], u[1] - v[1], u[2] - v[2]}
}

// Add returns u + v.
func (u Vec) Add(v Vec) Vec {
	return Vec{u[0] + v[0], u[1] + v[1], u[2] + v[2]}
}

// Scale returns s*u.
func (u Vec) Scale(s float64) Vec {
	return Vec{s * u[0], s * u[1], s * u[2]}
}

// Cross returns the cross product of u and v.
func (u Vec) Cross(v Vec) Vec {
	return Vec{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
}

// Norm returns the Euclidean length of u.
func (u Vec) Norm() float64 {
	return math.Sqrt(u.Dot(u))
}

// Normalize returns u scaled to unit length. The zero vector is returned
// unchanged.
func (u Vec) Normalize() Vec {
	n := u.Norm()
	if n == 0 {
		return u
	}
	return u.Scale(1 / n)
}
