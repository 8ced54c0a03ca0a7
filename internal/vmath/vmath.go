// Package vmath holds the small amount of 3D math the pooling core needs to
// place and move pooled entities. Left-handed, Y up, Z forward.
package vmath

import "math"

type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Quat is a unit rotation quaternion.
type Quat struct {
	X, Y, Z, W float32
}

// Identity is the no-rotation quaternion.
var Identity = Quat{W: 1}

// IsZero reports whether q is the zero value, which is not a valid rotation.
func (q Quat) IsZero() bool { return q == Quat{} }

// Euler builds a rotation from angles in degrees, applied Z, X, then Y.
func Euler(x, y, z float32) Quat {
	const deg2rad = math.Pi / 180
	hx := float64(x) * deg2rad / 2
	hy := float64(y) * deg2rad / 2
	hz := float64(z) * deg2rad / 2
	sx, cx := math.Sin(hx), math.Cos(hx)
	sy, cy := math.Sin(hy), math.Cos(hy)
	sz, cz := math.Sin(hz), math.Cos(hz)
	return Quat{
		X: float32(cy*sx*cz + sy*cx*sz),
		Y: float32(sy*cx*cz - cy*sx*sz),
		Z: float32(cy*cx*sz - sy*sx*cz),
		W: float32(cy*cx*cz + sy*sx*sz),
	}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	if q.IsZero() {
		return v
	}
	// v' = v + 2w(u×v) + 2u×(u×v)
	u := Vec3{q.X, q.Y, q.Z}
	t := cross(u, v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(cross(u, t))
}

// Forward returns the unit Z axis rotated by q.
func (q Quat) Forward() Vec3 {
	return q.Rotate(Vec3{Z: 1})
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}
