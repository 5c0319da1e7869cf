// Package orientation derives a forward/up/side basis from roll, pitch and
// yaw for driving a rendered object's pose.
//
// Coordinates are Y-up: forward sweeps the X/Z plane with yaw and rises with
// pitch, and roll turns the up vector about forward. Angles are taken as
// radians exactly as given; no unit conversion happens here.
package orientation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WorldUp is the reference vertical used to build the basis.
var WorldUp = r3.Vec{X: 0, Y: 1, Z: 0}

// degenerateEpsilon is the |forward x WorldUp| below which the basis is
// reported as degenerate.
const degenerateEpsilon = 1e-9

// Basis is the attitude of the device.
//
// Forward has unit length. Up and Side are orthogonal to Forward but are not
// normalized; at the singular configuration (forward parallel to WorldUp)
// they collapse towards zero.
type Basis struct {
	Forward r3.Vec
	Up      r3.Vec
	Side    r3.Vec

	// Degenerate marks the singular configuration. The vectors are the same
	// either way.
	Degenerate bool
}

// Solve computes the basis for the given angles. It keeps no state.
func Solve(roll, pitch, yaw float64) Basis {
	cp := math.Cos(pitch)
	forward := r3.Vec{
		X: math.Cos(yaw) * cp,
		Y: math.Sin(pitch),
		Z: math.Sin(yaw) * cp,
	}
	return FromForward(forward, roll)
}

// FromForward builds the basis around an already computed forward vector and
// applies roll about it (Rodrigues' rotation of the up vector; the axial term
// vanishes because up is orthogonal to forward).
func FromForward(forward r3.Vec, roll float64) Basis {
	side0 := r3.Cross(forward, WorldUp)
	up0 := r3.Cross(side0, forward)

	up := r3.Add(
		r3.Scale(math.Cos(roll), up0),
		r3.Scale(math.Sin(roll), r3.Cross(forward, up0)),
	)
	side := r3.Cross(forward, up)

	return Basis{
		Forward:    forward,
		Up:         up,
		Side:       side,
		Degenerate: r3.Norm(side0) < degenerateEpsilon,
	}
}

// Orthogonality returns the largest absolute pairwise dot product of the
// three vectors. It is 0 for a perfectly orthogonal basis.
func (b Basis) Orthogonality() float64 {
	return math.Max(
		math.Abs(r3.Dot(b.Forward, b.Up)),
		math.Max(math.Abs(r3.Dot(b.Forward, b.Side)), math.Abs(r3.Dot(b.Up, b.Side))),
	)
}

// Degrees converts radians to degrees for display.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Array returns v as a fixed-size array, which is how poses are serialized.
func Array(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
