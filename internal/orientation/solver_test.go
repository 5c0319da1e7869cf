package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func assertVecInDelta(t *testing.T, want, got r3.Vec, msg string) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, "%s.X", msg)
	assert.InDelta(t, want.Y, got.Y, tol, "%s.Y", msg)
	assert.InDelta(t, want.Z, got.Z, tol, "%s.Z", msg)
}

func TestSolve_Zero(t *testing.T) {
	b := Solve(0, 0, 0)

	assert.Equal(t, r3.Vec{X: 1, Y: 0, Z: 0}, b.Forward)
	assert.Equal(t, r3.Vec{X: 0, Y: 1, Z: 0}, b.Up)
	assert.Equal(t, r3.Vec{X: 0, Y: 0, Z: 1}, b.Side)
	assert.False(t, b.Degenerate)
}

func TestSolve_Deterministic(t *testing.T) {
	first := Solve(0.3, -1.1, 2.7)
	for i := 0; i < 100; i++ {
		got := Solve(0.3, -1.1, 2.7)
		require.Equal(t, math.Float64bits(first.Forward.X), math.Float64bits(got.Forward.X))
		require.Equal(t, math.Float64bits(first.Up.Y), math.Float64bits(got.Up.Y))
		require.Equal(t, math.Float64bits(first.Side.Z), math.Float64bits(got.Side.Z))
		require.Equal(t, first, got)
	}
}

func TestSolve_ForwardIsUnit(t *testing.T) {
	for roll := -7.0; roll <= 7; roll += 0.9 {
		for pitch := -3.0; pitch <= 3; pitch += 0.37 {
			for yaw := -100.0; yaw <= 100; yaw += 13.3 {
				b := Solve(roll, pitch, yaw)
				require.InDelta(t, 1.0, r3.Norm(b.Forward), tol, "roll=%v pitch=%v yaw=%v", roll, pitch, yaw)
			}
		}
	}
}

func TestSolve_Orthogonal(t *testing.T) {
	for _, a := range [][3]float64{
		{0.1, 0.2, 0.3},
		{-2.5, 1.2, -0.4},
		{math.Pi, -0.7, 12},
		{-5, -12.5, 88.1},
	} {
		b := Solve(a[0], a[1], a[2])
		assert.Less(t, b.Orthogonality(), tol, "angles=%v", a)
	}
}

func TestSolve_RollPeriodic(t *testing.T) {
	for _, a := range [][2]float64{{0.4, 1.3}, {-1.2, -2.2}, {0, 0}, {-2, 90}} {
		pitch, yaw := a[0], a[1]
		for _, roll := range []float64{0, 0.5, -1.7, 3} {
			b1 := Solve(roll, pitch, yaw)
			b2 := Solve(roll+2*math.Pi, pitch, yaw)
			assertVecInDelta(t, b1.Up, b2.Up, "up")
			assertVecInDelta(t, b1.Side, b2.Side, "side")
			assert.Equal(t, b1.Forward, b2.Forward)
		}
	}
}

func TestSolve_RollRotatesUpAboutForward(t *testing.T) {
	level := Solve(0, 0, 0)
	rolled := Solve(math.Pi/2, 0, 0)

	assert.Equal(t, level.Forward, rolled.Forward)
	// forward x up0 = (1,0,0) x (0,1,0) = (0,0,1)
	assertVecInDelta(t, r3.Vec{X: 0, Y: 0, Z: 1}, rolled.Up, "up")
	assertVecInDelta(t, r3.Vec{X: 0, Y: -1, Z: 0}, rolled.Side, "side")
}

func TestSolve_UpMagnitudeFollowsCosPitch(t *testing.T) {
	// up0 = (f x y) x f has length |cos(pitch)|; roll preserves it.
	for _, pitch := range []float64{0, 0.3, 1.0, -1.4} {
		b := Solve(0.8, pitch, 0.25)
		assert.InDelta(t, math.Abs(math.Cos(pitch)), r3.Norm(b.Up), tol)
		assert.InDelta(t, math.Abs(math.Cos(pitch)), r3.Norm(b.Side), tol)
	}
}

func TestFromForward_SingularIsExactZero(t *testing.T) {
	for _, roll := range []float64{0, 1, -2.5, math.Pi} {
		b := FromForward(WorldUp, roll)

		assert.True(t, b.Degenerate)
		assert.Equal(t, WorldUp, b.Forward)
		for _, v := range []r3.Vec{b.Up, b.Side} {
			assert.False(t, math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z))
			assert.Equal(t, 0.0, r3.Norm(v))
		}
	}
}

func TestSolve_NearSingularIsFiniteAndFlagged(t *testing.T) {
	b := Solve(0.3, math.Pi/2, 1.2)

	assert.True(t, b.Degenerate)
	assert.InDelta(t, 1.0, r3.Norm(b.Forward), tol)
	assert.Less(t, r3.Norm(b.Up), 1e-12)
	assert.Less(t, r3.Norm(b.Side), 1e-12)
	assert.False(t, math.IsNaN(b.Up.X) || math.IsNaN(b.Side.Z))
}

func TestDegreesRadians(t *testing.T) {
	assert.InDelta(t, 180.0, Degrees(math.Pi), 1e-12)
	assert.InDelta(t, math.Pi/2, Radians(90), 1e-12)
	assert.Equal(t, [3]float64{1, 2, 3}, Array(r3.Vec{X: 1, Y: 2, Z: 3}))
}
