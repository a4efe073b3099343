package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a scene-space vector. Y is up; orbits lie in the XZ plane.
type Vec3 = mgl64.Vec3

// Identity is the rotation that leaves a node's axes unchanged.
var Identity = mgl64.QuatIdent()

// OrbitPosition returns the point at angle on a circle of the given radius
// in the XZ plane.
func OrbitPosition(radius, angle float64) Vec3 {
	return Vec3{radius * math.Cos(angle), 0, radius * math.Sin(angle)}
}

// Bezier evaluates the quadratic Bezier curve through p0 (t=0) and p2 (t=1)
// with control point p1. t is not clamped.
func Bezier(t float64, p0, p1, p2 Vec3) Vec3 {
	u := 1 - t
	a, b, c := u*u, 2*u*t, t*t
	return Vec3{
		a*p0[0] + b*p1[0] + c*p2[0],
		a*p0[1] + b*p1[1] + c*p2[1],
		a*p0[2] + b*p1[2] + c*p2[2],
	}
}

// ControlPoint lifts the XZ midpoint of from and to to the given height.
func ControlPoint(from, to Vec3, height float64) Vec3 {
	return Vec3{(from[0] + to[0]) / 2, height, (from[2] + to[2]) / 2}
}

// Clamp01 clamps t to [0, 1].
func Clamp01(t float64) float64 {
	return mgl64.Clamp(t, 0, 1)
}

// SampleBezier returns segments+1 evenly spaced points along the curve,
// writing into dst when it has enough capacity.
func SampleBezier(dst []Vec3, segments int, p0, p1, p2 Vec3) []Vec3 {
	if segments < 1 {
		segments = 1
	}
	dst = dst[:0]
	for i := 0; i <= segments; i++ {
		dst = append(dst, Bezier(float64(i)/float64(segments), p0, p1, p2))
	}
	return dst
}

// OrbitGuide returns segments+1 points tracing a full circle of the given
// radius in the XZ plane. The last point repeats the first.
func OrbitGuide(radius float64, segments int) []Vec3 {
	if segments < 3 {
		segments = 3
	}
	pts := make([]Vec3, 0, segments+1)
	for i := 0; i <= segments; i++ {
		pts = append(pts, OrbitPosition(radius, 2*math.Pi*float64(i)/float64(segments)))
	}
	return pts
}

// minDirection is the shortest direction LookRotation will orient along.
// Shorter vectors are rounding noise from coincident curve points.
const minDirection = 1e-9

// LookRotation returns the rotation that turns a node's +Z axis toward dir,
// keeping +Y as close to up as possible. ok is false when dir is shorter
// than minDirection; the caller keeps its previous orientation in that case.
func LookRotation(dir, up Vec3) (q mgl64.Quat, ok bool) {
	l := dir.Len()
	if !(l >= minDirection) {
		return mgl64.Quat{}, false
	}
	z := dir.Mul(1 / l)

	x := up.Cross(z)
	if x.Len() < 1e-12 {
		// up is parallel to dir; nudge z so the basis is defined
		if math.Abs(up[2]) == 1 {
			z[0] += 1e-7
		} else {
			z[2] += 1e-7
		}
		z = z.Normalize()
		x = up.Cross(z)
	}
	x = x.Normalize()
	y := z.Cross(x)

	m := mgl64.Mat3FromCols(x, y, z)
	return mgl64.Mat4ToQuat(m.Mat4()).Normalize(), true
}

// SpinY returns the rotation of angle radians about +Y.
func SpinY(angle float64) mgl64.Quat {
	return mgl64.QuatRotate(angle, Vec3{0, 1, 0})
}
