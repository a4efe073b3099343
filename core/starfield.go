package core

import (
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/orrery/model"
)

// DefaultDamping is used when a starfield definition leaves Damping unset.
const DefaultDamping = 0.9

// maxPulls bounds the containment loop for one particle. With the default
// damping a particle at the float32 limit needs well under a thousand.
const maxPulls = 4096

// ParticleField is a fixed-size set of drifting particles kept inside a
// spherical shell. Positions and velocities are flat xyz triples so the
// position buffer can be handed to a renderer without conversion; Step
// mutates it in place and never reallocates.
type ParticleField struct {
	Positions  []float32
	Velocities []float32

	Outer   float64
	Damping float64

	recycled uint64
}

// NewParticleField seeds count particles uniformly over the sphere with radii
// uniform in [inner, outer] and per-axis velocities uniform in
// [-maxVelocity, maxVelocity]. All randomness happens here.
func NewParticleField(def model.StarfieldDefinition, rng *rand.Rand) *ParticleField {
	n := def.Count
	if n < 0 {
		n = 0
	}
	damping := def.Damping
	if !(damping > 0 && damping < 1) {
		damping = DefaultDamping
	}

	f := &ParticleField{
		Positions:  make([]float32, n*3),
		Velocities: make([]float32, n*3),
		Outer:      def.OuterRadius,
		Damping:    damping,
	}

	for i := 0; i < n; i++ {
		r := def.InnerRadius + rng.Float64()*(def.OuterRadius-def.InnerRadius)
		theta := rng.Float64() * 2 * math.Pi
		phi := math.Acos(2*rng.Float64() - 1)

		f.Positions[i*3] = float32(r * math.Sin(phi) * math.Cos(theta))
		f.Positions[i*3+1] = float32(r * math.Sin(phi) * math.Sin(theta))
		f.Positions[i*3+2] = float32(r * math.Cos(phi))

		for k := 0; k < 3; k++ {
			f.Velocities[i*3+k] = float32((rng.Float64()*2 - 1) * def.MaxVelocity)
		}
	}
	return f
}

// Len is the number of particles.
func (f *ParticleField) Len() int { return len(f.Positions) / 3 }

// Position returns particle i.
func (f *ParticleField) Position(i int) Vec3 {
	return Vec3{float64(f.Positions[i*3]), float64(f.Positions[i*3+1]), float64(f.Positions[i*3+2])}
}

// Recycled is the total number of containment pulls since construction.
func (f *ParticleField) Recycled() uint64 { return f.recycled }

// Step drifts every particle by its velocity, then pulls any particle beyond
// the outer shell back toward the origin by the damping factor. The pull
// repeats until the stored position is inside, so no particle is ever left
// outside the shell; a particle that cannot be pulled back (non-finite, or
// still outside after maxPulls) restarts at the origin. It returns the
// number of particles pulled this frame.
func (f *ParticleField) Step() int {
	pulled := 0
	p, v := f.Positions, f.Velocities
	for i := 0; i+2 < len(p); i += 3 {
		p[i] += v[i]
		p[i+1] += v[i+1]
		p[i+2] += v[i+2]

		r := radius(p[i], p[i+1], p[i+2])
		if r <= f.Outer {
			continue
		}
		pulled++
		for n := 0; !(r <= f.Outer); n++ {
			if n == maxPulls || math.IsInf(r, 0) || math.IsNaN(r) {
				p[i], p[i+1], p[i+2] = 0, 0, 0
				break
			}
			p[i] = float32(float64(p[i]) * f.Damping)
			p[i+1] = float32(float64(p[i+1]) * f.Damping)
			p[i+2] = float32(float64(p[i+2]) * f.Damping)
			r = radius(p[i], p[i+1], p[i+2])
		}
	}
	f.recycled += uint64(pulled)
	return pulled
}

func radius(x, y, z float32) float64 {
	fx, fy, fz := float64(x), float64(y), float64(z)
	return math.Sqrt(fx*fx + fy*fy + fz*fz)
}
