package core

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/signalsfoundry/orrery/model"
)

func testStarfield() model.StarfieldDefinition {
	return model.StarfieldDefinition{
		Count:       500,
		InnerRadius: 90,
		OuterRadius: 100,
		MaxVelocity: 0.005,
		Damping:     0.9,
	}
}

func TestNewParticleFieldSeedsShell(t *testing.T) {
	def := testStarfield()
	f := NewParticleField(def, rand.New(rand.NewPCG(1, 2)))

	if f.Len() != def.Count {
		t.Fatalf("Len() = %d, want %d", f.Len(), def.Count)
	}
	for i := 0; i < f.Len(); i++ {
		r := f.Position(i).Len()
		if r < def.InnerRadius-1e-3 || r > def.OuterRadius+1e-3 {
			t.Fatalf("particle %d at radius %v, want within [%v, %v]", i, r, def.InnerRadius, def.OuterRadius)
		}
		for k := 0; k < 3; k++ {
			if v := math.Abs(float64(f.Velocities[i*3+k])); v > def.MaxVelocity+1e-9 {
				t.Fatalf("particle %d velocity component %v exceeds %v", i, v, def.MaxVelocity)
			}
		}
	}
}

func TestNewParticleFieldDeterministicForSeed(t *testing.T) {
	a := NewParticleField(testStarfield(), rand.New(rand.NewPCG(7, 7)))
	b := NewParticleField(testStarfield(), rand.New(rand.NewPCG(7, 7)))
	for i := range a.Positions {
		if a.Positions[i] != b.Positions[i] || a.Velocities[i] != b.Velocities[i] {
			t.Fatalf("same seed produced different fields at index %d", i)
		}
	}
}

func TestParticleFieldNeverExceedsShell(t *testing.T) {
	def := testStarfield()
	f := NewParticleField(def, rand.New(rand.NewPCG(3, 4)))
	for frame := 0; frame < 3000; frame++ {
		f.Step()
		for i := 0; i < f.Len(); i++ {
			if r := f.Position(i).Len(); r > def.OuterRadius {
				t.Fatalf("frame %d: particle %d at radius %v beyond %v", frame, i, r, def.OuterRadius)
			}
		}
	}
}

func TestParticleFieldSoftContainment(t *testing.T) {
	f := &ParticleField{
		Positions:  []float32{99.999, 0, 0},
		Velocities: []float32{0.01, 0, 0},
		Outer:      100,
		Damping:    0.9,
	}
	if pulled := f.Step(); pulled != 1 {
		t.Fatalf("Step() pulled %d particles, want 1", pulled)
	}
	// Scaled toward the origin, not reset or reflected.
	got := float64(f.Positions[0])
	want := 100.009 * 0.9
	if math.Abs(got-want) > 1e-3 {
		t.Fatalf("x = %v, want ≈%v", got, want)
	}
	if f.Recycled() != 1 {
		t.Fatalf("Recycled() = %d, want 1", f.Recycled())
	}
}

func TestParticleFieldLargeVelocityStillContained(t *testing.T) {
	f := &ParticleField{
		Positions:  []float32{95, 0, 0},
		Velocities: []float32{50, 0, 0},
		Outer:      100,
		Damping:    0.9,
	}
	f.Step()
	if r := f.Position(0).Len(); r > 100 {
		t.Fatalf("radius = %v after containment, want <= 100", r)
	}
}

func TestParticleFieldRestartsUncontainableParticles(t *testing.T) {
	f := &ParticleField{
		Positions:  []float32{1e38, 0, 0, float32(math.Inf(1)), 0, 0, float32(math.NaN()), 0, 0},
		Velocities: make([]float32, 9),
		Outer:      100,
		Damping:    0.9,
	}
	if got := f.Step(); got != 3 {
		t.Fatalf("Step() pulled %d, want 3", got)
	}
	for i := 0; i < f.Len(); i++ {
		if r := f.Position(i).Len(); !(r <= 100) {
			t.Fatalf("particle %d radius = %v after containment", i, r)
		}
	}
	// ~800 pulls bring the float32 limit down; the origin restart is for the rest
	if f.Position(0).Len() == 0 {
		t.Fatalf("finite particle was restarted instead of pulled")
	}
}

func TestParticleFieldStepDoesNotReallocate(t *testing.T) {
	f := NewParticleField(testStarfield(), rand.New(rand.NewPCG(5, 6)))
	before := &f.Positions[0]
	for i := 0; i < 10; i++ {
		f.Step()
	}
	if &f.Positions[0] != before {
		t.Fatalf("position buffer was reallocated")
	}
}
