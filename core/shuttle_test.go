package core

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestShuttleStateLegCycle(t *testing.T) {
	// 0.25 is exact in binary, so every transition lands on a known frame.
	const speed = 0.25
	s := NewShuttleState()

	steps := func(n int) {
		for i := 0; i < n; i++ {
			s = s.Step(speed)
		}
	}
	expect := func(stage string, want ShuttleState) {
		t.Helper()
		if s != want {
			t.Fatalf("%s: state = %+v, want %+v", stage, s, want)
		}
	}

	steps(4)
	expect("end of leg 0", ShuttleState{Leg: 0, Progress: 1, Direction: 1})
	steps(1)
	expect("advance to leg 1", ShuttleState{Leg: 1, Progress: 0, Direction: 1})
	steps(4)
	expect("end of leg 1", ShuttleState{Leg: 1, Progress: 1, Direction: 1})
	steps(1)
	expect("bounce on terminal leg", ShuttleState{Leg: 1, Progress: 1, Direction: -1})
	steps(4)
	expect("back at start of leg 1", ShuttleState{Leg: 1, Progress: 0, Direction: -1})
	steps(1)
	expect("retreat to leg 0", ShuttleState{Leg: 0, Progress: 1, Direction: -1})
	steps(4)
	expect("back at start of leg 0", ShuttleState{Leg: 0, Progress: 0, Direction: -1})
	steps(1)
	expect("bounce on leg 0", ShuttleState{Leg: 0, Progress: 0, Direction: 1})
	steps(5)
	expect("second cycle", ShuttleState{Leg: 1, Progress: 0, Direction: 1})
}

func TestShuttleStateProgressAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	for trial := 0; trial < 200; trial++ {
		s := ShuttleState{
			Leg:       rng.IntN(2),
			Progress:  rng.Float64(),
			Direction: []int{-1, 1}[rng.IntN(2)],
		}
		speed := rng.Float64() * 0.3
		for frame := 0; frame < 500; frame++ {
			s = s.Step(speed)
			if s.Progress < 0 || s.Progress > 1 {
				t.Fatalf("trial %d frame %d: progress %v out of range", trial, frame, s.Progress)
			}
			if s.Leg < 0 || s.Leg > TerminalLeg {
				t.Fatalf("trial %d frame %d: leg %d out of range", trial, frame, s.Leg)
			}
			if s.Direction != 1 && s.Direction != -1 {
				t.Fatalf("trial %d frame %d: direction %d", trial, frame, s.Direction)
			}
		}
	}
}

func TestShuttleStateNeverTerminates(t *testing.T) {
	s := NewShuttleState()
	visits := map[int]int{}
	prevLeg := s.Leg
	for frame := 0; frame < 20000; frame++ {
		s = s.Step(0.002)
		if s.Leg != prevLeg {
			visits[s.Leg]++
			prevLeg = s.Leg
		}
	}
	if visits[0] < 2 || visits[1] < 2 {
		t.Fatalf("expected repeated leg changes, got %v", visits)
	}
}

func TestShuttleEndpointsFollowLeg(t *testing.T) {
	a, b := Vec3{1, 0, 0}, Vec3{0, 0, 2}
	from, to := ShuttleState{Leg: 0}.Endpoints(a, b)
	if from != a || to != b {
		t.Fatalf("leg 0 endpoints = %v→%v, want %v→%v", from, to, a, b)
	}
	from, to = ShuttleState{Leg: 1}.Endpoints(a, b)
	if from != b || to != a {
		t.Fatalf("leg 1 endpoints = %v→%v, want %v→%v", from, to, b, a)
	}
}

func TestShuttlePlaceUsesLiveEndpoints(t *testing.T) {
	sh := NewShuttle(0.1, 3, 0.001)
	a, b := Vec3{8, 0, 0}, Vec3{0, 0, 10}

	sh.Place(a, b)
	if sh.Position != a {
		t.Fatalf("position at progress 0 = %v, want %v", sh.Position, a)
	}
	if want := (Vec3{4, 3, 5}); sh.Control != want {
		t.Fatalf("control = %v, want %v", sh.Control, want)
	}

	// The bodies move; the same progress now maps onto the new endpoints.
	a2 := Vec3{0, 0, 8}
	sh.Place(a2, b)
	if sh.Position != a2 {
		t.Fatalf("position after endpoint moved = %v, want %v", sh.Position, a2)
	}
}

func TestShuttleFacesDirectionOfTravel(t *testing.T) {
	sh := NewShuttle(0.01, 0, 0.001)
	a, b := Vec3{0, 0, 0}, Vec3{10, 0, 0}
	sh.Advance(a, b)

	forward := sh.Rotation.Rotate(Vec3{0, 0, 1})
	if !near(forward, Vec3{1, 0, 0}, 1e-6) {
		t.Fatalf("forward = %v, want +X", forward)
	}
}

func TestShuttleKeepsOrientationOnZeroDirection(t *testing.T) {
	sh := NewShuttle(0.1, 0, 0.001)
	prev := mgl64.QuatRotate(0.7, Vec3{0, 1, 0})
	sh.Rotation = prev

	// Coincident endpoints with a flat control point collapse the curve.
	p := Vec3{3, 0, 3}
	sh.Advance(p, p)
	if sh.Rotation != prev {
		t.Fatalf("rotation changed to %v on a degenerate curve", sh.Rotation)
	}

	// At the end of a leg looking further ahead clamps onto the same point.
	sh = NewShuttle(0, 3, 0.001)
	sh.State = ShuttleState{Leg: 1, Progress: 1, Direction: 1}
	sh.Rotation = prev
	sh.Place(Vec3{1, 0, 0}, Vec3{0, 0, 1})
	if sh.Rotation != prev {
		t.Fatalf("rotation changed to %v at clamped look-ahead", sh.Rotation)
	}
}

func TestShuttleTrajectorySamplesActiveLeg(t *testing.T) {
	sh := NewShuttle(0.1, 3, 0.001)
	sh.State = ShuttleState{Leg: 1, Progress: 0.5, Direction: 1}
	a, b := Vec3{8, 0, 0}, Vec3{-10, 0, 0}
	sh.Place(a, b)

	pts := sh.Trajectory(nil, 100)
	if len(pts) != 101 {
		t.Fatalf("len = %d, want 101", len(pts))
	}
	if pts[0] != b || pts[100] != a {
		t.Fatalf("leg 1 trajectory runs %v→%v, want %v→%v", pts[0], pts[100], b, a)
	}
}
