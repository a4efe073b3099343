package core

import "github.com/go-gl/mathgl/mgl64"

// TerminalLeg is the last leg of the two-leg shuttle cycle (B→A).
const TerminalLeg = 1

// ShuttleState tracks a craft on a two-leg path. Leg 0 runs A→B and leg 1
// runs B→A; Progress is the curve parameter within the active leg.
type ShuttleState struct {
	Leg       int
	Progress  float64
	Direction int // +1 or -1
}

// NewShuttleState starts at A, heading forward along leg 0.
func NewShuttleState() ShuttleState {
	return ShuttleState{Leg: 0, Progress: 0, Direction: 1}
}

// Step advances progress by speed in the current direction and applies the
// leg transitions. Overshooting 1 moves on to the next leg from its start,
// except on the terminal leg where the craft turns back. Undershooting 0
// resumes the previous leg backward from its end, except on leg 0 where the
// craft turns forward again. The traversal never terminates.
func (s ShuttleState) Step(speed float64) ShuttleState {
	if s.Direction == 0 {
		s.Direction = 1
	}
	s.Progress += speed * float64(s.Direction)

	if s.Progress > 1 {
		s.Progress = 1
		if s.Leg < TerminalLeg {
			s.Leg++
			s.Progress = 0
			s.Direction = 1
		} else {
			s.Direction = -1
		}
	}
	if s.Progress < 0 {
		s.Progress = 0
		if s.Leg > 0 {
			s.Leg--
			s.Progress = 1
			s.Direction = -1
		} else {
			s.Direction = 1
		}
	}
	return s
}

// Endpoints orders the two body positions for the active leg.
func (s ShuttleState) Endpoints(a, b Vec3) (from, to Vec3) {
	if s.Leg == 0 {
		return a, b
	}
	return b, a
}

// Shuttle couples the path state with the craft's pose. Endpoints are
// passed in every frame because both bodies keep moving; nothing about the
// curve is cached between frames.
type Shuttle struct {
	State     ShuttleState
	Speed     float64
	Height    float64 // control point Y
	LookAhead float64 // ε used for the facing sample

	Position Vec3
	Rotation mgl64.Quat
	From     Vec3
	To       Vec3
	Control  Vec3
}

// NewShuttle returns a shuttle at the start of leg 0 with identity rotation.
func NewShuttle(speed, height, lookAhead float64) *Shuttle {
	return &Shuttle{
		State:     NewShuttleState(),
		Speed:     speed,
		Height:    height,
		LookAhead: lookAhead,
		Rotation:  Identity,
	}
}

// Advance runs one frame against the current positions of bodies A and B.
func (sh *Shuttle) Advance(a, b Vec3) {
	sh.State = sh.State.Step(sh.Speed)
	sh.Place(a, b)
}

// Place recomputes the pose for the current state without stepping it.
func (sh *Shuttle) Place(a, b Vec3) {
	sh.From, sh.To = sh.State.Endpoints(a, b)
	sh.Control = ControlPoint(sh.From, sh.To, sh.Height)
	sh.Position = Bezier(sh.State.Progress, sh.From, sh.Control, sh.To)

	nextT := Clamp01(sh.State.Progress + sh.LookAhead*float64(sh.State.Direction))
	next := Bezier(nextT, sh.From, sh.Control, sh.To)
	if q, ok := LookRotation(next.Sub(sh.Position), Vec3{0, 1, 0}); ok {
		sh.Rotation = q
	}
}

// Trajectory samples the active leg's curve into dst.
func (sh *Shuttle) Trajectory(dst []Vec3, segments int) []Vec3 {
	return SampleBezier(dst, segments, sh.From, sh.Control, sh.To)
}
