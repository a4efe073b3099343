package core

// OrbitState is the per-frame state of a body on a circular orbit. Angle is
// never wrapped; only sin/cos of it are consumed.
type OrbitState struct {
	Angle  float64 // radians
	Speed  float64 // radians per frame
	Radius float64
}

// Step advances the orbit by one frame. A zero speed is a stationary body.
func (s OrbitState) Step() OrbitState {
	s.Angle += s.Speed
	return s
}

// Position is the body's position relative to the orbit centre.
func (s OrbitState) Position() Vec3 {
	return OrbitPosition(s.Radius, s.Angle)
}

// SpinState is a constant-rate self rotation about +Y.
type SpinState struct {
	Angle float64
	Rate  float64
}

// Step advances the spin by one frame.
func (s SpinState) Step() SpinState {
	s.Angle += s.Rate
	return s
}

// SatelliteWorldPosition places a satellite's local position in world space.
// The local offset is expressed in the parent's frame, which has spun
// parentSpin radians about +Y. It matches what the scene graph composes and
// is used where world coordinates are consumed outside the graph.
func SatelliteWorldPosition(parentWorld Vec3, parentSpin float64, local Vec3) Vec3 {
	return parentWorld.Add(SpinY(parentSpin).Rotate(local))
}
