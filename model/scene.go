package model

import "time"

// MotionSource indicates how a body's position is determined.
type MotionSource int

const (
	MotionSourceCircular   MotionSource = iota // closed-form circular orbit
	MotionSourceSpacetrack                     // TLE-based orbit propagation
)

// BodyKind is the visual class of a body. It only affects defaults
// (label height, spin) and how renderers draw it.
type BodyKind string

const (
	BodyKindStar   BodyKind = "star"
	BodyKindPlanet BodyKind = "planet"
	BodyKindMoon   BodyKind = "moon"
)

// SceneKind selects which animator a definition builds.
type SceneKind string

const (
	SceneKindSolar SceneKind = "solar"
	SceneKindCube  SceneKind = "cube"
)

// Position is a point in scene units. Y is up; orbits lie in the XZ plane.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// PositionOf converts an xyz triple (as used by the vector math) to a
// Position.
func PositionOf(v [3]float64) Position {
	return Position{X: v[0], Y: v[1], Z: v[2]}
}

// Array returns p as an xyz triple.
func (p Position) Array() [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

// TLE is a two-line element set.
type TLE struct {
	Line1 string `json:"line1" yaml:"line1"`
	Line2 string `json:"line2" yaml:"line2"`
}

// RingDefinition describes a torus highlight drawn around a body.
type RingDefinition struct {
	// Offset is added to the body radius to get the ring's major radius.
	Offset     float64 `json:"offset" yaml:"offset"`
	TubeRadius float64 `json:"tube_radius" yaml:"tube_radius"`
	Color      Color   `json:"color" yaml:"color"`
}

// BodyDefinition is the static configuration of one orbiting body. A body
// with a Parent is a satellite whose orbit is relative to that parent.
type BodyDefinition struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Kind         BodyKind `json:"kind" yaml:"kind"`
	Radius       float64  `json:"radius" yaml:"radius"`
	OrbitRadius  float64  `json:"orbit_radius" yaml:"orbit_radius"`
	OrbitalSpeed float64  `json:"orbital_speed" yaml:"orbital_speed"` // radians per frame
	SpinRate     float64  `json:"spin_rate" yaml:"spin_rate"`         // radians per frame about Y
	Color        Color    `json:"color" yaml:"color"`

	// InitialAngle pins the starting orbital angle. When nil the scene
	// builder draws one uniformly from [0, 2π).
	InitialAngle *float64 `json:"initial_angle,omitempty" yaml:"initial_angle,omitempty"`

	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`

	// Label is the sprite text; empty means no label. LabelOffset is the
	// height above the body centre, 0 picks a default from Kind.
	Label       string  `json:"label,omitempty" yaml:"label,omitempty"`
	LabelOffset float64 `json:"label_offset,omitempty" yaml:"label_offset,omitempty"`

	Ring *RingDefinition `json:"ring,omitempty" yaml:"ring,omitempty"`

	// TLE switches the body to SGP4 propagation. OrbitRadius still sets
	// the displayed distance from the parent.
	TLE *TLE `json:"tle,omitempty" yaml:"tle,omitempty"`
}

// MotionSource reports which motion rule drives the body.
func (b *BodyDefinition) MotionSource() MotionSource {
	if b.TLE != nil && b.TLE.Line1 != "" && b.TLE.Line2 != "" {
		return MotionSourceSpacetrack
	}
	return MotionSourceCircular
}

// StarfieldDefinition configures the drifting point cloud.
type StarfieldDefinition struct {
	Count       int     `json:"count" yaml:"count"`
	InnerRadius float64 `json:"inner_radius" yaml:"inner_radius"`
	OuterRadius float64 `json:"outer_radius" yaml:"outer_radius"`
	MaxVelocity float64 `json:"max_velocity" yaml:"max_velocity"` // per axis, per frame
	Damping     float64 `json:"damping" yaml:"damping"`
	Seed        uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	Color       Color   `json:"color" yaml:"color"`
	PointSize   float64 `json:"point_size" yaml:"point_size"`
}

// ShuttleDefinition configures the craft that ping-pongs between two bodies.
type ShuttleDefinition struct {
	ID            string  `json:"id" yaml:"id"`
	Label         string  `json:"label,omitempty" yaml:"label,omitempty"`
	From          string  `json:"from" yaml:"from"`
	To            string  `json:"to" yaml:"to"`
	Speed         float64 `json:"speed" yaml:"speed"` // progress per frame
	ControlHeight float64 `json:"control_height" yaml:"control_height"`
	LookAhead     float64 `json:"look_ahead" yaml:"look_ahead"`
	Segments      int     `json:"segments" yaml:"segments"` // trajectory samples per frame
	Color         Color   `json:"color" yaml:"color"`
}

// CameraDefinition configures the perspective camera.
type CameraDefinition struct {
	FOVDegrees float64  `json:"fov_degrees" yaml:"fov_degrees"`
	Near       float64  `json:"near" yaml:"near"`
	Far        float64  `json:"far" yaml:"far"`
	Position   Position `json:"position" yaml:"position"`
	Target     Position `json:"target" yaml:"target"`
	Width      int      `json:"width" yaml:"width"`
	Height     int      `json:"height" yaml:"height"`
}

// ClockDefinition maps frames onto simulation time for time-based motion.
type ClockDefinition struct {
	Epoch        time.Time `json:"epoch" yaml:"epoch"`
	FrameSeconds float64   `json:"frame_seconds" yaml:"frame_seconds"` // simulated seconds per frame
}

// FrameDuration is the simulated time covered by one frame.
func (c ClockDefinition) FrameDuration() time.Duration {
	return time.Duration(c.FrameSeconds * float64(time.Second))
}

// SceneDefinition is everything needed to build one animated scene.
type SceneDefinition struct {
	Name          string               `json:"name" yaml:"name"`
	Kind          SceneKind            `json:"kind" yaml:"kind"`
	Bodies        []BodyDefinition     `json:"bodies" yaml:"bodies"`
	Starfield     *StarfieldDefinition `json:"starfield,omitempty" yaml:"starfield,omitempty"`
	Shuttle       *ShuttleDefinition   `json:"shuttle,omitempty" yaml:"shuttle,omitempty"`
	Camera        CameraDefinition     `json:"camera" yaml:"camera"`
	Clock         ClockDefinition      `json:"clock" yaml:"clock"`
	OrbitSegments int                  `json:"orbit_segments" yaml:"orbit_segments"`
	Seed          uint64               `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Body returns the definition with the given ID, or nil.
func (s *SceneDefinition) Body(id string) *BodyDefinition {
	for i := range s.Bodies {
		if s.Bodies[i].ID == id {
			return &s.Bodies[i]
		}
	}
	return nil
}
