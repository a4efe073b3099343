package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orrery/model"
)

// ErrInvalidTLE is returned when a two-line element set cannot be used.
var ErrInvalidTLE = errors.New("invalid TLE")

// MotionModel advances a body's position relative to its orbit centre (the
// origin, or the parent body for satellites) by one frame.
type MotionModel interface {
	// Step advances one frame ending at simTime and returns the new
	// local position.
	Step(simTime time.Time) Vec3
	// Position is the local position after the most recent Step.
	Position() Vec3
}

// StaticMotionModel never moves.
type StaticMotionModel struct {
	At Vec3
}

func (m *StaticMotionModel) Step(time.Time) Vec3 { return m.At }
func (m *StaticMotionModel) Position() Vec3      { return m.At }

// CircularMotionModel is the closed-form circular orbit. It ignores time
// and advances by a fixed angle per frame.
type CircularMotionModel struct {
	Orbit OrbitState
}

// NewCircularMotionModel places the body at angle on its orbit.
func NewCircularMotionModel(radius, speed, angle float64) *CircularMotionModel {
	return &CircularMotionModel{Orbit: OrbitState{Angle: angle, Speed: speed, Radius: radius}}
}

func (m *CircularMotionModel) Step(time.Time) Vec3 {
	m.Orbit = m.Orbit.Step()
	return m.Orbit.Position()
}

func (m *CircularMotionModel) Position() Vec3 { return m.Orbit.Position() }

// OrbitalSGP4MotionModel propagates a TLE with SGP4 and maps the satellite's
// direction onto a circle of fixed display radius, so a real orbit can be
// drawn at scene scale.
type OrbitalSGP4MotionModel struct {
	sat    satellite.Satellite
	radius float64
	pos    Vec3
}

// NewOrbitalModelFromTLE validates and parses the TLE. go-satellite aborts
// on malformed numeric fields, so they are checked here first.
func NewOrbitalModelFromTLE(line1, line2 string, displayRadius float64) (*OrbitalSGP4MotionModel, error) {
	if err := validateTLE(line1, line2); err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &OrbitalSGP4MotionModel{sat: sat, radius: displayRadius}, nil
}

// Step propagates to simTime. go-satellite works in an equatorial Z-up ECI
// frame; the scene is Y-up, so ECI (x, y, z) maps to scene (x, z, y).
// A propagation that yields no usable direction keeps the last position.
func (m *OrbitalSGP4MotionModel) Step(simTime time.Time) Vec3 {
	simTime = simTime.UTC()
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	eci, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	dir := Vec3{eci.X, eci.Z, eci.Y}
	l := dir.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return m.pos
	}
	m.pos = dir.Mul(m.radius / l)
	return m.pos
}

func (m *OrbitalSGP4MotionModel) Position() Vec3 { return m.pos }

// NewMotionModel chooses the motion rule for a body: SGP4 when it carries a
// TLE, a circular orbit otherwise. A body with no orbit radius is static.
func NewMotionModel(def *model.BodyDefinition, initialAngle float64) (MotionModel, error) {
	switch def.MotionSource() {
	case model.MotionSourceSpacetrack:
		m, err := NewOrbitalModelFromTLE(def.TLE.Line1, def.TLE.Line2, def.OrbitRadius)
		if err != nil {
			return nil, fmt.Errorf("body %q: %w", def.ID, err)
		}
		return m, nil
	default:
		if def.OrbitRadius == 0 {
			return &StaticMotionModel{}, nil
		}
		return NewCircularMotionModel(def.OrbitRadius, def.OrbitalSpeed, initialAngle), nil
	}
}

// tleFields are the fixed-column numeric fields go-satellite parses.
var tleFields = []struct {
	line       int
	start, end int
	name       string
	implied    bool // leading decimal point is implied
}{
	{1, 18, 32, "epoch", false},
	{2, 8, 16, "inclination", false},
	{2, 17, 25, "right ascension", false},
	{2, 26, 33, "eccentricity", true},
	{2, 34, 42, "argument of perigee", false},
	{2, 43, 51, "mean anomaly", false},
	{2, 52, 63, "mean motion", false},
}

func validateTLE(line1, line2 string) error {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")
	if len(line1) < 69 || len(line2) < 69 {
		return fmt.Errorf("%w: lines must be 69 columns", ErrInvalidTLE)
	}
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("%w: bad line numbers", ErrInvalidTLE)
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return fmt.Errorf("%w: catalog numbers differ", ErrInvalidTLE)
	}
	lines := [3]string{"", line1, line2}
	for _, f := range tleFields {
		raw := strings.TrimSpace(lines[f.line][f.start:f.end])
		if f.implied {
			raw = "." + raw
		}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidTLE, f.name, raw)
		}
	}
	return nil
}
