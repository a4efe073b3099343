package render

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/model"
)

// Camera is a perspective camera. It is not safe for concurrent use; each
// viewer owns its own copy.
type Camera struct {
	FOVDegrees float64
	Near, Far  float64
	Position   core.Vec3
	Target     core.Vec3
	Up         core.Vec3

	width, height int
	projection    mgl64.Mat4
	view          mgl64.Mat4
}

// CameraState is the serialisable view of a camera.
type CameraState struct {
	FOVDegrees float64     `json:"fov_degrees"`
	Aspect     float64     `json:"aspect"`
	Near       float64     `json:"near"`
	Far        float64     `json:"far"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Position   [3]float64  `json:"position"`
	Target     [3]float64  `json:"target"`
	Projection [16]float64 `json:"projection"`
	View       [16]float64 `json:"view"`
}

// NewCamera builds a camera from its definition. Zero viewports fall back
// to 1280×720.
func NewCamera(def model.CameraDefinition) *Camera {
	c := &Camera{
		FOVDegrees: def.FOVDegrees,
		Near:       def.Near,
		Far:        def.Far,
		Position:   def.Position.Array(),
		Target:     def.Target.Array(),
		Up:         core.Vec3{0, 1, 0},
	}
	w, h := def.Width, def.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}
	c.width, c.height = w, h
	c.updateProjection()
	c.updateView()
	return c
}

// Resize recomputes the projection for a new viewport. The view matrix is
// left untouched.
func (c *Camera) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize %dx%d: viewport must be positive", width, height)
	}
	c.width, c.height = width, height
	c.updateProjection()
	return nil
}

// LookAt moves the camera and recomputes the view matrix.
func (c *Camera) LookAt(position, target core.Vec3) {
	c.Position, c.Target = position, target
	c.updateView()
}

// Aspect is width/height of the current viewport.
func (c *Camera) Aspect() float64 {
	return float64(c.width) / float64(c.height)
}

// Viewport returns the current viewport size.
func (c *Camera) Viewport() (width, height int) {
	return c.width, c.height
}

func (c *Camera) Projection() mgl64.Mat4 { return c.projection }
func (c *Camera) View() mgl64.Mat4       { return c.view }

// Project maps a world point to viewport pixel coordinates, origin top
// left. ok is false for points behind the camera or outside the depth
// range. depth is the NDC z in [-1, 1].
func (c *Camera) Project(world core.Vec3) (x, y, depth float64, ok bool) {
	clip := c.projection.Mul4(c.view).Mul4x1(world.Vec4(1))
	if clip[3] <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	if ndc[2] < -1 || ndc[2] > 1 {
		return 0, 0, 0, false
	}
	x = (ndc[0] + 1) / 2 * float64(c.width)
	y = (1 - ndc[1]) / 2 * float64(c.height)
	return x, y, ndc[2], true
}

// PixelScale returns how many pixels one scene unit spans at the distance
// of world from the camera, for sizing sprites by perspective.
func (c *Camera) PixelScale(world core.Vec3) float64 {
	d := world.Sub(c.Position).Len()
	if d == 0 {
		return 0
	}
	f := 1 / mgl64.Clamp(math.Tan(mgl64.DegToRad(c.FOVDegrees)/2), 1e-6, 1e6)
	return f * float64(c.height) / 2 / d
}

// Clone returns an independent copy.
func (c *Camera) Clone() *Camera {
	cp := *c
	return &cp
}

// State snapshots the camera for serialisation.
func (c *Camera) State() CameraState {
	return CameraState{
		FOVDegrees: c.FOVDegrees,
		Aspect:     c.Aspect(),
		Near:       c.Near,
		Far:        c.Far,
		Width:      c.width,
		Height:     c.height,
		Position:   c.Position,
		Target:     c.Target,
		Projection: c.projection,
		View:       c.view,
	}
}

func (c *Camera) updateProjection() {
	c.projection = mgl64.Perspective(mgl64.DegToRad(c.FOVDegrees), c.Aspect(), c.Near, c.Far)
}

func (c *Camera) updateView() {
	c.view = mgl64.LookAtV(c.Position, c.Target, c.Up)
}
