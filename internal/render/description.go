package render

import (
	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/model"
)

// Node id suffixes for the helper nodes hung off each body.
const (
	MeshSuffix       = "/mesh"
	LabelSuffix      = "/label"
	RingSuffix       = "/ring"
	OrbitSuffix      = "/orbit"
	TrajectorySuffix = "/trajectory"

	StarsID = "stars"
	CubeID  = "cube"
)

// BodyDescription is the static appearance of one body.
type BodyDescription struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Kind        model.BodyKind   `json:"kind"`
	Radius      float64          `json:"radius"`
	OrbitRadius float64          `json:"orbit_radius"`
	Color       string           `json:"color"`
	Parent      string           `json:"parent,omitempty"`
	Label       string           `json:"label,omitempty"`
	LabelOffset float64          `json:"label_offset,omitempty"`
	Ring        *RingDescription `json:"ring,omitempty"`
	OrbitGuide  [][3]float64     `json:"orbit_guide,omitempty"`
	GuideColor  string           `json:"guide_color,omitempty"`
}

// RingDescription is a torus drawn around a body in its equatorial plane.
type RingDescription struct {
	Radius     float64 `json:"radius"`
	TubeRadius float64 `json:"tube_radius"`
	Color      string  `json:"color"`
}

// StarfieldDescription is the static part of the point cloud.
type StarfieldDescription struct {
	Count       int     `json:"count"`
	InnerRadius float64 `json:"inner_radius"`
	OuterRadius float64 `json:"outer_radius"`
	Color       string  `json:"color"`
	PointSize   float64 `json:"point_size"`
}

// ShuttleDescription is the static part of the shuttle.
type ShuttleDescription struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	Color    string `json:"color"`
	Segments int    `json:"segments"`
}

// Description tells a renderer how to build its meshes once. Per-frame
// state arrives in Frame.
type Description struct {
	Name      string                `json:"name"`
	Kind      model.SceneKind       `json:"kind"`
	Bodies    []BodyDescription     `json:"bodies"`
	Starfield *StarfieldDescription `json:"starfield,omitempty"`
	Shuttle   *ShuttleDescription   `json:"shuttle,omitempty"`
	Camera    CameraState           `json:"camera"`
}

// Body returns the description of the named body.
func (d *Description) Body(id string) (BodyDescription, bool) {
	for _, b := range d.Bodies {
		if b.ID == id {
			return b, true
		}
	}
	return BodyDescription{}, false
}

// Describe builds the static description of a scene. Orbit guides are
// drawn dimmer than the body colour.
func Describe(def *model.SceneDefinition, cam *Camera) *Description {
	d := &Description{
		Name:   def.Name,
		Kind:   def.Kind,
		Bodies: make([]BodyDescription, 0, len(def.Bodies)),
	}
	if cam != nil {
		d.Camera = cam.State()
	}

	for i := range def.Bodies {
		b := &def.Bodies[i]
		bd := BodyDescription{
			ID:          b.ID,
			Name:        b.Name,
			Kind:        b.Kind,
			Radius:      b.Radius,
			OrbitRadius: b.OrbitRadius,
			Color:       b.Color.Hex(),
			Parent:      b.Parent,
			Label:       b.Label,
			LabelOffset: b.LabelOffset,
		}
		if b.Ring != nil {
			bd.Ring = &RingDescription{
				Radius:     b.Radius + b.Ring.Offset,
				TubeRadius: b.Ring.TubeRadius,
				Color:      b.Ring.Color.Hex(),
			}
		}
		if b.OrbitRadius > 0 {
			guide := core.OrbitGuide(b.OrbitRadius, def.OrbitSegments)
			bd.OrbitGuide = make([][3]float64, len(guide))
			for j, p := range guide {
				bd.OrbitGuide[j] = p
			}
			bd.GuideColor = b.Color.Dim(0.6).Hex()
		}
		d.Bodies = append(d.Bodies, bd)
	}

	if sf := def.Starfield; sf != nil {
		d.Starfield = &StarfieldDescription{
			Count:       sf.Count,
			InnerRadius: sf.InnerRadius,
			OuterRadius: sf.OuterRadius,
			Color:       sf.Color.Hex(),
			PointSize:   sf.PointSize,
		}
	}
	if sh := def.Shuttle; sh != nil {
		d.Shuttle = &ShuttleDescription{
			ID:       sh.ID,
			Label:    sh.Label,
			From:     sh.From,
			To:       sh.To,
			Color:    sh.Color.Hex(),
			Segments: sh.Segments,
		}
	}
	return d
}
