// Package sketch flattens a rendered frame into 2D drawing primitives for
// one camera. It has no windowing dependency so the projection can be
// exercised headless; the desktop viewer only rasterises the result.
package sketch

import (
	"image/color"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/model"
)

const (
	ringSegments   = 48
	shuttleRadius  = 0.15
	minBodyPixels  = 1.5
	minStarPixels  = 1
	cubeHalfExtent = 0.5
)

// Polyline is a connected run of projected points.
type Polyline struct {
	Points [][2]float32
	Color  color.Color
}

// Circle is a filled disc. Depth is NDC z; larger is farther.
type Circle struct {
	ID    string
	X, Y  float32
	R     float32
	Depth float64
	Color color.Color
}

// Point is one star sprite.
type Point struct {
	X, Y, Size float32
}

// Label is text anchored at its top-left corner.
type Label struct {
	Text string
	X, Y int
}

// Sketch is everything a 2D painter needs for one frame. Circles are
// ordered far to near.
type Sketch struct {
	Width, Height int
	Polylines     []Polyline
	Circles       []Circle
	Stars         []Point
	StarColor     color.Color
	Labels        []Label
}

// Painter caches per-scene colours and builds sketches.
type Painter struct {
	desc   *render.Description
	colors map[string]color.Color
}

// NewPainter prepares a painter for the scene in desc.
func NewPainter(desc *render.Description) *Painter {
	p := &Painter{desc: desc, colors: make(map[string]color.Color)}
	for _, b := range desc.Bodies {
		p.colors[b.ID] = parse(b.Color)
		p.colors[b.ID+render.OrbitSuffix] = parse(b.GuideColor)
		if b.Ring != nil {
			p.colors[b.ID+render.RingSuffix] = parse(b.Ring.Color)
		}
	}
	if sh := desc.Shuttle; sh != nil {
		p.colors[sh.ID] = parse(sh.Color)
	}
	if sf := desc.Starfield; sf != nil {
		p.colors[render.StarsID] = parse(sf.Color)
	}
	return p
}

func parse(hex string) color.Color {
	if hex == "" {
		return color.White
	}
	c, err := model.ParseColor(hex)
	if err != nil {
		return color.White
	}
	return c
}

func (p *Painter) color(id string) color.Color {
	if c, ok := p.colors[id]; ok {
		return c
	}
	return color.White
}

// Build projects f through cam.
func (p *Painter) Build(f *render.Frame, cam *render.Camera) *Sketch {
	w, h := cam.Viewport()
	s := &Sketch{Width: w, Height: h, StarColor: p.color(render.StarsID)}
	if f == nil {
		return s
	}
	if p.desc.Kind == model.SceneKindCube {
		p.cube(s, f, cam)
		return s
	}

	p.stars(s, f, cam)
	for _, b := range p.desc.Bodies {
		if len(b.OrbitGuide) == 0 {
			continue
		}
		var origin core.Vec3
		if n, ok := f.Node(b.ID + render.OrbitSuffix); ok {
			origin = n.World
		}
		pts := make([]core.Vec3, len(b.OrbitGuide))
		for i, g := range b.OrbitGuide {
			pts[i] = origin.Add(g)
		}
		s.addPath(cam, pts, p.color(b.ID+render.OrbitSuffix))
	}

	for _, b := range p.desc.Bodies {
		n, ok := f.Node(b.ID)
		if !ok {
			continue
		}
		world := core.Vec3(n.World)
		if b.Ring != nil {
			guide := core.OrbitGuide(b.Ring.Radius, ringSegments)
			for i := range guide {
				guide[i] = world.Add(guide[i])
			}
			s.addPath(cam, guide, p.color(b.ID+render.RingSuffix))
		}
		s.addDisc(cam, b.ID, world, b.Radius, minBodyPixels, p.color(b.ID))
		if b.Label != "" {
			s.addLabel(cam, f, b.ID+render.LabelSuffix, b.Label)
		}
	}

	if sh := p.desc.Shuttle; sh != nil {
		if len(f.Trajectory) > 1 {
			pts := make([]core.Vec3, len(f.Trajectory))
			for i, t := range f.Trajectory {
				pts[i] = t
			}
			s.addPath(cam, pts, p.color(sh.ID))
		}
		if n, ok := f.Node(sh.ID); ok {
			s.addDisc(cam, sh.ID, n.World, shuttleRadius, minBodyPixels, p.color(sh.ID))
		}
		if sh.Label != "" {
			s.addLabel(cam, f, sh.ID+render.LabelSuffix, sh.Label)
		}
	}

	sort.SliceStable(s.Circles, func(i, j int) bool { return s.Circles[i].Depth > s.Circles[j].Depth })
	return s
}

func (p *Painter) stars(s *Sketch, f *render.Frame, cam *render.Camera) {
	size := 0.5
	if sf := p.desc.Starfield; sf != nil && sf.PointSize > 0 {
		size = sf.PointSize
	}
	for i := 0; i+2 < len(f.Stars); i += 3 {
		pos := core.Vec3{float64(f.Stars[i]), float64(f.Stars[i+1]), float64(f.Stars[i+2])}
		x, y, _, ok := cam.Project(pos)
		if !ok {
			continue
		}
		px := max(float32(size*cam.PixelScale(pos)), minStarPixels)
		s.Stars = append(s.Stars, Point{X: float32(x), Y: float32(y), Size: px})
	}
}

var cubeEdges = [12][2]int{
	{0, 1}, {1, 3}, {3, 2}, {2, 0},
	{4, 5}, {5, 7}, {7, 6}, {6, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

func (p *Painter) cube(s *Sketch, f *render.Frame, cam *render.Camera) {
	n, ok := f.Node(render.CubeID)
	if !ok {
		return
	}
	q := mgl64.Quat{W: n.Rotation[3], V: mgl64.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}}
	var corners [8]core.Vec3
	for i := range corners {
		c := core.Vec3{-cubeHalfExtent, -cubeHalfExtent, -cubeHalfExtent}
		if i&1 != 0 {
			c[0] = cubeHalfExtent
		}
		if i&2 != 0 {
			c[1] = cubeHalfExtent
		}
		if i&4 != 0 {
			c[2] = cubeHalfExtent
		}
		corners[i] = core.Vec3(n.World).Add(q.Rotate(c))
	}
	green := color.RGBA{G: 0xff, A: 0xff}
	for _, e := range cubeEdges {
		s.addPath(cam, []core.Vec3{corners[e[0]], corners[e[1]]}, green)
	}
}

// addPath projects pts, splitting the line wherever a point is not visible.
func (s *Sketch) addPath(cam *render.Camera, pts []core.Vec3, c color.Color) {
	var run [][2]float32
	flush := func() {
		if len(run) > 1 {
			s.Polylines = append(s.Polylines, Polyline{Points: run, Color: c})
		}
		run = nil
	}
	for _, pt := range pts {
		x, y, _, ok := cam.Project(pt)
		if !ok {
			flush()
			continue
		}
		run = append(run, [2]float32{float32(x), float32(y)})
	}
	flush()
}

func (s *Sketch) addDisc(cam *render.Camera, id string, world core.Vec3, radius, minPixels float64, c color.Color) {
	x, y, depth, ok := cam.Project(world)
	if !ok {
		return
	}
	r := max(radius*cam.PixelScale(world), minPixels)
	s.Circles = append(s.Circles, Circle{ID: id, X: float32(x), Y: float32(y), R: float32(r), Depth: depth, Color: c})
}

func (s *Sketch) addLabel(cam *render.Camera, f *render.Frame, nodeID, text string) {
	n, ok := f.Node(nodeID)
	if !ok {
		return
	}
	x, y, _, ok := cam.Project(n.World)
	if !ok {
		return
	}
	// centre the debug font's 6px glyphs over the anchor
	s.Labels = append(s.Labels, Label{Text: text, X: int(x) - 3*len(text), Y: int(y) - 16})
}
