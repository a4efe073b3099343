package render

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
)

func mustNode(t *testing.T, g *Graph, id string, kind NodeKind) {
	t.Helper()
	if err := g.CreateNode(id, kind); err != nil {
		t.Fatalf("CreateNode(%q): %v", id, err)
	}
}

func vecNear(a, b [3]float64, tol float64) bool {
	return core.Vec3(a).Sub(core.Vec3(b)).Len() <= tol
}

func TestGraphComposesWorldPositions(t *testing.T) {
	g := NewGraph()
	mustNode(t, g, "earth", NodeGroup)
	mustNode(t, g, "earth/mesh", NodeBody)
	mustNode(t, g, "moon", NodeGroup)
	if err := g.Attach("earth", "earth/mesh"); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := g.Attach("earth", "moon"); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	_ = g.SetPosition("earth", core.Vec3{8, 0, 0})
	_ = g.SetRotation("earth/mesh", mgl64.QuatRotate(1.2, core.Vec3{0, 1, 0}))
	_ = g.SetPosition("moon", core.Vec3{0, 0, 1.2})

	f, err := g.Render(nil, FrameInfo{Frame: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	moon, ok := f.Node("moon")
	if !ok {
		t.Fatalf("moon missing from frame")
	}
	// The mesh spin is a sibling of the moon and does not carry it along.
	if !vecNear(moon.World, [3]float64{8, 0, 1.2}, 1e-12) {
		t.Fatalf("moon world = %v, want (8, 0, 1.2)", moon.World)
	}
	if moon.Parent != "earth" || moon.Position != [3]float64{0, 0, 1.2} {
		t.Fatalf("moon node = %+v", moon)
	}
}

func TestGraphParentRotationCarriesChildren(t *testing.T) {
	g := NewGraph()
	mustNode(t, g, "pivot", NodeGroup)
	mustNode(t, g, "arm", NodeGroup)
	_ = g.Attach("pivot", "arm")
	_ = g.SetRotation("pivot", mgl64.QuatRotate(math.Pi/2, core.Vec3{0, 1, 0}))
	_ = g.SetPosition("arm", core.Vec3{1, 0, 0})

	f, _ := g.Render(nil, FrameInfo{})
	arm, _ := f.Node("arm")
	// +90° about Y maps +X onto -Z.
	if !vecNear(arm.World, [3]float64{0, 0, -1}, 1e-12) {
		t.Fatalf("arm world = %v, want (0, 0, -1)", arm.World)
	}
}

func TestGraphRenderCopiesBuffers(t *testing.T) {
	g := NewGraph()
	mustNode(t, g, StarsID, NodeStars)
	mustNode(t, g, "ship"+TrajectorySuffix, NodeTrajectory)

	stars := []float32{1, 2, 3}
	path := []core.Vec3{{0, 0, 0}, {1, 1, 1}}
	_ = g.SetPoints(StarsID, stars)
	_ = g.SetPath("ship"+TrajectorySuffix, path)

	f, _ := g.Render(nil, FrameInfo{})
	stars[0] = 99
	path[1] = core.Vec3{5, 5, 5}

	if f.Stars[0] != 1 {
		t.Fatalf("frame stars aliased caller buffer: %v", f.Stars)
	}
	if f.Trajectory[1] != [3]float64{1, 1, 1} {
		t.Fatalf("frame trajectory aliased caller buffer: %v", f.Trajectory)
	}
}

func TestGraphSequence(t *testing.T) {
	g := NewGraph()
	mustNode(t, g, "sun", NodeBody)

	if g.Last() != nil {
		t.Fatalf("Last() before first render should be nil")
	}
	for i := 1; i <= 3; i++ {
		f, err := g.Render(nil, FrameInfo{Frame: uint64(i)})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if f.Seq != uint64(i) {
			t.Fatalf("Seq = %d, want %d", f.Seq, i)
		}
	}
	if g.Last().Seq != 3 || g.Len() != 1 {
		t.Fatalf("Last().Seq = %d, Len() = %d", g.Last().Seq, g.Len())
	}
}

func TestGraphErrors(t *testing.T) {
	g := NewGraph()
	mustNode(t, g, "a", NodeGroup)
	mustNode(t, g, "b", NodeGroup)

	if err := g.CreateNode("a", NodeGroup); !errors.Is(err, ErrNodeExists) {
		t.Fatalf("duplicate CreateNode err = %v", err)
	}
	if err := g.SetPosition("zzz", core.Vec3{}); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("SetPosition unknown err = %v", err)
	}
	if err := g.Attach("a", "zzz"); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("Attach unknown child err = %v", err)
	}
	if err := g.Attach("a", "b"); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := g.Attach("b", "a"); err == nil {
		t.Fatalf("expected cycle to be rejected")
	}
}

func TestGraphReattachMovesChild(t *testing.T) {
	g := NewGraph()
	mustNode(t, g, "a", NodeGroup)
	mustNode(t, g, "b", NodeGroup)
	mustNode(t, g, "c", NodeGroup)
	_ = g.SetPosition("a", core.Vec3{1, 0, 0})
	_ = g.SetPosition("b", core.Vec3{0, 1, 0})
	_ = g.Attach("a", "c")
	_ = g.Attach("b", "c")

	f, _ := g.Render(nil, FrameInfo{})
	if len(f.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3 (child rendered once)", len(f.Nodes))
	}
	c, _ := f.Node("c")
	if c.World != [3]float64{0, 1, 0} {
		t.Fatalf("c world = %v, want (0, 1, 0)", c.World)
	}
}

func TestFrameNodeWithoutIndex(t *testing.T) {
	f := &Frame{Nodes: []NodeState{{ID: "sun"}, {ID: "earth"}}}
	if n, ok := f.Node("earth"); !ok || n.ID != "earth" {
		t.Fatalf("Node(earth) = %+v, %v", n, ok)
	}
	if _, ok := f.Node("pluto"); ok {
		t.Fatalf("Node(pluto) found")
	}
}
