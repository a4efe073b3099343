package render

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
)

var (
	ErrNodeExists   = errors.New("node already exists")
	ErrNodeNotFound = errors.New("node not found")
)

// NodeKind tells renderers what a node draws.
type NodeKind string

const (
	NodeGroup      NodeKind = "group"
	NodeBody       NodeKind = "body"
	NodeRing       NodeKind = "ring"
	NodeLabel      NodeKind = "label"
	NodeOrbitGuide NodeKind = "orbit_guide"
	NodeStars      NodeKind = "stars"
	NodeShuttle    NodeKind = "shuttle"
	NodeTrajectory NodeKind = "trajectory"
	NodeCube       NodeKind = "cube"
)

// SceneGraph is the retained scene the animator drives. Positions and
// rotations are local to the parent node.
type SceneGraph interface {
	CreateNode(id string, kind NodeKind) error
	Attach(parent, child string) error
	SetPosition(id string, p core.Vec3) error
	SetRotation(id string, q mgl64.Quat) error
	// SetPoints replaces a point cloud's flat xyz buffer. The slice is
	// copied at Render.
	SetPoints(id string, xyz []float32) error
	// SetPath replaces a polyline. The slice is copied at Render.
	SetPath(id string, pts []core.Vec3) error
	Render(cam *Camera, info FrameInfo) (*Frame, error)
}

// Sink receives every published frame. Frames are immutable and shared
// between sinks; DeliverFrame must not block.
type Sink interface {
	DeliverFrame(f *Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(f *Frame)

func (fn SinkFunc) DeliverFrame(f *Frame) { fn(f) }

// FrameInfo is the animator state stamped onto a frame.
type FrameInfo struct {
	Frame   uint64
	SimTime time.Time
	Paused  bool
	Shuttle *ShuttleInfo
}

// ShuttleInfo mirrors the shuttle state machine.
type ShuttleInfo struct {
	ID        string  `json:"id"`
	Leg       int     `json:"leg"`
	Progress  float64 `json:"progress"`
	Direction int     `json:"direction"`
}

// NodeState is one node in a frame snapshot.
type NodeState struct {
	ID       string     `json:"id"`
	Kind     NodeKind   `json:"kind"`
	Parent   string     `json:"parent,omitempty"`
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"` // x, y, z, w
	World    [3]float64 `json:"world"`
}

// Frame is an immutable snapshot of the scene after one render.
type Frame struct {
	Seq        uint64       `json:"seq"`
	SimTime    time.Time    `json:"sim_time"`
	Paused     bool         `json:"paused"`
	Nodes      []NodeState  `json:"nodes"`
	Stars      []float32    `json:"stars,omitempty"`
	Trajectory [][3]float64 `json:"trajectory,omitempty"`
	Shuttle    *ShuttleInfo `json:"shuttle,omitempty"`
	Camera     CameraState  `json:"camera"`

	index map[string]int
}

// Node returns the named node state.
func (f *Frame) Node(id string) (NodeState, bool) {
	if f == nil {
		return NodeState{}, false
	}
	if f.index == nil {
		// decoded frames carry no index
		for _, n := range f.Nodes {
			if n.ID == id {
				return n, true
			}
		}
		return NodeState{}, false
	}
	i, ok := f.index[id]
	if !ok {
		return NodeState{}, false
	}
	return f.Nodes[i], true
}

type node struct {
	id       string
	kind     NodeKind
	parent   string
	children []string
	position core.Vec3
	rotation mgl64.Quat
	points   []float32
	path     []core.Vec3
}

// Graph is an in-memory SceneGraph that composes world transforms into
// Frame snapshots.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]*node
	order []string

	seq  uint64
	last *Frame
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

func (g *Graph) CreateNode(id string, kind NodeKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id == "" {
		return fmt.Errorf("create node: empty id")
	}
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("create %q: %w", id, ErrNodeExists)
	}
	g.nodes[id] = &node{id: id, kind: kind, rotation: mgl64.QuatIdent()}
	g.order = append(g.order, id)
	return nil
}

// Attach makes child a child of parent, detaching it from any previous
// parent. Cycles are rejected.
func (g *Graph) Attach(parent, child string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.nodes[parent]
	if !ok {
		return fmt.Errorf("attach to %q: %w", parent, ErrNodeNotFound)
	}
	c, ok := g.nodes[child]
	if !ok {
		return fmt.Errorf("attach %q: %w", child, ErrNodeNotFound)
	}
	for cur := p; cur != nil; cur = g.nodes[cur.parent] {
		if cur.id == child {
			return fmt.Errorf("attach %q under %q: would create a cycle", child, parent)
		}
	}
	if c.parent != "" {
		old := g.nodes[c.parent]
		for i, id := range old.children {
			if id == child {
				old.children = append(old.children[:i], old.children[i+1:]...)
				break
			}
		}
	}
	c.parent = parent
	p.children = append(p.children, child)
	return nil
}

func (g *Graph) SetPosition(id string, pos core.Vec3) error {
	return g.update(id, func(n *node) { n.position = pos })
}

func (g *Graph) SetRotation(id string, q mgl64.Quat) error {
	return g.update(id, func(n *node) { n.rotation = q })
}

func (g *Graph) SetPoints(id string, xyz []float32) error {
	return g.update(id, func(n *node) { n.points = xyz })
}

func (g *Graph) SetPath(id string, pts []core.Vec3) error {
	return g.update(id, func(n *node) { n.path = pts })
}

func (g *Graph) update(id string, fn func(*node)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("update %q: %w", id, ErrNodeNotFound)
	}
	fn(n)
	return nil
}

// Render composes world transforms parent-first and snapshots the graph.
// Point and path buffers are copied so callers may keep mutating theirs.
func (g *Graph) Render(cam *Camera, info FrameInfo) (*Frame, error) {
	g.mu.Lock()
	g.seq++
	f := &Frame{
		Seq:     g.seq,
		SimTime: info.SimTime,
		Paused:  info.Paused,
		Nodes:   make([]NodeState, 0, len(g.order)),
		index:   make(map[string]int, len(g.order)),
	}
	if info.Shuttle != nil {
		s := *info.Shuttle
		f.Shuttle = &s
	}
	if cam != nil {
		f.Camera = cam.State()
	}

	for _, id := range g.order {
		if g.nodes[id].parent == "" {
			g.compose(id, mgl64.Ident4(), f)
		}
	}
	g.last = f
	g.mu.Unlock()
	return f, nil
}

func (g *Graph) compose(id string, parentWorld mgl64.Mat4, f *Frame) {
	n := g.nodes[id]
	local := mgl64.Translate3D(n.position[0], n.position[1], n.position[2]).Mul4(n.rotation.Mat4())
	world := parentWorld.Mul4(local)

	f.index[id] = len(f.Nodes)
	f.Nodes = append(f.Nodes, NodeState{
		ID:       id,
		Kind:     n.kind,
		Parent:   n.parent,
		Position: n.position,
		Rotation: [4]float64{n.rotation.V[0], n.rotation.V[1], n.rotation.V[2], n.rotation.W},
		World:    world.Col(3).Vec3(),
	})

	switch n.kind {
	case NodeStars:
		if n.points != nil {
			f.Stars = append([]float32(nil), n.points...)
		}
	case NodeTrajectory:
		if n.path != nil {
			f.Trajectory = make([][3]float64, len(n.path))
			for i, p := range n.path {
				f.Trajectory[i] = world.Mul4x1(p.Vec4(1)).Vec3()
			}
		}
	}

	for _, c := range n.children {
		g.compose(c, world, f)
	}
}

// Last returns the most recent frame, or nil before the first Render.
func (g *Graph) Last() *Frame {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Len reports the number of nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}
