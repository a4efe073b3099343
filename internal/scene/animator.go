// Package scene builds an animated scene from a definition and advances it
// one frame per tick.
package scene

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

var (
	// ErrNoFrame is returned before the first frame has been rendered.
	ErrNoFrame = errors.New("no frame rendered yet")
	// ErrBodyNotFound indicates a requested body does not exist.
	ErrBodyNotFound = kb.ErrBodyNotFound
)

const (
	shuttleLabelOffset = 0.5
	cubeSpin           = 0.01
)

// MetricsRecorder receives per-frame animator measurements.
// *observability.SceneCollector satisfies it.
type MetricsRecorder interface {
	ObserveFrame(d time.Duration, recycled int, shuttleLeg int)
	SetBodies(n int)
	SetPaused(paused bool)
}

// Option customises Animator construction.
type Option func(*Animator)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Animator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(a *Animator) {
		a.metrics = m
	}
}

// WithRand supplies the source for random initial angles and star seeding.
func WithRand(r *rand.Rand) Option {
	return func(a *Animator) {
		a.rng = r
	}
}

// WithGraph replaces the in-memory scene graph.
func WithGraph(g render.SceneGraph) Option {
	return func(a *Animator) {
		if g != nil {
			a.graph = g
		}
	}
}

// WithStore makes the animator commit into an existing body store.
func WithStore(s *kb.BodyStore) Option {
	return func(a *Animator) {
		if s != nil {
			a.store = s
		}
	}
}

type nodeSpec struct {
	id   string
	kind render.NodeKind
}

type body struct {
	def    *model.BodyDefinition
	motion core.MotionModel
	spin   core.SpinState
	parent *body
	world  core.Vec3
	// spins with the parent mesh; TLE satellites stay in the inertial frame
	corotating bool
}

// frame is the graph node b's local position is expressed in.
func (b *body) frame() string {
	if b.corotating {
		return b.parent.def.ID + render.MeshSuffix
	}
	return b.parent.def.ID
}

func (b *body) state(frame uint64) kb.BodyState {
	st := kb.BodyState{
		ID:        b.def.ID,
		Parent:    b.def.Parent,
		Kind:      b.def.Kind,
		Local:     model.PositionOf(b.motion.Position()),
		World:     model.PositionOf(b.world),
		SpinAngle: b.spin.Angle,
		Frame:     frame,
	}
	if c, ok := b.motion.(*core.CircularMotionModel); ok {
		st.OrbitAngle = c.Orbit.Angle
	}
	return st
}

// Animator owns the mutable per-frame state of one scene. Step must be
// driven from a single goroutine; every other method is safe for
// concurrent use.
type Animator struct {
	mu sync.Mutex

	def      model.SceneDefinition
	bodies   []*body // parent-first
	byID     map[string]*body
	stars    *core.ParticleField
	shuttle  *core.Shuttle
	from, to *body
	path     []core.Vec3
	cube     [2]float64 // x, y rotation

	camera *render.Camera
	graph  render.SceneGraph
	store  *kb.BodyStore
	desc   *render.Description

	frame   uint64
	simTime time.Time
	paused  atomic.Bool
	last    atomic.Pointer[render.Frame]

	sinkMu sync.RWMutex
	sinks  map[int]render.Sink
	nextID int

	log     logging.Logger
	metrics MetricsRecorder
	rng     *rand.Rand
}

// New validates def and builds its scene graph and body store. The
// definition is copied; defaults are applied to the copy.
func New(ctx context.Context, def model.SceneDefinition, opts ...Option) (*Animator, error) {
	ctx, span := observability.StartSpan(ctx, "scene.build",
		attribute.String("scene.name", def.Name),
		attribute.Int("scene.bodies", len(def.Bodies)),
	)
	defer span.End()

	def = cloneDefinition(def)
	core.ApplyDefaults(&def)
	if err := core.ValidateScene(&def); err != nil {
		span.RecordError(err)
		return nil, err
	}

	a := &Animator{
		def:     def,
		byID:    make(map[string]*body, len(def.Bodies)),
		graph:   render.NewGraph(),
		store:   kb.NewBodyStore(),
		sinks:   make(map[int]render.Sink),
		simTime: def.Clock.Epoch,
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.rng == nil {
		seed := def.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		a.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	a.camera = render.NewCamera(def.Camera)

	var err error
	switch def.Kind {
	case model.SceneKindCube:
		err = a.buildCube()
	default:
		err = a.buildSolar()
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	a.desc = render.Describe(&a.def, a.camera)

	if a.metrics != nil {
		a.metrics.SetBodies(len(a.bodies))
		a.metrics.SetPaused(false)
	}
	a.log.Info(ctx, "scene built",
		logging.String("scene", def.Name),
		logging.String("kind", string(def.Kind)),
		logging.Int("bodies", len(a.bodies)),
		logging.Bool("starfield", a.stars != nil),
		logging.Bool("shuttle", a.shuttle != nil),
	)
	return a, nil
}

func cloneDefinition(def model.SceneDefinition) model.SceneDefinition {
	def.Bodies = append([]model.BodyDefinition(nil), def.Bodies...)
	if def.Starfield != nil {
		sf := *def.Starfield
		def.Starfield = &sf
	}
	if def.Shuttle != nil {
		sh := *def.Shuttle
		def.Shuttle = &sh
	}
	return def
}

func (a *Animator) buildCube() error {
	if err := a.graph.CreateNode(render.CubeID, render.NodeCube); err != nil {
		return fmt.Errorf("build cube: %w", err)
	}
	return nil
}

func (a *Animator) buildSolar() error {
	order, err := core.ParentFirstOrder(a.def.Bodies)
	if err != nil {
		return err
	}
	for _, i := range order {
		if err := a.addBody(&a.def.Bodies[i]); err != nil {
			return err
		}
	}

	if sf := a.def.Starfield; sf != nil {
		rng := a.rng
		if sf.Seed != 0 {
			rng = rand.New(rand.NewPCG(sf.Seed, sf.Seed))
		}
		a.stars = core.NewParticleField(*sf, rng)
		if err := a.graph.CreateNode(render.StarsID, render.NodeStars); err != nil {
			return fmt.Errorf("build starfield: %w", err)
		}
		if err := a.graph.SetPoints(render.StarsID, a.stars.Positions); err != nil {
			return err
		}
	}

	if sh := a.def.Shuttle; sh != nil {
		if err := a.addShuttle(sh); err != nil {
			return err
		}
	}
	return nil
}

func (a *Animator) addBody(def *model.BodyDefinition) error {
	angle := a.rng.Float64() * 2 * math.Pi
	if def.InitialAngle != nil {
		angle = *def.InitialAngle
	}
	motion, err := core.NewMotionModel(def, angle)
	if err != nil {
		return err
	}
	if sat, ok := motion.(*core.OrbitalSGP4MotionModel); ok {
		sat.Step(a.simTime)
	}

	b := &body{
		def:    def,
		motion: motion,
		spin:   core.SpinState{Rate: def.SpinRate},
		parent: a.byID[def.Parent],
	}
	b.corotating = b.parent != nil && def.MotionSource() == model.MotionSourceCircular
	b.world = b.localToWorld()

	id := def.ID
	nodes := []nodeSpec{
		{id, render.NodeGroup},
		{id + render.MeshSuffix, render.NodeBody},
	}
	if def.Label != "" {
		nodes = append(nodes, nodeSpec{id + render.LabelSuffix, render.NodeLabel})
	}
	if def.Ring != nil {
		nodes = append(nodes, nodeSpec{id + render.RingSuffix, render.NodeRing})
	}
	for _, n := range nodes {
		if err := a.graph.CreateNode(n.id, n.kind); err != nil {
			return fmt.Errorf("build body %q: %w", id, err)
		}
		if n.id != id {
			if err := a.graph.Attach(id, n.id); err != nil {
				return err
			}
		}
	}
	if def.Label != "" {
		if err := a.graph.SetPosition(id+render.LabelSuffix, core.Vec3{0, def.LabelOffset, 0}); err != nil {
			return err
		}
	}
	if def.Ring != nil {
		// torus geometry lies in XY; lay it into the orbital plane
		if err := a.graph.SetRotation(id+render.RingSuffix, mgl64.QuatRotate(math.Pi/2, core.Vec3{1, 0, 0})); err != nil {
			return err
		}
	}

	if def.OrbitRadius > 0 {
		guide := id + render.OrbitSuffix
		if err := a.graph.CreateNode(guide, render.NodeOrbitGuide); err != nil {
			return fmt.Errorf("build body %q: %w", id, err)
		}
		if b.parent != nil {
			if err := a.graph.Attach(b.frame(), guide); err != nil {
				return err
			}
		}
	}
	if b.parent != nil {
		if err := a.graph.Attach(b.frame(), id); err != nil {
			return err
		}
	}
	if err := a.graph.SetPosition(id, motion.Position()); err != nil {
		return err
	}

	if err := a.store.Add(b.state(0)); err != nil {
		return fmt.Errorf("build body %q: %w", id, err)
	}
	a.bodies = append(a.bodies, b)
	a.byID[id] = b
	return nil
}

func (a *Animator) addShuttle(def *model.ShuttleDefinition) error {
	a.from, a.to = a.byID[def.From], a.byID[def.To]
	if a.from == nil || a.to == nil {
		return fmt.Errorf("%w: shuttle %q endpoints %q, %q", core.ErrInvalidScene, def.ID, def.From, def.To)
	}
	a.shuttle = core.NewShuttle(def.Speed, def.ControlHeight, def.LookAhead)
	a.shuttle.Place(a.from.world, a.to.world)
	a.path = a.shuttle.Trajectory(a.path, def.Segments)

	if err := a.graph.CreateNode(def.ID, render.NodeShuttle); err != nil {
		return fmt.Errorf("build shuttle: %w", err)
	}
	if def.Label != "" {
		label := def.ID + render.LabelSuffix
		if err := a.graph.CreateNode(label, render.NodeLabel); err != nil {
			return fmt.Errorf("build shuttle: %w", err)
		}
		if err := a.graph.Attach(def.ID, label); err != nil {
			return err
		}
		if err := a.graph.SetPosition(label, core.Vec3{0, shuttleLabelOffset, 0}); err != nil {
			return err
		}
	}
	if err := a.graph.CreateNode(def.ID+render.TrajectorySuffix, render.NodeTrajectory); err != nil {
		return fmt.Errorf("build shuttle: %w", err)
	}
	return a.placeShuttle()
}

// placeShuttle writes the shuttle's current placement into the graph.
func (a *Animator) placeShuttle() error {
	id := a.def.Shuttle.ID
	if err := a.graph.SetPosition(id, a.shuttle.Position); err != nil {
		return err
	}
	if err := a.graph.SetRotation(id, a.shuttle.Rotation); err != nil {
		return err
	}
	return a.graph.SetPath(id+render.TrajectorySuffix, a.path)
}

func (b *body) localToWorld() core.Vec3 {
	if b.parent == nil {
		return b.motion.Position()
	}
	spin := 0.0
	if b.corotating {
		spin = b.parent.spin.Angle
	}
	return core.SatelliteWorldPosition(b.parent.world, spin, b.motion.Position())
}

// Step advances one frame and renders it. The tick's frame index and
// simulation time are adopted as the animator's own; a zero tick advances
// the internal counter by one frame duration. While paused, motion is
// skipped but the frame is still rendered.
func (a *Animator) Step(tick timectrl.Tick) (*render.Frame, error) {
	start := time.Now()

	a.mu.Lock()
	if tick.Frame == 0 {
		a.frame++
		a.simTime = a.simTime.Add(a.def.Clock.FrameDuration())
	} else {
		a.frame = tick.Frame
		a.simTime = tick.SimTime
	}
	paused := a.paused.Load()

	recycled := 0
	if !paused {
		recycled = a.advance()
	}
	f, err := a.renderLocked(paused)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	a.last.Store(f)
	a.publish(f)

	if a.metrics != nil {
		leg := 0
		if f.Shuttle != nil {
			leg = f.Shuttle.Leg
		}
		a.metrics.ObserveFrame(time.Since(start), recycled, leg)
	}
	return f, nil
}

func (a *Animator) advance() int {
	if a.def.Kind == model.SceneKindCube {
		a.cube[0] += cubeSpin
		a.cube[1] += cubeSpin
		return 0
	}

	for _, b := range a.bodies {
		b.spin = b.spin.Step()
	}
	for _, b := range a.bodies {
		b.motion.Step(a.simTime)
		b.world = b.localToWorld()
	}

	recycled := 0
	if a.stars != nil {
		recycled = a.stars.Step()
	}
	if a.shuttle != nil {
		a.shuttle.Advance(a.from.world, a.to.world)
		a.path = a.shuttle.Trajectory(a.path, a.def.Shuttle.Segments)
	}
	return recycled
}

func (a *Animator) renderLocked(paused bool) (*render.Frame, error) {
	info := render.FrameInfo{Frame: a.frame, SimTime: a.simTime, Paused: paused}

	if a.def.Kind == model.SceneKindCube {
		q := mgl64.AnglesToQuat(a.cube[0], a.cube[1], 0, mgl64.XYZ)
		if err := a.graph.SetRotation(render.CubeID, q); err != nil {
			return nil, err
		}
		return a.graph.Render(a.camera, info)
	}

	states := make([]kb.BodyState, 0, len(a.bodies))
	for _, b := range a.bodies {
		id := b.def.ID
		if err := a.graph.SetPosition(id, b.motion.Position()); err != nil {
			return nil, err
		}
		if err := a.graph.SetRotation(id+render.MeshSuffix, core.SpinY(b.spin.Angle)); err != nil {
			return nil, err
		}
		states = append(states, b.state(a.frame))
	}
	if a.stars != nil {
		if err := a.graph.SetPoints(render.StarsID, a.stars.Positions); err != nil {
			return nil, err
		}
	}
	if sh := a.shuttle; sh != nil {
		id := a.def.Shuttle.ID
		if err := a.placeShuttle(); err != nil {
			return nil, err
		}
		info.Shuttle = &render.ShuttleInfo{
			ID:        id,
			Leg:       sh.State.Leg,
			Progress:  sh.State.Progress,
			Direction: sh.State.Direction,
		}
	}

	if err := a.store.Commit(a.frame, states); err != nil {
		return nil, err
	}
	return a.graph.Render(a.camera, info)
}

func (a *Animator) publish(f *render.Frame) {
	a.sinkMu.RLock()
	sinks := make([]render.Sink, 0, len(a.sinks))
	for id := 0; id < a.nextID; id++ {
		if s, ok := a.sinks[id]; ok {
			sinks = append(sinks, s)
		}
	}
	a.sinkMu.RUnlock()
	for _, s := range sinks {
		s.DeliverFrame(f)
	}
}

// AddSink registers s to receive every rendered frame, in registration
// order, on the stepping goroutine.
func (a *Animator) AddSink(s render.Sink) (remove func()) {
	a.sinkMu.Lock()
	id := a.nextID
	a.nextID++
	a.sinks[id] = s
	a.sinkMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.sinkMu.Lock()
			delete(a.sinks, id)
			a.sinkMu.Unlock()
		})
	}
}

// Run steps the animator on every tick from src until ctx is cancelled.
// A failed step is logged and the loop continues.
func (a *Animator) Run(ctx context.Context, src timectrl.TickSource) error {
	return src.Run(ctx, func(t timectrl.Tick) {
		if _, err := a.Step(t); err != nil {
			a.log.Error(ctx, "frame step failed", logging.Uint64("frame", t.Frame), logging.Err(err))
		}
	})
}

// Frame returns the most recently rendered frame.
func (a *Animator) Frame() (*render.Frame, error) {
	f := a.last.Load()
	if f == nil {
		return nil, ErrNoFrame
	}
	return f, nil
}

// Description returns the static scene description.
func (a *Animator) Description() *render.Description {
	return a.desc
}

// Definition returns the defaulted scene definition.
func (a *Animator) Definition() model.SceneDefinition {
	return cloneDefinition(a.def)
}

// Store exposes the committed body state.
func (a *Animator) Store() *kb.BodyStore {
	return a.store
}

// Body returns the committed state of one body.
func (a *Animator) Body(id string) (kb.BodyState, error) {
	return a.store.Get(id)
}

// FrameCount is the index of the last stepped frame.
func (a *Animator) FrameCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame
}

// Pause stops motion; frames keep rendering.
func (a *Animator) Pause() { a.setPaused(true) }

// Resume restarts motion.
func (a *Animator) Resume() { a.setPaused(false) }

// SetPaused pauses or resumes.
func (a *Animator) SetPaused(paused bool) { a.setPaused(paused) }

// Paused reports whether motion is paused.
func (a *Animator) Paused() bool { return a.paused.Load() }

func (a *Animator) setPaused(paused bool) {
	if a.paused.Swap(paused) == paused {
		return
	}
	if a.metrics != nil {
		a.metrics.SetPaused(paused)
	}
	a.log.Info(context.Background(), "animation paused state changed", logging.Bool("paused", paused))
}

// Resize recomputes the camera projection for a new viewport.
func (a *Animator) Resize(width, height int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.camera.Resize(width, height)
}

// Camera returns a copy of the scene camera.
func (a *Animator) Camera() *render.Camera {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.camera.Clone()
}
