package timectrl

import (
	"context"
	"sync"
	"time"
)

// DefaultFPS is the frame rate of the wall-clock source.
const DefaultFPS = 60

// SimClock gives time-based motion models access to simulation time
// without depending on a concrete tick source.
type SimClock interface {
	// Now returns the simulation time of the most recent frame.
	Now() time.Time
}

// Tick is delivered to listeners once per frame.
type Tick struct {
	// Frame counts frames since the source started, starting at 1.
	Frame uint64
	// SimTime is epoch + Frame·frameDuration.
	SimTime time.Time
}

// TickSource drives per-frame work. Run calls fn once per frame, from a
// single goroutine, until ctx is done or the source finishes on its own.
type TickSource interface {
	SimClock
	Run(ctx context.Context, fn func(Tick)) error
}

// Mode describes how the FrameClock paces frames.
type Mode int

const (
	// RealTime waits one frame interval of wall-clock time between frames.
	RealTime Mode = iota
	// Accelerated runs frames back to back as fast as listeners allow.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// simTime is the frame counter shared by both sources.
type simTime struct {
	mu            sync.RWMutex
	epoch         time.Time
	frameDuration time.Duration
	frames        uint64
}

func (s *simTime) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch.Add(time.Duration(s.frames) * s.frameDuration)
}

// Frames returns the number of frames delivered so far.
func (s *simTime) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

func (s *simTime) advance() Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return Tick{
		Frame:   s.frames,
		SimTime: s.epoch.Add(time.Duration(s.frames) * s.frameDuration),
	}
}

// FrameClock is the wall-clock tick source.
type FrameClock struct {
	simTime

	Interval time.Duration // wall time per frame
	Mode     Mode

	lmu       sync.Mutex
	listeners []func(Tick)
}

// NewFrameClock constructs a clock running at fps frames per second whose
// simulation time starts at epoch and advances frameDuration per frame.
// fps <= 0 selects DefaultFPS.
func NewFrameClock(epoch time.Time, frameDuration time.Duration, fps float64, mode Mode) *FrameClock {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &FrameClock{
		simTime:  simTime{epoch: epoch, frameDuration: frameDuration},
		Interval: time.Duration(float64(time.Second) / fps),
		Mode:     mode,
	}
}

// AddListener registers a callback invoked on every frame.
func (c *FrameClock) AddListener(fn func(Tick)) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start runs the clock in a separate goroutine until ctx is done or, when
// duration > 0, until duration/Interval frames have been delivered. It
// returns a channel that is closed when the clock stops.
func (c *FrameClock) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.loop(ctx, c.frameBudget(duration), nil)
	}()
	return done
}

// Run implements TickSource. fn is called alongside registered listeners;
// Run blocks until ctx is done and returns its error.
func (c *FrameClock) Run(ctx context.Context, fn func(Tick)) error {
	c.loop(ctx, 0, fn)
	return ctx.Err()
}

func (c *FrameClock) frameBudget(d time.Duration) uint64 {
	if d <= 0 || c.Interval <= 0 {
		return 0
	}
	return uint64(d / c.Interval)
}

func (c *FrameClock) loop(ctx context.Context, budget uint64, fn func(Tick)) {
	var tick <-chan time.Time
	if c.Mode == RealTime {
		ticker := time.NewTicker(c.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for delivered := uint64(0); budget == 0 || delivered < budget; delivered++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return
		}

		t := c.advance()
		c.lmu.Lock()
		listeners := append([]func(Tick){}, c.listeners...)
		c.lmu.Unlock()
		for _, l := range listeners {
			l(t)
		}
		if fn != nil {
			fn(t)
		}
	}
}

// ManualTicker delivers frames only when Step is called. Listeners run on
// the caller's goroutine.
type ManualTicker struct {
	simTime

	lmu       sync.Mutex
	listeners map[int]func(Tick)
	nextID    int
}

// NewManualTicker constructs a ticker whose simulation time starts at epoch.
func NewManualTicker(epoch time.Time, frameDuration time.Duration) *ManualTicker {
	return &ManualTicker{
		simTime:   simTime{epoch: epoch, frameDuration: frameDuration},
		listeners: make(map[int]func(Tick)),
	}
}

// AddListener registers fn and returns a function that removes it.
func (m *ManualTicker) AddListener(fn func(Tick)) (remove func()) {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		delete(m.listeners, id)
	}
}

// Step delivers n frames synchronously and returns the last tick.
func (m *ManualTicker) Step(n int) Tick {
	var last Tick
	for i := 0; i < n; i++ {
		last = m.advance()
		m.lmu.Lock()
		ls := make([]func(Tick), 0, len(m.listeners))
		for id := 0; id < m.nextID; id++ {
			if fn, ok := m.listeners[id]; ok {
				ls = append(ls, fn)
			}
		}
		m.lmu.Unlock()
		for _, fn := range ls {
			fn(last)
		}
	}
	return last
}

// Run implements TickSource: fn receives every frame stepped while ctx is
// live.
func (m *ManualTicker) Run(ctx context.Context, fn func(Tick)) error {
	remove := m.AddListener(fn)
	defer remove()
	<-ctx.Done()
	return ctx.Err()
}
