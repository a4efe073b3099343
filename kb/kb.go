package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/orrery/model"
)

var (
	ErrBodyNotFound = errors.New("body not found")
	ErrBodyExists   = errors.New("body already exists")
)

// BodyState is the committed transform of one body after a frame.
type BodyState struct {
	ID     string         `json:"id"`
	Parent string         `json:"parent,omitempty"`
	Kind   model.BodyKind `json:"kind"`

	// Local is relative to the parent for satellites; World is always
	// relative to the scene origin.
	Local model.Position `json:"local"`
	World model.Position `json:"world"`

	OrbitAngle float64 `json:"orbit_angle"`
	SpinAngle  float64 `json:"spin_angle"`
	Frame      uint64  `json:"frame"`
}

// Event is emitted to subscribers after each commit. Bodies is a snapshot
// shared by all subscribers and must not be modified.
type Event struct {
	Frame  uint64
	Bodies []BodyState
}

// BodyStore is an in-memory, thread-safe store of committed body state.
// The animator writes once per frame; RPC handlers and metrics read, the
// latter through Subscribe.
type BodyStore struct {
	mu sync.RWMutex

	bodies map[string]*BodyState
	order  []string
	frame  uint64

	subs   map[int]func(Event)
	nextID int
}

// NewBodyStore constructs an empty store.
func NewBodyStore() *BodyStore {
	return &BodyStore{
		bodies: make(map[string]*BodyState),
		subs:   make(map[int]func(Event)),
	}
}

// Add registers a body. It returns ErrBodyExists if the ID is taken.
func (s *BodyStore) Add(b BodyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bodies[b.ID]; exists {
		return fmt.Errorf("add %q: %w", b.ID, ErrBodyExists)
	}
	s.bodies[b.ID] = &b
	s.order = append(s.order, b.ID)
	return nil
}

// Get returns a copy of the body with the given ID.
func (s *BodyStore) Get(id string) (BodyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bodies[id]
	if !ok {
		return BodyState{}, fmt.Errorf("get %q: %w", id, ErrBodyNotFound)
	}
	return *b, nil
}

// List returns a snapshot of all bodies in registration order.
func (s *BodyStore) List() []BodyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len reports the number of registered bodies.
func (s *BodyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Frame returns the frame number of the last commit.
func (s *BodyStore) Frame() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Commit stores the state of every body for one frame atomically. All IDs
// must already be registered; nothing is written otherwise.
func (s *BodyStore) Commit(frame uint64, states []BodyState) error {
	s.mu.Lock()
	for i := range states {
		if _, ok := s.bodies[states[i].ID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("commit frame %d: %q: %w", frame, states[i].ID, ErrBodyNotFound)
		}
	}
	for i := range states {
		st := states[i]
		st.Frame = frame
		*s.bodies[st.ID] = st
	}
	s.frame = frame
	event := Event{Frame: frame, Bodies: s.snapshotLocked()}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, event)
	return nil
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function that is safe to call more than once.
func (s *BodyStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *BodyStore) snapshotLocked() []BodyState {
	res := make([]BodyState, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, *s.bodies[id])
	}
	return res
}

func (s *BodyStore) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

func notify(subs []func(Event), e Event) {
	for _, sub := range subs {
		sub(e)
	}
}
