package uistate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zulandar/kpiboard/internal/threshold"
)

// Backend persists session states.
type Backend interface {
	Load(ctx context.Context, id string) (State, bool, error)
	Save(ctx context.Context, id string, st State) error
	Delete(ctx context.Context, id string) error
}

// ThresholdSource supplies the process-wide color thresholds.
type ThresholdSource func(ctx context.Context) (threshold.Settings, error)

// Sessions maps session IDs to UI state. Updates to one session are
// serialized within the process; across processes sharing a backend the
// last write wins.
type Sessions struct {
	backend Backend
	shared  ThresholdSource

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessions returns a registry over backend. Every opened session mirrors
// the thresholds supplied by shared; when shared is nil sessions carry the
// built-in defaults.
func NewSessions(backend Backend, shared ThresholdSource) *Sessions {
	return &Sessions{backend: backend, shared: shared, locks: make(map[string]*sessionLock)}
}

// NewID returns a fresh session ID.
func NewID() string {
	return uuid.NewString()
}

// Open returns a Store holding the state of session id, creating the
// session when it does not exist yet.
func (s *Sessions) Open(ctx context.Context, id string) (*Store, error) {
	st, _, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("uistate: load session: %w", err)
	}
	st.Thresholds = threshold.Default()
	if s.shared != nil {
		loaded, err := s.shared(ctx)
		if err != nil {
			return nil, fmt.Errorf("uistate: shared thresholds: %w", err)
		}
		st.Thresholds = loaded
	}
	return NewStore(st), nil
}

// Save persists the current state of store under id.
func (s *Sessions) Save(ctx context.Context, id string, store *Store) error {
	if err := s.backend.Save(ctx, id, store.State()); err != nil {
		return fmt.Errorf("uistate: save session: %w", err)
	}
	return nil
}

// Update opens session id, applies fn and saves the result when fn
// succeeds. Concurrent updates of one session run one at a time, each on
// the state the previous one saved.
func (s *Sessions) Update(ctx context.Context, id string, fn func(*Store) error) (State, error) {
	unlock := s.lock(id)
	defer unlock()

	store, err := s.Open(ctx, id)
	if err != nil {
		return State{}, err
	}
	if err := fn(store); err != nil {
		return store.State(), err
	}
	if err := s.Save(ctx, id, store); err != nil {
		return State{}, err
	}
	return store.State(), nil
}

// Delete forgets session id.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("uistate: delete session: %w", err)
	}
	return nil
}

// lock holds the update lock of session id until the returned func is
// called.
func (s *Sessions) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
