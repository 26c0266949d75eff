package uistate

import (
	"context"
	"sync"
)

// MemoryBackend keeps sessions in process memory.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]State
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]State)}
}

func (m *MemoryBackend) Load(_ context.Context, id string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	return st.Clone(), ok, nil
}

func (m *MemoryBackend) Save(_ context.Context, id string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = st.Clone()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
