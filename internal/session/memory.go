package session

import (
	"context"
	"sync"
	"time"

	"github.com/spigell/interviewd/internal/interview"
)

// Memory is the in-process Store used by the CLI mode and in tests. All
// sessions live in one map guarded by a single mutex; per-session copies keep
// callers from aliasing stored state.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*interview.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*interview.Session)}
}

func (m *Memory) Create(_ context.Context, sess *interview.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sess.ID]; exists {
		return interview.ErrVersionConflict
	}

	stored := sess.Clone()
	stored.Version = 1
	stored.LastUpdated = time.Now().UTC()
	m.sessions[sess.ID] = stored
	sess.Version = stored.Version
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (*interview.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.sessions[id]
	if !ok {
		return nil, interview.ErrSessionNotFound
	}
	return stored.Clone(), nil
}

func (m *Memory) Commit(_ context.Context, sess *interview.Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[sess.ID]
	if !ok {
		return interview.ErrSessionNotFound
	}
	if stored.Version != expectedVersion {
		return interview.ErrVersionConflict
	}

	next := sess.Clone()
	next.Version = expectedVersion + 1
	next.LastUpdated = time.Now().UTC()
	m.sessions[sess.ID] = next
	sess.Version = next.Version
	sess.LastUpdated = next.LastUpdated
	return nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}
