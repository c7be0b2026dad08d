package memory

import (
	"fmt"
	"sync"

	"github.com/left-curve/dango-sdk-go/pkg/persistence"
)

// MemorySessionStore is an in-memory implementation of ISessionStore.
//
// All data is lost when the process exits. Records are deep copied on the
// way in and out to prevent external mutation.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*persistence.SessionRecord
	closed   bool
}

var _ persistence.ISessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*persistence.SessionRecord),
	}
}

func (m *MemorySessionStore) SaveSession(session *persistence.SessionRecord) error {
	if session == nil {
		return fmt.Errorf("cannot save nil SessionRecord")
	}
	if session.ID == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("session store is closed")
	}

	m.sessions[session.ID] = persistence.CopySessionRecord(session)
	return nil
}

func (m *MemorySessionStore) LoadSession(id string) (*persistence.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("session store is closed")
	}

	session, exists := m.sessions[id]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return persistence.CopySessionRecord(session), nil
}

func (m *MemorySessionStore) ListSessions() ([]*persistence.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("session store is closed")
	}

	result := make([]*persistence.SessionRecord, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, persistence.CopySessionRecord(session))
	}
	persistence.SortSessions(result)
	return result, nil
}

func (m *MemorySessionStore) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("session store is closed")
	}

	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemorySessionStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("session store is closed")
	}
	return nil
}
