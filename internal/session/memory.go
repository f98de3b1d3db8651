package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	userID    string
	expiresAt time.Time
}

// MemoryRegistry keeps sessions in process memory. Sessions do not survive a
// restart, so it suits single-instance and development setups.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]entry
	now      func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

func (m *MemoryRegistry) Save(_ context.Context, sessionID, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = entry{userID: userID, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryRegistry) Lookup(_ context.Context, sessionID string) (string, error) {
	m.mu.RLock()
	e, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expiresAt) {
		return "", ErrUnknownSession
	}
	return e.userID, nil
}

func (m *MemoryRegistry) Revoke(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Sweep drops expired sessions and reports how many were removed.
func (m *MemoryRegistry) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, e := range m.sessions {
		if !now.Before(e.expiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
