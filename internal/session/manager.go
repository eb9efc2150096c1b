package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/astrabot/internal/models"
)

// Manager tracks live sessions by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := New()
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s
}

// Get returns the session with id or an error wrapping models.ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete ends the session with id. Its history is discarded.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune deletes idle sessions unused for longer than ttl and returns how many were removed.
func (m *Manager) Prune(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.State() == Idle && s.LastUsed().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
