// Package session holds per-conversation state: the turn history and the controller state.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/astrabot/internal/models"
)

// State is the controller state of a session.
type State int

const (
	Idle State = iota
	Deciding
	Invoking
	Synthesizing
)

func (s State) String() string {
	switch s {
	case Deciding:
		return "deciding"
	case Invoking:
		return "invoking"
	case Synthesizing:
		return "synthesizing"
	default:
		return "idle"
	}
}

// Session is one conversation. Turns are append-only and only one turn runs at a time.
type Session struct {
	id        string
	createdAt time.Time

	mu       sync.Mutex
	state    State
	turns    []models.Turn
	lastUsed time.Time
}

// New creates an idle session with a random ID.
func New() *Session {
	now := time.Now()
	return &Session{id: uuid.NewString(), createdAt: now, lastUsed: now}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the current controller state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastUsed returns when the last turn started or ended.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Begin moves an idle session to Deciding. It fails with models.ErrTurnInProgress otherwise.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return models.ErrTurnInProgress
	}
	s.state = Deciding
	s.lastUsed = time.Now()
	return nil
}

// Advance sets the state of a running turn.
func (s *Session) Advance(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// End returns the session to Idle and appends turns. Passing no turns abandons the turn.
func (s *Session) End(turns ...models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		s.turns = append(s.turns, t)
	}
	s.state = Idle
	s.lastUsed = now
}

// History returns a copy of every turn.
func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.turns...)
}

// Window returns a copy of the last n turns, oldest first. n <= 0 yields no turns.
func (s *Session) Window(n int) []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || len(s.turns) == 0 {
		return nil
	}
	start := max(0, len(s.turns)-n)
	return append([]models.Turn(nil), s.turns[start:]...)
}
