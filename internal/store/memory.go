// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// This is the live-session layer: every game being played sits here while
// its durable bookkeeping (games table, high scores) goes to SQLite.
//
// Characteristics:
//   - Stores *Session objects keyed by game ID in a map.
//   - Map access guarded by an RWMutex; each session additionally has its
//     own mutex so Update runs one caller at a time per game. The engine
//     itself never locks.
//   - State is lost when the process restarts; idle sessions are evicted by
//     the HTTP layer through IDs + Delete.
//   - ErrNotFound is returned for missing game IDs.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/woodblocks/internal/game"
)

// ErrNotFound is returned for unknown game IDs.
var ErrNotFound = errors.New("not found")

// Session is a live game plus the bookkeeping the HTTP layer needs.
type Session struct {
	Game  *game.Game
	Owner string // user ID or anonymous ID
	User  bool   // Owner is a registered user
	RunID string // games row of the current run
	Daily string // date key for daily sessions; "" for classic games
	// Recorded is set once the finished run has been persisted.
	Recorded bool
	// Touched is the last time the session was played or viewed.
	Touched time.Time
}

// Store defines the persistence interface for live sessions.
// Implementations may be backed by memory (this package), Redis, SQL, etc.
type Store interface {
	// Save persists or replaces a session under s.Game.ID.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by game ID.
	// The returned session must only be mutated through Update.
	Get(ctx context.Context, id string) (*Session, error)

	// Update runs fn with exclusive access to the session.
	// fn's error is returned as-is.
	Update(ctx context.Context, id string, fn func(*Session) error) error

	// Delete drops a session; missing IDs are ignored.
	Delete(ctx context.Context, id string) error

	// IDs lists the game IDs owned by owner, or every ID when owner is "".
	IDs(ctx context.Context, owner string) ([]string, error)
}

type entry struct {
	mu sync.Mutex // serialises Update for this game
	s  *Session
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex      // guards sessions map
	sessions map[string]*entry // keyed by Game.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*entry)}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	if s == nil || s.Game == nil {
		return errors.New("store: nil session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Game.ID] = &entry{s: s}
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return e.s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Update(ctx context.Context, id string, fn func(*Session) error) error {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(e.s)
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memory) IDs(ctx context.Context, owner string) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	entries := make([]*entry, 0, len(m.sessions))
	for id, e := range m.sessions {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	m.mu.RUnlock()
	if owner == "" {
		return ids, nil
	}

	// Owner may change under Update, so read it under the entry lock.
	out := ids[:0]
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.mu.Lock()
		match := e.s.Owner == owner
		e.mu.Unlock()
		if match {
			out = append(out, ids[i])
		}
	}
	return out, nil
}
