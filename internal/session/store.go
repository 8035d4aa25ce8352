package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists sessions. Implementations must be safe for concurrent use;
// per-session write ordering is the Manager's job, not the store's.
type Store interface {
	// Get loads a session with its most recent turns (up to
	// MaxTurnsLoaded). Returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*Session, error)

	// Create inserts a new empty session. Creating an id that already
	// exists is not an error; the existing session is returned.
	Create(ctx context.Context, id uuid.UUID, customerID string) (*Session, error)

	// AppendTurn adds the next turn, assigning its sequence number, and
	// touches the session's activity time. The stored turn is returned.
	AppendTurn(ctx context.Context, id uuid.UUID, turn Turn) (Turn, error)

	// SaveSlots replaces the session's slot map.
	SaveSlots(ctx context.Context, id uuid.UUID, slots map[string]string) error

	// Delete removes a session and its turns. Returns ErrNotFound when
	// nothing was deleted.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteIdle removes sessions whose last activity is before cutoff,
	// returning how many were removed.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryStore is an in-process Store for tests and single-node development.
// Sessions are deep-copied on the way in and out, so callers can never
// observe each other's mutations.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	out := sess.clone()
	if len(out.Turns) > MaxTurnsLoaded {
		out.Turns = out.Turns[len(out.Turns)-MaxTurnsLoaded:]
	}
	return out, nil
}

func (m *MemoryStore) Create(ctx context.Context, id uuid.UUID, customerID string) (*Session, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("session id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[id]; ok {
		return existing.clone(), nil
	}

	now := time.Now()
	sess := &Session{
		ID:           id,
		CustomerID:   customerID,
		Slots:        make(map[string]string),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	m.sessions[id] = sess
	return sess.clone(), nil
}

func (m *MemoryStore) AppendTurn(ctx context.Context, id uuid.UUID, turn Turn) (Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return Turn{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	turn.Seq = len(sess.Turns) + 1
	turn.CreatedAt = time.Now()
	sess.Turns = append(sess.Turns, turn)
	sess.LastActiveAt = turn.CreatedAt
	return turn, nil
}

func (m *MemoryStore) SaveSlots(ctx context.Context, id uuid.UUID, slots map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	sess.Slots = make(map[string]string, len(slots))
	for k, v := range slots {
		sess.Slots[k] = v
	}
	sess.LastActiveAt = time.Now()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, sess := range m.sessions {
		if sess.LastActiveAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many sessions the store holds.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
