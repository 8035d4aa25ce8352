package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager defaults.
const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute

	// sweepTimeout bounds one janitor pass against a slow store.
	sweepTimeout = 30 * time.Second
)

// ManagerConfig tunes session lifecycle handling. Zero values take the
// defaults; SweepInterval < 0 disables the janitor entirely.
type ManagerConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// Manager serializes work per session and evicts idle sessions. Turns on
// one session run strictly one at a time; turns on different sessions
// proceed in parallel.
type Manager struct {
	store   Store
	logger  *slog.Logger
	idleTTL time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry

	janitorStop chan struct{}
	janitorDone chan struct{}
	closeOnce   sync.Once
}

// lockEntry is a one-slot semaphore with a reference count, so entries for
// quiet sessions can be dropped from the map once nobody holds or waits.
type lockEntry struct {
	ch   chan struct{}
	refs int
}

// NewManager creates a Manager over the given store and starts the idle
// janitor unless cfg disables it. Call Close to stop the janitor.
func NewManager(store Store, cfg ManagerConfig, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	sweep := cfg.SweepInterval
	if sweep == 0 {
		sweep = DefaultSweepInterval
	}

	m := &Manager{
		store:   store,
		logger:  logger,
		idleTTL: ttl,
		locks:   make(map[uuid.UUID]*lockEntry),
	}

	if sweep > 0 {
		m.janitorStop = make(chan struct{})
		m.janitorDone = make(chan struct{})
		go m.janitor(sweep)
	}
	return m, nil
}

// Acquire locks the session for the caller, loading it (or creating it on
// first contact) under the lock. The returned release function must be
// called exactly once; it is safe to call from a defer even after errors
// elsewhere.
func (m *Manager) Acquire(ctx context.Context, id uuid.UUID, customerID string) (*Session, func(), error) {
	if id == uuid.Nil {
		return nil, nil, fmt.Errorf("session id is required")
	}

	e := m.checkout(id)
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.checkin(id, e)
		return nil, nil, fmt.Errorf("waiting for session %s: %w", id, ctx.Err())
	}

	sess, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		sess, err = m.store.Create(ctx, id, customerID)
	}
	if err != nil {
		<-e.ch
		m.checkin(id, e)
		return nil, nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-e.ch
			m.checkin(id, e)
		})
	}
	return sess, release, nil
}

// RecordTurn persists the turn and mirrors it onto the in-memory session.
// Callers must hold the session's lock.
func (m *Manager) RecordTurn(ctx context.Context, sess *Session, turn Turn) error {
	stored, err := m.store.AppendTurn(ctx, sess.ID, turn)
	if err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	sess.Turns = append(sess.Turns, stored)
	sess.LastActiveAt = stored.CreatedAt
	return nil
}

// SaveSlots persists the session's slot map as it currently stands.
// Callers must hold the session's lock.
func (m *Manager) SaveSlots(ctx context.Context, sess *Session) error {
	if err := m.store.SaveSlots(ctx, sess.ID, sess.Slots); err != nil {
		return fmt.Errorf("saving slots: %w", err)
	}
	return nil
}

// Peek loads a session without locking it, for read-only inspection.
func (m *Manager) Peek(ctx context.Context, id uuid.UUID) (*Session, error) {
	return m.store.Get(ctx, id)
}

// Delete removes a session outright.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	return m.store.Delete(ctx, id)
}

// Close stops the janitor. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.janitorStop != nil {
			close(m.janitorStop)
			<-m.janitorDone
		}
	})
}

func (m *Manager) checkout(id uuid.UUID) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[id]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		m.locks[id] = e
	}
	e.refs++
	return e
}

func (m *Manager) checkin(id uuid.UUID, e *lockEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.locks, id)
	}
}

// lockCount reports how many session locks are currently tracked.
func (m *Manager) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *Manager) janitor(interval time.Duration) {
	defer close(m.janitorDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.janitorStop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := m.store.DeleteIdle(ctx, time.Now().Add(-m.idleTTL))
	if err != nil {
		m.logger.Warn("idle session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		m.logger.Debug("evicted idle sessions", "count", removed, "idle_ttl", m.idleTTL)
	}
}
