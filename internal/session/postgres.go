package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectSessionSQL = `
SELECT id, customer_id, slots, created_at, last_active_at
FROM sessions
WHERE id = $1`

const selectTurnsSQL = `
SELECT seq, utterance, intent, strategy_tag, response, created_at
FROM session_turns
WHERE session_id = $1
ORDER BY seq DESC
LIMIT $2`

const insertSessionSQL = `
INSERT INTO sessions (id, customer_id)
VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING`

// lockSessionSQL serializes turn appends on the session row so sequence
// numbers stay gapless even without the Manager's lock.
const lockSessionSQL = `
SELECT id FROM sessions WHERE id = $1 FOR UPDATE`

const nextSeqSQL = `
SELECT COALESCE(MAX(seq), 0) + 1 FROM session_turns WHERE session_id = $1`

const insertTurnSQL = `
INSERT INTO session_turns (session_id, seq, utterance, intent, strategy_tag, response)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`

const touchSessionSQL = `
UPDATE sessions SET last_active_at = now() WHERE id = $1`

const updateSlotsSQL = `
UPDATE sessions SET slots = $2, last_active_at = now() WHERE id = $1`

const deleteSessionSQL = `
DELETE FROM sessions WHERE id = $1`

const deleteIdleSQL = `
DELETE FROM sessions WHERE last_active_at < $1`

// PostgresStore persists sessions in the sessions and session_turns tables.
// Turns cascade-delete with their session.
//
// PostgresStore is safe for concurrent use by multiple goroutines.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore on the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess := &Session{}
	var slotsJSON []byte

	err := s.pool.QueryRow(ctx, selectSessionSQL, id).Scan(
		&sess.ID, &sess.CustomerID, &slotsJSON, &sess.CreatedAt, &sess.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	if len(slotsJSON) > 0 {
		if err := json.Unmarshal(slotsJSON, &sess.Slots); err != nil {
			return nil, fmt.Errorf("decoding slots for session %s: %w", id, err)
		}
	}
	if sess.Slots == nil {
		sess.Slots = make(map[string]string)
	}

	turns, err := s.recentTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Turns = turns
	return sess, nil
}

// recentTurns loads the newest MaxTurnsLoaded turns in ascending order.
func (s *PostgresStore) recentTurns(ctx context.Context, id uuid.UUID) ([]Turn, error) {
	rows, err := s.pool.Query(ctx, selectTurnsSQL, id, MaxTurnsLoaded)
	if err != nil {
		return nil, fmt.Errorf("loading turns for session %s: %w", id, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Seq, &t.Utterance, &t.Intent, &t.StrategyTag, &t.Response, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	// The query returns newest-first; callers expect chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *PostgresStore) Create(ctx context.Context, id uuid.UUID, customerID string) (*Session, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("session id is required")
	}

	if _, err := s.pool.Exec(ctx, insertSessionSQL, id, customerID); err != nil {
		return nil, fmt.Errorf("creating session %s: %w", id, err)
	}

	s.logger.Debug("session created", "session_id", id, "customer_id", customerID)
	return s.Get(ctx, id)
}

func (s *PostgresStore) AppendTurn(ctx context.Context, id uuid.UUID, turn Turn) (Turn, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Turn{}, fmt.Errorf("beginning turn append: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("turn append rollback", "error", err)
		}
	}()

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, lockSessionSQL, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Turn{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return Turn{}, fmt.Errorf("locking session %s: %w", id, err)
	}

	if err := tx.QueryRow(ctx, nextSeqSQL, id).Scan(&turn.Seq); err != nil {
		return Turn{}, fmt.Errorf("assigning turn sequence: %w", err)
	}

	err = tx.QueryRow(ctx, insertTurnSQL,
		id, turn.Seq, turn.Utterance, turn.Intent, turn.StrategyTag, turn.Response,
	).Scan(&turn.CreatedAt)
	if err != nil {
		return Turn{}, fmt.Errorf("inserting turn %d: %w", turn.Seq, err)
	}

	if _, err := tx.Exec(ctx, touchSessionSQL, id); err != nil {
		return Turn{}, fmt.Errorf("touching session %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Turn{}, fmt.Errorf("committing turn append: %w", err)
	}

	return turn, nil
}

func (s *PostgresStore) SaveSlots(ctx context.Context, id uuid.UUID, slots map[string]string) error {
	if slots == nil {
		slots = map[string]string{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encoding slots: %w", err)
	}

	tag, err := s.pool.Exec(ctx, updateSlotsSQL, id, data)
	if err != nil {
		return fmt.Errorf("saving slots for session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	s.logger.Debug("session deleted", "session_id", id)
	return nil
}

func (s *PostgresStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteIdleSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting idle sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
