package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested session does not exist in the store.
var ErrNotFound = errors.New("session not found")

// Well-known slot names. Slots carry short string facts the planner and
// classifier read on later turns; anything else is free-form.
const (
	SlotPendingAddress = "pending_address"
	SlotPurchaseIntent = "purchase_intent"
	SlotLastOrderID    = "last_order_id"
	SlotMaxPrice       = "max_price"
	SlotCategory       = "category"
)

// Limits for session state.
const (
	// MaxTurnsLoaded caps how many recent turns a store returns with the
	// session. Older turns stay in the database untouched.
	MaxTurnsLoaded = 50

	// MaxSlotValueLen is the longest value SetSlot stores. Longer values
	// are truncated, not rejected.
	MaxSlotValueLen = 500
)

// Turn is one completed exchange: what the user said, how it was
// classified and routed, and what the assistant answered.
type Turn struct {
	Seq         int       `json:"seq"`
	Utterance   string    `json:"utterance"`
	Intent      string    `json:"intent,omitempty"`
	StrategyTag string    `json:"strategy_tag,omitempty"`
	Response    string    `json:"response,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is one conversation's accumulated state. Instances returned by a
// Store are private copies; mutating one has no effect until the mutation
// is written back through the store.
//
// Session itself is not safe for concurrent use. The Manager's per-session
// lock guarantees one goroutine works a session at a time.
type Session struct {
	ID           uuid.UUID         `json:"id"`
	CustomerID   string            `json:"customer_id"`
	Slots        map[string]string `json:"slots"`
	Turns        []Turn            `json:"turns"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActiveAt time.Time         `json:"last_active_at"`
}

// SetSlot records a slot value. Empty and whitespace-only values are
// ignored so a turn that learned nothing cannot erase what an earlier turn
// established. Reports whether the value was stored.
func (s *Session) SetSlot(name, value string) bool {
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" || value == "" {
		return false
	}
	if len(value) > MaxSlotValueLen {
		value = value[:MaxSlotValueLen]
	}
	if s.Slots == nil {
		s.Slots = make(map[string]string)
	}
	s.Slots[name] = value
	return true
}

// Slot returns the named slot value, or "" when unset.
func (s *Session) Slot(name string) string {
	return s.Slots[name]
}

// Snapshot is the read-only view of a session handed to the classifier and
// planner. It shares nothing with the live Session, so it stays valid after
// the session lock is released.
type Snapshot struct {
	ID           uuid.UUID
	CustomerID   string
	Slots        map[string]string
	TurnCount    int
	LastIntent   string
	LastStrategy string
}

// Snapshot builds a detached view of the session's current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.ID,
		CustomerID: s.CustomerID,
		Slots:      make(map[string]string, len(s.Slots)),
		TurnCount:  len(s.Turns),
	}
	for k, v := range s.Slots {
		snap.Slots[k] = v
	}
	if n := len(s.Turns); n > 0 {
		snap.LastIntent = s.Turns[n-1].Intent
		snap.LastStrategy = s.Turns[n-1].StrategyTag
	}
	return snap
}

// Slot returns the named slot value from the snapshot, or "" when unset.
func (s Snapshot) Slot(name string) string {
	return s.Slots[name]
}

// clone deep-copies a session so store internals never leak to callers.
func (s *Session) clone() *Session {
	out := &Session{
		ID:           s.ID,
		CustomerID:   s.CustomerID,
		Slots:        make(map[string]string, len(s.Slots)),
		Turns:        make([]Turn, len(s.Turns)),
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
	for k, v := range s.Slots {
		out.Slots[k] = v
	}
	copy(out.Turns, s.Turns)
	return out
}
