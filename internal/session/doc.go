// Package session holds per-conversation state: the turn history, slot
// values learned along the way, and the timestamps the idle janitor evicts
// by.
//
// Three layers with distinct jobs:
//
//   - [Session] is the data: turns, slots, activity times. It carries the
//     slot rule that empty values never replace established ones.
//   - [Store] owns durability. [MemoryStore] backs tests and development;
//     [PostgresStore] persists to the sessions and session_turns tables.
//   - [Manager] owns concurrency: a per-session lock serializes turns on
//     one conversation while other conversations proceed in parallel, and
//     a janitor goroutine evicts sessions idle past their TTL.
//
// # Locking
//
// [Manager.Acquire] hands out the session together with a release
// function. Everything between Acquire and release (classify, plan,
// execute, record) sees a stable session; a second message on the same
// session waits rather than interleaving. [PostgresStore.AppendTurn]
// additionally locks the session row (SELECT ... FOR UPDATE) so sequence
// numbers stay gapless even if two processes share the database.
package session
