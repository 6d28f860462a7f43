// Package store is the per-instance, SQLite-backed source chain.
//
// One Store holds everything an instance commits:
//   - entries: typed, content-addressed records (idempotent on address)
//   - links: append-only tagged edges between entries
//   - invocations and completions: the call log written by the engine
//
// # Ordering
//
// All ordering uses the logical seq column, never wall time. Every query that
// returns several rows ends in ORDER BY seq ASC, id COLLATE BINARY ASC so that
// reads are identical across restarts.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: links and completions must reference existing rows
//
// Content addresses are computed in internal/ir from canonical JSON.
package store
