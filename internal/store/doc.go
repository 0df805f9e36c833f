// Package store provides SQLite-backed storage for conformance runs.
//
// The store keeps three append-only tables:
//   - Runs: one row per suite run against a device, with outcome counts
//   - Results: the ordered check outcomes of a run
//   - Exchanges: every request/response pair sent to the device during a run
//
// # Ordering
//
// Exchanges and results are ordered by seq (a logical clock), never by
// timestamps. Run ids are UUIDv7, so runs list newest first by id alone.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Exchange hashes are computed by internal/ir over canonical JSON, so the
// same exchange in two runs can be found by hash.
package store
