// Package repositories implements SQLite persistence for run history.
//
// Key Implementations:
//   - [RunRepository] : one row per download run plus one row per outcome
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// Counters live in <table>_sequence and are bumped inside the insert's transaction.
package repositories
