package repositories

import (
	"database/sql"
	"fmt"
)

// queryer is satisfied by both [sql.DB] and [sql.Tx].
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence increments and returns the counter in <table>_sequence.
//
// Sequence numbers give runs a human-readable ordering (e.g., run #15) shown by the history command.
func NextSequence(db *sql.DB, table string) (int, error) {
	return nextSequence(db, table)
}

// nextSequence bumps the counter in a single statement so that, inside a transaction,
// the number is released again on rollback.
func nextSequence(q queryer, table string) (int, error) {
	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := q.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment %s sequence: %w", table, err)
	}
	return sequence, nil
}
