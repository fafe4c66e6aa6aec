package ledger

import (
	"database/sql"
	"fmt"
)

// SQLStore keeps the ledger in the sqlite "ledger" table.
//
// The database must already be migrated with [shared.RunMigrations].
type SQLStore struct {
	db   *sql.DB
	name string
}

// NewSQLStore returns a store over db. name is used in log output.
func NewSQLStore(db *sql.DB, name string) *SQLStore {
	return &SQLStore{db: db, name: name}
}

func (s *SQLStore) String() string { return "sqlite:" + s.name }

// Load implements [Store].
func (s *SQLStore) Load() ([]Record, error) {
	rows, err := s.db.Query(`SELECT video_id, path, size, recorded_at FROM ledger ORDER BY recorded_at, video_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.VideoID, &r.Path, &r.Size, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Persist implements [Store] with a single insert. Existing rows are never overwritten.
func (s *SQLStore) Persist(rec Record, _ []Record) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO ledger (video_id, path, size, recorded_at) VALUES (?, ?, ?, ?)`,
		rec.VideoID, rec.Path, rec.Size, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}
	return nil
}
