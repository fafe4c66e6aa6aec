package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/ytpull/internal/models"
)

// RunEntry is a row of run history.
type RunEntry struct {
	Sequence int
	Summary  *models.RunSummary
}

// RunRepository stores [models.RunSummary] values and their outcomes.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts the run and all of its outcomes, returning the run's sequence number.
func (r *RunRepository) Create(summary *models.RunSummary) (int, error) {
	if summary.RunID == "" {
		return 0, fmt.Errorf("validation failed: run id is required")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequence(tx, "runs")
	if err != nil {
		return 0, err
	}

	finished := summary.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO runs (id, sequence, playlist_id, started_at, finished_at, succeeded, skipped, failed, unavailable, remaining, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		summary.RunID,
		sequence,
		summary.PlaylistID,
		summary.StartedAt,
		finished,
		summary.Succeeded,
		summary.Skipped,
		summary.Failed,
		summary.Unavailable,
		summary.Remaining,
		summary.Cancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_outcomes (run_id, ordinal, video_id, position, title, kind, path, reason, error_kind, attempts, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range summary.Outcomes {
		_, err := stmt.Exec(
			summary.RunID,
			i,
			o.Entry.ID,
			o.Entry.Position,
			o.Entry.Title,
			o.Kind.String(),
			o.Path,
			o.Reason,
			o.ErrorKind,
			o.Attempts,
			o.Elapsed.Milliseconds(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert outcome %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return sequence, nil
}

// Get retrieves a run by ID with its outcomes in completion order.
func (r *RunRepository) Get(id string) (*RunEntry, error) {
	query := `
		SELECT id, sequence, playlist_id, started_at, finished_at, succeeded, skipped, failed, unavailable, remaining, cancelled
		FROM runs
		WHERE id = ?
	`

	entry, err := scanRun(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	outcomes, err := r.Outcomes(id)
	if err != nil {
		return nil, err
	}
	entry.Summary.Outcomes = outcomes
	return entry, nil
}

// List returns the most recent runs, newest first, without outcomes. A limit of 0 returns every run.
func (r *RunRepository) List(limit int) ([]*RunEntry, error) {
	query := `
		SELECT id, sequence, playlist_id, started_at, finished_at, succeeded, skipped, failed, unavailable, remaining, cancelled
		FROM runs
		ORDER BY sequence DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var entries []*RunEntry
	for rows.Next() {
		entry, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Outcomes returns the outcomes recorded for a run in completion order.
func (r *RunRepository) Outcomes(runID string) ([]models.Outcome, error) {
	rows, err := r.db.Query(`
		SELECT video_id, position, title, kind, path, reason, error_kind, attempts, elapsed_ms
		FROM run_outcomes
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []models.Outcome{}
	for rows.Next() {
		var (
			o         models.Outcome
			kind      string
			elapsedMS int64
		)
		err := rows.Scan(&o.Entry.ID, &o.Entry.Position, &o.Entry.Title, &kind, &o.Path, &o.Reason, &o.ErrorKind, &o.Attempts, &elapsedMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		if o.Kind, err = models.ParseOutcomeKind(kind); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return outcomes, nil
}

// FailedVideos returns the IDs that failed in a run, for retry reporting.
func (r *RunRepository) FailedVideos(runID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT video_id FROM run_outcomes WHERE run_id = ? AND kind = ? ORDER BY ordinal`, runID, models.OutcomeFailed.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query failed videos: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan video id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a run and its outcomes.
func (r *RunRepository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM run_outcomes WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete outcomes: %w", err)
	}

	result, err := r.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunEntry, error) {
	var (
		s        models.RunSummary
		sequence int
	)

	err := row.Scan(&s.RunID, &sequence, &s.PlaylistID, &s.StartedAt, &s.FinishedAt,
		&s.Succeeded, &s.Skipped, &s.Failed, &s.Unavailable, &s.Remaining, &s.Cancelled)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	s.Outcomes = []models.Outcome{}
	return &RunEntry{Sequence: sequence, Summary: &s}, nil
}
