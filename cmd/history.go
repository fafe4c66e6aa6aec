package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/ytpull/internal/formatter"
	"github.com/desertthunder/ytpull/internal/repositories"
	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists recorded runs, or shows one run when given its ID or sequence number.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewRunRepository(db)

	if cmd.Bool("failed") {
		return r.failedVideos(repo, cmd.StringArg("run"))
	}

	if arg := cmd.StringArg("run"); arg != "" {
		entry, err := findRun(repo, arg)
		if err != nil {
			return err
		}
		if r.useJSON {
			return r.writeJSON(entry, true)
		}
		r.writePlainHeader(fmt.Sprintf("Run #%d  %s", entry.Sequence, entry.Summary.RunID))
		text, err := formatter.SummaryToText(entry.Summary)
		if err != nil {
			return err
		}
		_, err = r.output.Write(text)
		return err
	}

	entries, err := repo.List(cmd.Int("limit"))
	if err != nil {
		return err
	}
	if r.useJSON {
		return r.writeJSON(entries, true)
	}
	if len(entries) == 0 {
		return r.writePlain("No runs recorded yet\n")
	}

	for _, e := range entries {
		s := e.Summary
		status := "ok"
		switch {
		case s.Cancelled:
			status = "cancelled"
		case s.HasFailures():
			status = "failed"
		}
		r.writePlain("#%-4d %s  %-10s %-24s ✓%d ↷%d ✗%d ∅%d  %s\n",
			e.Sequence, s.StartedAt.Local().Format(time.DateTime), status, s.PlaylistID,
			s.Succeeded, s.Skipped, s.Failed, s.Unavailable, s.Duration().Round(time.Second))
	}
	return nil
}

// failedVideos prints the IDs that failed in a run, one per line, defaulting to the latest run.
func (r *Runner) failedVideos(repo *repositories.RunRepository, arg string) error {
	var runID string
	if arg != "" {
		entry, err := findRun(repo, arg)
		if err != nil {
			return err
		}
		runID = entry.Summary.RunID
	} else {
		latest, err := repo.List(1)
		if err != nil {
			return err
		}
		if len(latest) == 0 {
			return r.writePlain("No runs recorded yet\n")
		}
		runID = latest[0].Summary.RunID
	}

	ids, err := repo.FailedVideos(runID)
	if err != nil {
		return err
	}
	if r.useJSON {
		return r.writeJSON(ids, true)
	}
	for _, id := range ids {
		r.writePlain("%s\n", id)
	}
	return nil
}

// findRun resolves a run by ID, falling back to its sequence number.
func findRun(repo *repositories.RunRepository, arg string) (*repositories.RunEntry, error) {
	entry, err := repo.Get(arg)
	if err == nil {
		return entry, nil
	}

	sequence, convErr := strconv.Atoi(arg)
	if convErr != nil {
		return nil, err
	}
	entries, err := repo.List(0)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Sequence == sequence {
			return repo.Get(e.Summary.RunID)
		}
	}
	return nil, fmt.Errorf("%w: no run #%d", shared.ErrInvalidArgument, sequence)
}
