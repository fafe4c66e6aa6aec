package models

import "time"

// RunSummary aggregates outcomes for a run. Outcomes are kept in completion order.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	PlaylistID  string    `json:"playlist_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Succeeded   int       `json:"succeeded"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Unavailable int       `json:"unavailable"`
	Remaining   int       `json:"remaining"` // left unfinished because the run was cancelled
	Cancelled   bool      `json:"cancelled"`
	Outcomes    []Outcome `json:"outcomes"`
}

// NewRunSummary starts an empty summary.
func NewRunSummary(runID, playlistID string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:      runID,
		PlaylistID: playlistID,
		StartedAt:  startedAt,
		Outcomes:   []Outcome{},
	}
}

// Add appends o and bumps the matching counter.
func (s *RunSummary) Add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Kind {
	case OutcomeSuccess:
		s.Succeeded++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	case OutcomeUnavailable:
		s.Unavailable++
	}
}

// Total is the number of entries with a terminal outcome.
func (s *RunSummary) Total() int {
	return len(s.Outcomes)
}

// HasFailures reports whether any entry ended as Failed.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// ExitCode is 1 when any entry failed, 0 otherwise. Skipped and unavailable entries do not count.
func (s *RunSummary) ExitCode() int {
	if s.HasFailures() {
		return 1
	}
	return 0
}

// Duration is the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// ByKind returns the outcomes of one kind, in completion order.
func (s *RunSummary) ByKind(kind OutcomeKind) []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}
