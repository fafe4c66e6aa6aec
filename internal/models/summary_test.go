package models

import (
	"testing"
	"time"
)

func TestRunSummary(t *testing.T) {
	entry := func(i int) VideoEntry {
		return VideoEntry{ID: string(rune('a' + i)), Title: "video", Position: i}
	}

	t.Run("Add counts by kind and keeps completion order", func(t *testing.T) {
		s := NewRunSummary("run", "WL", time.Now())
		s.Add(Failed(entry(2), "transient", 3, "timeout"))
		s.Add(Succeeded(entry(0), "/tmp/0001 - video.mp4", 10, 1))
		s.Add(Skipped(entry(1), "already downloaded"))
		s.Add(Unavailable(entry(3), "Private video", 1))

		if s.Succeeded != 1 || s.Skipped != 1 || s.Failed != 1 || s.Unavailable != 1 {
			t.Errorf("unexpected counts %+v", s)
		}
		if s.Total() != 4 {
			t.Errorf("expected 4 outcomes, got %d", s.Total())
		}
		if s.Outcomes[0].Entry.Position != 2 || s.Outcomes[1].Entry.Position != 0 {
			t.Error("outcomes should be stored in insertion order")
		}
		if got := s.ByKind(OutcomeSkipped); len(got) != 1 || got[0].Entry.ID != "b" {
			t.Errorf("ByKind(skipped) = %+v", got)
		}
	})

	t.Run("ExitCode", func(t *testing.T) {
		tests := []struct {
			name     string
			outcomes []Outcome
			want     int
		}{
			{name: "empty", want: 0},
			{name: "skips and unavailable", outcomes: []Outcome{Skipped(entry(0), "done"), Unavailable(entry(1), "gone", 1)}, want: 0},
			{name: "one failure", outcomes: []Outcome{Succeeded(entry(0), "p", 1, 1), Failed(entry(1), "unknown", 3, "")}, want: 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := NewRunSummary("run", "WL", time.Now())
				for _, o := range tt.outcomes {
					s.Add(o)
				}
				if got := s.ExitCode(); got != tt.want {
					t.Errorf("ExitCode() = %d, want %d", got, tt.want)
				}
			})
		}
	})

	t.Run("Duration", func(t *testing.T) {
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		s := NewRunSummary("run", "WL", start)
		if s.Duration() != 0 {
			t.Error("unfinished run should report zero duration")
		}
		s.FinishedAt = start.Add(90 * time.Second)
		if s.Duration() != 90*time.Second {
			t.Errorf("Duration() = %v", s.Duration())
		}
	})
}

func TestOutcomeKind(t *testing.T) {
	for _, k := range []OutcomeKind{OutcomeSuccess, OutcomeSkipped, OutcomeFailed, OutcomeUnavailable} {
		got, err := ParseOutcomeKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseOutcomeKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseOutcomeKind("pending"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestOutcomeDetail(t *testing.T) {
	e := VideoEntry{ID: "x", Title: "t"}
	if d := Failed(e, "transient", 3, "timeout").Detail(); d != "transient after 3 attempt(s): timeout" {
		t.Errorf("unexpected detail %q", d)
	}
	if d := Succeeded(e, "/out/a.mp4", 1, 1).Detail(); d != "/out/a.mp4" {
		t.Errorf("unexpected detail %q", d)
	}
}

func TestSnapshotAge(t *testing.T) {
	fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := &Snapshot{PlaylistID: "PL1", FetchedAt: fetched}
	if got := snap.Age(fetched.Add(90 * time.Minute)); got != 90*time.Minute {
		t.Errorf("Age() = %s, want 1h30m", got)
	}
}
