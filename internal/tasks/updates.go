package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/ytpull/internal/models"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // models.VideoEntry for dispatch/attempt/retry, models.Outcome for complete
}

// Operation phase enumeration
type Phase int

const (
	Dispatch Phase = iota
	Attempt
	Retry
	Complete
	Clean
)

func (p Phase) String() string {
	switch p {
	case Dispatch:
		return "dispatch"
	case Attempt:
		return "attempt"
	case Retry:
		return "retry"
	case Complete:
		return "complete"
	case Clean:
		return "clean"
	default:
		return ""
	}
}

func dispatchUpdate(step, total int, entry models.VideoEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Dispatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Starting %s", step, total, entry.Title),
		Data:    entry,
	}
}

func attemptUpdate(attempt, allowed int, entry models.VideoEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Attempt,
		Step:    attempt,
		Total:   allowed,
		Message: fmt.Sprintf("Downloading %s (attempt %d/%d)", entry.Title, attempt, allowed),
		Data:    entry,
	}
}

func retryUpdate(attempt, allowed int, entry models.VideoEntry, delay time.Duration, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Retry,
		Step:    attempt,
		Total:   allowed,
		Message: fmt.Sprintf("Retrying %s in %s: %v", entry.Title, delay, err),
		Data:    entry,
	}
}

func completeUpdate(step, total int, o models.Outcome) ProgressUpdate {
	mark := "✓"
	switch o.Kind {
	case models.OutcomeSkipped:
		mark = "·"
	case models.OutcomeFailed:
		mark = "✗"
	case models.OutcomeUnavailable:
		mark = "⊘"
	}
	return ProgressUpdate{
		Phase:   Complete,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, o.Entry.Title),
		Data:    o,
	}
}

func cleanUpdate(removed, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Clean,
		Step:    removed,
		Total:   total,
		Message: fmt.Sprintf("Removed %d of %d downloaded videos from the playlist", removed, total),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
