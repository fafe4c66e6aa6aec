package models

import (
	"fmt"
	"time"
)

// OutcomeKind tags the terminal result of one entry.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSkipped
	OutcomeFailed
	OutcomeUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return ""
	}
}

// ParseOutcomeKind is the inverse of [OutcomeKind.String].
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	for _, k := range []OutcomeKind{OutcomeSuccess, OutcomeSkipped, OutcomeFailed, OutcomeUnavailable} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome kind %q", s)
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *OutcomeKind) UnmarshalText(b []byte) error {
	v, err := ParseOutcomeKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Outcome is the terminal result of processing one [VideoEntry].
//
// Path and Size are set for successes, Reason for skips and unavailable videos,
// ErrorKind and Attempts for failures.
type Outcome struct {
	Entry     VideoEntry    `json:"entry"`
	Kind      OutcomeKind   `json:"kind"`
	Path      string        `json:"path,omitempty"`
	Size      int64         `json:"size,omitempty"`
	Quality   Quality       `json:"quality,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Attempts  int           `json:"attempts"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Succeeded builds a success outcome.
func Succeeded(entry VideoEntry, path string, size int64, attempts int) Outcome {
	return Outcome{Entry: entry, Kind: OutcomeSuccess, Path: path, Size: size, Attempts: attempts}
}

// Skipped builds a skip outcome.
func Skipped(entry VideoEntry, reason string) Outcome {
	return Outcome{Entry: entry, Kind: OutcomeSkipped, Reason: reason}
}

// Failed builds a failure outcome.
func Failed(entry VideoEntry, errorKind string, attempts int, reason string) Outcome {
	return Outcome{Entry: entry, Kind: OutcomeFailed, ErrorKind: errorKind, Attempts: attempts, Reason: reason}
}

// Unavailable builds a permanently-unavailable outcome.
func Unavailable(entry VideoEntry, reason string, attempts int) Outcome {
	return Outcome{Entry: entry, Kind: OutcomeUnavailable, Reason: reason, Attempts: attempts}
}

// Detail returns the most useful human-readable field for the kind.
func (o Outcome) Detail() string {
	switch o.Kind {
	case OutcomeSuccess:
		return o.Path
	case OutcomeFailed:
		if o.Reason != "" {
			return fmt.Sprintf("%s after %d attempt(s): %s", o.ErrorKind, o.Attempts, o.Reason)
		}
		return fmt.Sprintf("%s after %d attempt(s)", o.ErrorKind, o.Attempts)
	default:
		return o.Reason
	}
}
