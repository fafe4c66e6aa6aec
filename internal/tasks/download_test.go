package tasks

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
	tu "github.com/desertthunder/ytpull/internal/testing"
)

type setLedger map[string]bool

func (s setLedger) Contains(id string) bool { return s[id] }

var constraint720 = models.ResolutionConstraint{Min: models.Q720, Max: models.Q1080, Preferred: models.Q720}

func newTask(t *testing.T, ledger LedgerChecker, fetcher services.MediaFetcher) (*DownloadTask, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	task := &DownloadTask{
		Ledger:    ledger,
		Fetcher:   fetcher,
		OutputDir: t.TempDir(),
		Logger:    log.New(io.Discard),
		sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return ctx.Err()
		},
	}
	return task, &slept
}

func TestDownloadTask(t *testing.T) {
	ctx := context.Background()
	entry := models.VideoEntry{ID: "v1", Title: "First", Position: 0}

	t.Run("Ledger hit skips without fetching", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		task, _ := newTask(t, setLedger{"v1": true}, fetcher)

		out := task.Execute(ctx, entry, constraint720, 3, 0)
		if out.Kind != models.OutcomeSkipped || out.Reason != ReasonAlreadyDownloaded {
			t.Errorf("expected skip, got %+v", out)
		}
		if fetcher.TotalCalls() != 0 {
			t.Errorf("expected no fetches, got %d", fetcher.TotalCalls())
		}
	})

	t.Run("Success writes the deterministic file name", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		task, _ := newTask(t, setLedger{}, fetcher)

		out := task.Execute(ctx, entry, constraint720, 3, 0)
		if out.Kind != models.OutcomeSuccess {
			t.Fatalf("expected success, got %+v", out)
		}
		want := filepath.Join(task.OutputDir, "0001 - First.mp4")
		if out.Path != want {
			t.Errorf("expected path %s, got %s", want, out.Path)
		}
		if out.Attempts != 1 || out.Quality != models.Q720 {
			t.Errorf("unexpected outcome details %+v", out)
		}
		tu.AssertFileExists(t, want)
	})

	t.Run("Audio-only destination uses the audio extension", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		task, _ := newTask(t, setLedger{}, fetcher)
		task.Extension = ExtAudio

		out := task.Execute(ctx, entry, constraint720, 1, 0)
		if want := filepath.Join(task.OutputDir, "0001 - First.m4a"); out.Path != want {
			t.Errorf("expected path %s, got %s", want, out.Path)
		}
	})

	t.Run("Permanent unavailability is not retried", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		fetcher.Default = tu.Permanent("v1")
		task, _ := newTask(t, setLedger{}, fetcher)

		out := task.Execute(ctx, entry, constraint720, 3, time.Second)
		if out.Kind != models.OutcomeUnavailable {
			t.Errorf("expected unavailable, got %+v", out)
		}
		if fetcher.Calls("v1") != 1 {
			t.Errorf("expected exactly 1 fetch, got %d", fetcher.Calls("v1"))
		}
	})

	t.Run("Retry exhaustion", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		fetcher.Default = tu.Transient("v1")
		task, slept := newTask(t, setLedger{}, fetcher)

		out := task.Execute(ctx, entry, constraint720, 3, 0)
		if out.Kind != models.OutcomeFailed {
			t.Fatalf("expected failure, got %+v", out)
		}
		if out.Attempts != 3 || fetcher.Calls("v1") != 3 {
			t.Errorf("expected 3 attempts, outcome says %d, fetcher saw %d", out.Attempts, fetcher.Calls("v1"))
		}
		if out.ErrorKind != services.FetchTransient.String() {
			t.Errorf("expected transient error kind, got %q", out.ErrorKind)
		}
		if len(*slept) != 2 {
			t.Errorf("expected 2 pauses, got %d", len(*slept))
		}
	})

	t.Run("Fixed delay between attempts", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		fetcher.Script("v1", tu.Transient("v1"), errors.New("mystery"), nil)
		task, slept := newTask(t, setLedger{}, fetcher)

		out := task.Execute(ctx, entry, constraint720, 3, 5*time.Second)
		if out.Kind != models.OutcomeSuccess || out.Attempts != 3 {
			t.Fatalf("expected success on third attempt, got %+v", out)
		}
		for _, d := range *slept {
			if d != 5*time.Second {
				t.Errorf("expected fixed 5s delay, got %s", d)
			}
		}
	})

	t.Run("Custom backoff", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		fetcher.Script("v1", tu.Transient("v1"), tu.Transient("v1"), nil)
		task, slept := newTask(t, setLedger{}, fetcher)
		task.Backoff = doubling(time.Second)

		task.Execute(ctx, entry, constraint720, 3, 5*time.Second)
		if len(*slept) != 2 || (*slept)[0] != time.Second || (*slept)[1] != 2*time.Second {
			t.Errorf("expected 1s then 2s, got %v", *slept)
		}
	})

	t.Run("No acceptable stream fails without retry", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		fetcher.Default = tu.NoStream("v1")
		task, _ := newTask(t, setLedger{}, fetcher)

		out := task.Execute(ctx, entry, constraint720, 3, 0)
		if out.Kind != models.OutcomeFailed {
			t.Fatalf("expected failure, got %+v", out)
		}
		if fetcher.Calls("v1") != 1 {
			t.Errorf("expected 1 fetch, got %d", fetcher.Calls("v1"))
		}
		if out.Attempts != 3 {
			t.Errorf("expected attempts reported as the allowance, got %d", out.Attempts)
		}
	})

	t.Run("Sign-in requirement fails without retry", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		fetcher.Default = tu.AuthRequired("v1")
		task, slept := newTask(t, setLedger{}, fetcher)

		out := task.Execute(ctx, entry, constraint720, 3, time.Second)
		if out.Kind != models.OutcomeFailed || out.ErrorKind != services.FetchAuthRequired.String() {
			t.Fatalf("expected auth_required failure, got %+v", out)
		}
		if fetcher.Calls("v1") != 1 || out.Attempts != 1 || len(*slept) != 0 {
			t.Errorf("expected a single attempt, fetcher saw %d, outcome says %d", fetcher.Calls("v1"), out.Attempts)
		}
	})

	t.Run("Cancellation stops retries but not the running attempt", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		fetcher := tu.NewMockFetcher()
		fetcher.Default = tu.Transient("v1")
		fetcher.OnFetch = func(string) { cancel() }
		task, _ := newTask(t, setLedger{}, fetcher)

		out := task.Execute(cctx, entry, constraint720, 3, 0)
		if fetcher.Calls("v1") != 1 {
			t.Errorf("expected 1 fetch, got %d", fetcher.Calls("v1"))
		}
		if out.Kind != models.OutcomeFailed || out.ErrorKind != ErrorKindCancelled || out.Attempts != 1 {
			t.Errorf("expected cancelled failure after 1 attempt, got %+v", out)
		}
	})

	t.Run("Attempt allowance below one means one attempt", func(t *testing.T) {
		fetcher := tu.NewMockFetcher()
		fetcher.Default = tu.Transient("v1")
		task, _ := newTask(t, setLedger{}, fetcher)

		if out := task.Execute(ctx, entry, constraint720, 0, 0); out.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", out.Attempts)
		}
	})
}

type doubling time.Duration

func (d doubling) Delay(failed int) time.Duration {
	return time.Duration(d) << (failed - 1)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{Base: time.Second, Max: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %s, want %s", i+1, got, w)
		}
	}

	if got := (ExponentialBackoff{Base: time.Second}).Delay(6); got != 32*time.Second {
		t.Errorf("uncapped Delay(6) = %s, want 32s", got)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Errorf("expected nil for zero delay, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
