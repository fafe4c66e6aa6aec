package tasks

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
	"github.com/desertthunder/ytpull/internal/shared"
	"golang.org/x/time/rate"
)

// Recorder is the ledger as seen by the orchestrator.
type Recorder interface {
	LedgerChecker
	Record(id, path string, size int64) (bool, error)
}

// RunOptions contains configuration for a download run.
type RunOptions struct {
	Constraint  models.ResolutionConstraint
	Concurrency int           // Workers, clamped to 1..5
	Attempts    int           // Attempts per video, at least 1
	RetryDelay  time.Duration // Pause between attempts
	RateLimit   float64       // Dispatches per second, 0 for no limit
	AudioOnly   bool          // Name files with the audio container extension
}

func (o RunOptions) normalize() RunOptions {
	o.Concurrency = max(shared.MinConcurrency, min(o.Concurrency, shared.MaxConcurrency))
	o.Attempts = max(o.Attempts, 1)
	o.RetryDelay = max(o.RetryDelay, 0)
	return o
}

// Orchestrator runs a snapshot through a bounded pool of [DownloadTask] workers.
type Orchestrator struct {
	ledger    Recorder
	fetcher   services.MediaFetcher
	outputDir string
	logger    *log.Logger
	backoff   Backoff
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator writing into outputDir.
func NewOrchestrator(ledger Recorder, fetcher services.MediaFetcher, outputDir string, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:    ledger,
		fetcher:   fetcher,
		outputDir: outputDir,
		logger:    logger,
		now:       time.Now,
	}
}

// WithBackoff replaces the fixed retry delay with b.
func (o *Orchestrator) WithBackoff(b Backoff) *Orchestrator {
	o.backoff = b
	return o
}

// Run downloads every entry of snap and returns the summary.
//
// Entries are dispatched in position order as workers become free; outcomes are summarized
// in completion order. Each success is written to the ledger before its worker takes another
// entry. After cancellation no new entry is dispatched; undispatched entries and entries whose
// retries were abandoned are counted as remaining.
// The error is non-nil only when the run could not start.
func (o *Orchestrator) Run(ctx context.Context, progress chan<- ProgressUpdate, snap *models.Snapshot, opts RunOptions) (*models.RunSummary, error) {
	opts = opts.normalize()
	if err := opts.Constraint.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := models.NewRunSummary(shared.GenerateID(), snap.PlaylistID, o.now().UTC())
	logger := shared.WithLogger(o.logger, "run", summary.RunID)

	queue, duplicates := partition(snap.Entries)
	total := len(snap.Entries)
	completed := 0

	for _, dup := range duplicates {
		completed++
		out := models.Skipped(dup, ReasonDuplicate)
		summary.Add(out)
		sendProgress(progress, completeUpdate(completed, total, out))
	}

	logger.Info("run started",
		"playlist", snap.PlaylistID, "entries", len(queue), "workers", opts.Concurrency,
		"attempts", opts.Attempts, "retry_delay", opts.RetryDelay, "resolution", opts.Constraint)

	task := &DownloadTask{
		Ledger:    o.ledger,
		Fetcher:   o.fetcher,
		OutputDir: o.outputDir,
		Extension: Extension(opts.AudioOnly),
		Logger:    logger,
		Backoff:   o.backoff,
		progress:  progress,
		sleep:     o.sleep,
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	jobs := make(chan models.VideoEntry)
	results := make(chan models.Outcome, opts.Concurrency)
	remaining := 0
	var abandoned atomic.Int32

	var wg sync.WaitGroup
	for range opts.Concurrency {
		wg.Add(1)
		go o.worker(ctx, &wg, task, jobs, results, &abandoned, opts)
	}

	go func() {
		defer close(jobs)
		for i, entry := range queue {
			if ctx.Err() != nil {
				remaining = len(queue) - i
				return
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					remaining = len(queue) - i
					return
				}
			}

			select {
			case <-ctx.Done():
				remaining = len(queue) - i
				return
			case jobs <- entry:
				sendProgress(progress, dispatchUpdate(i+1, len(queue), entry))
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		completed++
		summary.Add(out)
		sendProgress(progress, completeUpdate(completed, total, out))
	}

	summary.Remaining = remaining + int(abandoned.Load())
	summary.Cancelled = ctx.Err() != nil
	summary.FinishedAt = o.now().UTC()

	level := log.InfoLevel
	if summary.HasFailures() {
		level = log.WarnLevel
	}
	logger.Log(level, "run finished",
		"succeeded", summary.Succeeded, "skipped", summary.Skipped, "failed", summary.Failed,
		"unavailable", summary.Unavailable, "remaining", summary.Remaining,
		"cancelled", summary.Cancelled, "elapsed", summary.Duration().Round(time.Millisecond))

	return summary, nil
}

// worker is a worker goroutine that downloads entries from the jobs channel.
func (o *Orchestrator) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	task *DownloadTask,
	jobs <-chan models.VideoEntry,
	results chan<- models.Outcome,
	abandoned *atomic.Int32,
	opts RunOptions,
) {
	defer wg.Done()

	for entry := range jobs {
		if ctx.Err() != nil {
			abandoned.Add(1)
			continue
		}

		out := task.Execute(ctx, entry, opts.Constraint, opts.Attempts, opts.RetryDelay)
		if interrupted(out) {
			abandoned.Add(1)
			continue
		}
		if out.Kind == models.OutcomeSuccess {
			if _, err := o.ledger.Record(entry.ID, out.Path, out.Size); err != nil {
				o.logger.Error("failed to record download, it will be fetched again next run",
					"video", entry.ID, "path", out.Path, "error", err)
			}
		}
		results <- out
	}
}

// interrupted reports whether cancellation cut an entry's retries short.
// Such entries are left for the next run instead of being counted as failures.
func interrupted(o models.Outcome) bool {
	return o.Kind == models.OutcomeFailed && o.ErrorKind == ErrorKindCancelled
}

// partition splits entries into the dispatch queue and repeated identifiers.
func partition(entries []models.VideoEntry) (queue, duplicates []models.VideoEntry) {
	seen := make(map[string]bool, len(entries))
	queue = make([]models.VideoEntry, 0, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			duplicates = append(duplicates, e)
			continue
		}
		seen[e.ID] = true
		queue = append(queue, e)
	}
	return queue, duplicates
}
