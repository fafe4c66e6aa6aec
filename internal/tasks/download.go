package tasks

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
	"github.com/desertthunder/ytpull/internal/shared"
)

const (
	ReasonAlreadyDownloaded = "already downloaded"
	ReasonDuplicate         = "duplicate playlist entry"
	ReasonNoResolution      = "no acceptable resolution"

	// ErrorKindCancelled marks entries whose retries were cut short by cancellation.
	ErrorKindCancelled = "cancelled"
)

// LedgerChecker reports whether a video is already downloaded.
type LedgerChecker interface {
	Contains(id string) bool
}

// Backoff gives the pause before the next attempt, after failed attempts so far.
type Backoff interface {
	Delay(failed int) time.Duration
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff time.Duration

func (b FixedBackoff) Delay(int) time.Duration { return time.Duration(b) }

// ExponentialBackoff doubles Base after every failed attempt, capped at Max when Max is positive.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b ExponentialBackoff) Delay(failed int) time.Duration {
	d := b.Base
	for i := 1; i < failed; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// DownloadTask downloads single videos into OutputDir.
type DownloadTask struct {
	Ledger    LedgerChecker
	Fetcher   services.MediaFetcher
	OutputDir string
	Extension string // defaults to [ExtVideo]
	Logger    *log.Logger

	// Backoff overrides the fixed retry delay passed to Execute.
	Backoff Backoff

	progress chan<- ProgressUpdate
	sleep    func(ctx context.Context, d time.Duration) error
}

// Execute processes one entry and returns its terminal outcome.
//
// A started attempt always runs to completion, even if ctx is cancelled meanwhile;
// cancellation only prevents further retries.
func (t *DownloadTask) Execute(ctx context.Context, entry models.VideoEntry, constraint models.ResolutionConstraint, attemptsAllowed int, retryDelay time.Duration) models.Outcome {
	start := time.Now()
	logger := shared.WithLogger(t.Logger, "video", entry.ID)

	finish := func(o models.Outcome) models.Outcome {
		o.Elapsed = time.Since(start)
		return o
	}

	if t.Ledger.Contains(entry.ID) {
		logger.Debug("skipping, already downloaded", "title", entry.Title)
		return finish(models.Skipped(entry, ReasonAlreadyDownloaded))
	}

	if attemptsAllowed < 1 {
		attemptsAllowed = 1
	}
	backoff := t.Backoff
	if backoff == nil {
		backoff = FixedBackoff(retryDelay)
	}
	sleep := t.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	ext := t.Extension
	if ext == "" {
		ext = ExtVideo
	}
	dest := filepath.Join(t.OutputDir, FileName(entry, ext))
	var (
		lastErr  error
		lastKind services.FetchKind
	)

	for attempt := 1; attempt <= attemptsAllowed; attempt++ {
		if attempt > 1 {
			delay := backoff.Delay(attempt - 1)
			logger.Warn("retrying download", "attempt", attempt, "of", attemptsAllowed, "delay", delay, "error", lastErr)
			sendProgress(t.progress, retryUpdate(attempt, attemptsAllowed, entry, delay, lastErr))

			if err := sleep(ctx, delay); err != nil {
				logger.Warn("retries abandoned, run cancelled", "attempts", attempt-1)
				return finish(models.Failed(entry, ErrorKindCancelled, attempt-1, lastErr.Error()))
			}
		}

		logger.Debug("download attempt", "attempt", attempt, "of", attemptsAllowed, "dest", dest, "constraint", constraint)
		sendProgress(t.progress, attemptUpdate(attempt, attemptsAllowed, entry))

		res, err := t.Fetcher.Fetch(context.WithoutCancel(ctx), entry.ID, constraint, dest)
		if err == nil {
			o := models.Succeeded(entry, res.Path, res.Size, attempt)
			o.Quality = res.Quality
			logger.Info("downloaded", "title", entry.Title, "path", res.Path, "quality", res.Quality, "attempts", attempt)
			return finish(o)
		}

		kind := services.FetchKindOf(err)
		switch kind {
		case services.FetchPermanentUnavailable:
			logger.Warn("video unavailable, not retrying", "title", entry.Title, "error", err)
			return finish(models.Unavailable(entry, err.Error(), attempt))
		case services.FetchAuthRequired:
			logger.Error("video needs sign-in, not retrying", "title", entry.Title, "error", err)
			return finish(models.Failed(entry, kind.String(), attempt, err.Error()))
		case services.FetchNoAcceptableStream:
			logger.Error("no stream within resolution bounds", "title", entry.Title, "constraint", constraint, "error", err)
			return finish(models.Failed(entry, kind.String(), attemptsAllowed, ReasonNoResolution+": "+err.Error()))
		}

		lastErr, lastKind = err, kind
		logger.Debug("attempt failed", "attempt", attempt, "kind", kind, "error", err)
	}

	logger.Error("download failed", "title", entry.Title, "attempts", attemptsAllowed, "kind", lastKind, "error", lastErr)
	return finish(models.Failed(entry, lastKind.String(), attemptsAllowed, lastErr.Error()))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
