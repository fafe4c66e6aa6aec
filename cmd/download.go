package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytpull/internal/formatter"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/repositories"
	"github.com/desertthunder/ytpull/internal/services"
	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/desertthunder/ytpull/internal/snapshot"
	"github.com/desertthunder/ytpull/internal/tasks"
	"github.com/urfave/cli/v3"
)

// maxRetryDelay caps exponential backoff.
const maxRetryDelay = 2 * time.Minute

// mode selects which phases of a run execute.
type mode int

const (
	modeDefault mode = iota
	modeFetchOnly
	modeDownloadOnly
)

// Default fetches the playlist, then downloads every entry not yet in the ledger.
func (r *Runner) Default(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() {
		return fmt.Errorf("%w: unknown command %q", shared.ErrInvalidArgument, cmd.Args().First())
	}
	return r.execute(ctx, modeDefault)
}

// Fetch refreshes the cached snapshot and exits.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	return r.execute(ctx, modeFetchOnly)
}

// Download runs from the cached snapshot without listing the playlist.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	return r.execute(ctx, modeDownloadOnly)
}

func (r *Runner) execute(ctx context.Context, m mode) error {
	selector, err := r.selector()
	if err != nil {
		return err
	}

	snap, err := r.resolveSnapshot(ctx, selector, m)
	if err != nil {
		return err
	}

	if m == modeFetchOnly {
		if r.useJSON {
			return r.writeJSON(snap, true)
		}
		return r.writePlain("✓ Cached %d entries of %s to %s\n", snap.Len(), snap.PlaylistID, r.config.Playlist.SnapshotPath)
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		r.printProgress(progress)
	}()

	summary, err := r.runDownloads(ctx, snap, progress)
	close(progress)
	<-printed
	if err != nil {
		return err
	}
	return r.finish(summary)
}

// resolveSnapshot produces the entries for a run. Fetch-only never falls back to the cache;
// the default mode does when listing fails for a reason other than authentication.
func (r *Runner) resolveSnapshot(ctx context.Context, selector string, m mode) (*models.Snapshot, error) {
	path := shared.ExpandPath(r.config.Playlist.SnapshotPath)

	if m == modeDownloadOnly {
		snap, err := snapshot.LoadCached(path)
		if errors.Is(err, shared.ErrNoSnapshot) {
			return nil, fmt.Errorf("%w at %s, run `ytpull fetch` first", shared.ErrNoSnapshot, path)
		}
		if err != nil {
			return nil, err
		}
		if want := services.ParsePlaylistSelector(selector); snap.PlaylistID != want {
			r.logger.Warn("cached snapshot is for another playlist", "cached", snap.PlaylistID, "requested", want)
		}
		r.logger.Info("using cached snapshot", "entries", snap.Len(), "fetched_at", snap.FetchedAt.Format(time.RFC3339),
			"age", snap.Age(time.Now()).Round(time.Second))
		return snap, nil
	}

	if err := r.playlistServices(ctx); err != nil {
		return nil, err
	}
	if err := r.authenticate(ctx); err != nil {
		return nil, err
	}

	if m == modeFetchOnly {
		snap, err := snapshot.Fetch(ctx, r.lister, selector, r.logger)
		if err != nil {
			return nil, listingFailure(err)
		}
		if err := snapshot.Save(path, snap); err != nil {
			return nil, err
		}
		return snap, nil
	}

	snap, source, err := snapshot.Resolve(ctx, r.lister, selector, path, true, r.logger)
	if err != nil {
		return nil, listingFailure(err)
	}
	r.logger.Debug("snapshot resolved", "source", source, "entries", snap.Len())
	return snap, nil
}

// authenticate obtains a token up front so an auth failure aborts before anything is dispatched.
func (r *Runner) authenticate(ctx context.Context) error {
	if r.auth == nil {
		return nil
	}
	if _, err := r.auth.Token(ctx); err != nil {
		return fmt.Errorf("%w: %w (run `ytpull auth login`)", shared.ErrNotAuthenticated, err)
	}
	return nil
}

func listingFailure(err error) error {
	var authErr *services.AuthError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}

	var listErr *services.ListingError
	if errors.As(err, &listErr) && listErr.Kind == services.ListingNotFound {
		return fmt.Errorf("%w: %w", shared.ErrPlaylistNotFound, err)
	}
	return err
}

// runDownloads runs the orchestrator, then records the run and cleans the playlist if configured.
func (r *Runner) runDownloads(ctx context.Context, snap *models.Snapshot, progress chan<- tasks.ProgressUpdate) (*models.RunSummary, error) {
	constraint, err := r.constraint()
	if err != nil {
		return nil, err
	}
	delay, err := r.config.Download.RetryDelayDuration()
	if err != nil {
		return nil, err
	}

	l, err := r.openLedger()
	if err != nil {
		return nil, err
	}
	fetcher, err := r.mediaFetcher(ctx)
	if err != nil {
		return nil, err
	}

	dl := r.config.Download
	orchestrator := tasks.NewOrchestrator(l, fetcher, shared.ExpandPath(dl.OutputDir), r.logger).
		WithBackoff(r.backoff(delay))
	summary, err := orchestrator.Run(ctx, progress, snap, tasks.RunOptions{
		Constraint:  constraint,
		Concurrency: dl.Concurrency,
		Attempts:    dl.RetryAttempts,
		RetryDelay:  delay,
		RateLimit:   dl.RateLimit,
		AudioOnly:   dl.AudioOnly,
	})
	if err != nil {
		return nil, err
	}

	r.recordRun(summary)

	if r.config.Playlist.AutoClean {
		r.autoClean(ctx, snap.PlaylistID, summary, progress)
	}
	return summary, nil
}

// backoff builds the retry schedule configured by download.backoff.
func (r *Runner) backoff(delay time.Duration) tasks.Backoff {
	if r.config.Download.Backoff == "exponential" {
		return tasks.ExponentialBackoff{Base: delay, Max: maxRetryDelay}
	}
	return tasks.FixedBackoff(delay)
}

// recordRun stores the summary in the history database. Failures are logged, never fatal.
func (r *Runner) recordRun(summary *models.RunSummary) {
	db, err := r.database()
	if err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		return
	}

	sequence, err := repositories.NewRunRepository(db).Create(summary)
	if err != nil {
		r.logger.Warn("failed to record run", "run", summary.RunID, "error", err)
		return
	}
	r.logger.Debug("run recorded", "run", summary.RunID, "sequence", sequence)
}

// autoClean removes downloaded entries from the remote playlist after the run has finished.
func (r *Runner) autoClean(ctx context.Context, playlistID string, summary *models.RunSummary, progress chan<- tasks.ProgressUpdate) {
	if summary.Cancelled || ctx.Err() != nil {
		r.logger.Info("run was cancelled, skipping auto-clean")
		return
	}

	if r.cleaner == nil && r.config.Playlist.Source != "public" {
		if err := r.playlistServices(ctx); err != nil {
			r.logger.Warn("auto-clean unavailable", "error", err)
			return
		}
	}
	if r.cleaner == nil {
		r.logger.Warn("auto-clean requires playlist.source = \"api\"")
		return
	}

	if _, err := tasks.AutoClean(ctx, progress, r.cleaner, playlistID, summary, r.logger); err != nil {
		r.logger.Warn("auto-clean incomplete", "error", err)
	}
}

// finish writes the report and summary. A summary with failures becomes [shared.ErrDownloadsFailed].
func (r *Runner) finish(summary *models.RunSummary) error {
	if r.report != "" {
		format, err := formatter.ParseFormat(r.reportFmt, r.report)
		if err != nil {
			return err
		}
		path, err := formatter.WriteSummary(summary, format, r.report)
		if err != nil {
			r.logger.Error("failed to write report", "error", err)
		} else {
			r.logger.Info("report written", "path", path, "format", format)
		}
	}

	if r.useJSON {
		if err := r.writeJSON(summary, true); err != nil {
			return err
		}
	} else {
		r.printSummary(summary)
	}

	if summary.HasFailures() {
		return fmt.Errorf("%w: %d of %d videos", shared.ErrDownloadsFailed, summary.Failed, summary.Total())
	}
	return nil
}

func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) {
	for update := range progress {
		if r.useJSON {
			continue
		}
		switch update.Phase {
		case tasks.Complete, tasks.Clean:
			r.writePlain("%s\n", update.Message)
		}
	}
}

func (r *Runner) printSummary(s *models.RunSummary) {
	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Run %s", s.RunID))
	r.writePlain("Downloaded:  %d\n", s.Succeeded)
	r.writePlain("Skipped:     %d\n", s.Skipped)
	r.writePlain("Unavailable: %d\n", s.Unavailable)
	r.writePlain("Failed:      %d\n", s.Failed)
	if s.Cancelled {
		r.writePlain("Cancelled:   %d not finished\n", s.Remaining)
	}
	r.writePlain("Elapsed:     %s\n", s.Duration().Round(time.Second))

	for _, o := range s.ByKind(models.OutcomeFailed) {
		r.writePlain("  ✗ %s (%s): %s\n", o.Entry.Title, o.Entry.ID, o.Detail())
	}
}
