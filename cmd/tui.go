package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/desertthunder/ytpull/internal/tasks"
	"github.com/desertthunder/ytpull/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI: pick a playlist, confirm, and watch the run.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	constraint, err := r.constraint()
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := filepath.Join(os.TempDir(), "ytpull-tui.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()
	r.logger.SetOutput(logFile)
	defer r.logger.SetOutput(os.Stderr)

	if err := r.playlistServices(ctx); err != nil {
		return err
	}
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	run := func(ctx context.Context, playlistID string, progress chan<- tasks.ProgressUpdate) (*models.RunSummary, error) {
		r.config.Playlist.ID = playlistID
		snap, err := r.resolveSnapshot(ctx, playlistID, modeDefault)
		if err != nil {
			return nil, err
		}
		return r.runDownloads(ctx, snap, progress)
	}

	dl := r.config.Download
	model := ui.NewModel(ctx, r.catalog, run, ui.Settings{
		Playlist:    r.config.Playlist.ID,
		Resolution:  constraint,
		Concurrency: dl.Concurrency,
		Attempts:    dl.RetryAttempts,
		OutputDir:   dl.OutputDir,
	})

	r.logger.Info("starting TUI", "log", logPath)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	summary := model.Summary()
	if summary == nil {
		return nil
	}
	if r.report != "" || r.useJSON {
		return r.finish(summary)
	}
	if summary.HasFailures() {
		return fmt.Errorf("%w: %d of %d videos", shared.ErrDownloadsFailed, summary.Failed, summary.Total())
	}
	return nil
}
