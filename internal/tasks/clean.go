package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
)

// CleanCandidates lists videos from summary that are safely on disk: new downloads and
// entries skipped because the ledger already held them.
func CleanCandidates(summary *models.RunSummary) []string {
	var ids []string
	for _, o := range summary.Outcomes {
		if o.Kind == models.OutcomeSuccess || (o.Kind == models.OutcomeSkipped && o.Reason == ReasonAlreadyDownloaded) {
			ids = append(ids, o.Entry.ID)
		}
	}
	return ids
}

// AutoClean removes downloaded videos from the remote playlist.
//
// It must only be called once [Orchestrator.Run] has returned.
func AutoClean(ctx context.Context, progress chan<- ProgressUpdate, cleaner services.PlaylistCleaner, selector string, summary *models.RunSummary, logger *log.Logger) (int, error) {
	ids := CleanCandidates(summary)
	if len(ids) == 0 {
		logger.Debug("nothing to clean")
		return 0, nil
	}

	removed, err := cleaner.RemoveVideos(ctx, selector, ids)
	sendProgress(progress, cleanUpdate(removed, len(ids)))
	if err != nil {
		logger.Warn("playlist cleanup incomplete", "removed", removed, "candidates", len(ids), "error", err)
		return removed, err
	}

	logger.Info("playlist cleaned", "playlist", selector, "removed", removed)
	return removed, nil
}
