package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/urfave/cli/v3"
)

// LedgerList prints every recorded download, oldest first.
func (r *Runner) LedgerList(ctx context.Context, cmd *cli.Command) error {
	l, err := r.openLedger()
	if err != nil {
		return err
	}

	records := l.Records()
	if r.useJSON {
		return r.writeJSON(records, true)
	}

	r.writePlainHeader("Download Ledger")
	for _, rec := range records {
		r.writePlain("%-11s  %s  %s (%s)\n", rec.VideoID, rec.RecordedAt.Local().Format(time.DateTime), rec.Path, humanSize(rec.Size))
	}
	r.writePlain("\n%d videos recorded\n", len(records))
	return nil
}

// LedgerShow prints the record for one video.
func (r *Runner) LedgerShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("video")
	if id == "" {
		return fmt.Errorf("%w: video ID is required", shared.ErrMissingArgument)
	}

	l, err := r.openLedger()
	if err != nil {
		return err
	}
	rec, ok := l.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s is not in the ledger", shared.ErrInvalidArgument, id)
	}
	if r.useJSON {
		return r.writeJSON(rec, true)
	}

	r.writePlain("Video:    %s\n", rec.VideoID)
	r.writePlain("Path:     %s\n", rec.Path)
	r.writePlain("Size:     %s\n", humanSize(rec.Size))
	r.writePlain("Recorded: %s\n", rec.RecordedAt.Local().Format(time.DateTime))
	return nil
}

// LedgerVerify reports ledger entries whose file no longer exists on disk.
//
// Missing files are reported, not removed: the ledger is append-only.
func (r *Runner) LedgerVerify(ctx context.Context, cmd *cli.Command) error {
	l, err := r.openLedger()
	if err != nil {
		return err
	}

	missing := l.Verify()
	if r.useJSON {
		return r.writeJSON(map[string]any{"checked": l.Len(), "missing": missing}, true)
	}

	if len(missing) == 0 {
		return r.writePlain("✓ All %d recorded files are present\n", l.Len())
	}

	r.writePlain("✗ %d of %d recorded files are missing:\n", len(missing), l.Len())
	for _, rec := range missing {
		r.writePlain("  %s  %s\n", rec.VideoID, rec.Path)
	}
	r.logger.Warn("ledger entries without files are still treated as downloaded", "missing", len(missing))
	return nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
