package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytpull/internal/formatter"
	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/urfave/cli/v3"
)

// Playlists lists the playlists owned by the authorized account.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if r.catalog == nil {
		if r.config.Playlist.Source == "public" {
			return fmt.Errorf("%w: listing playlists requires playlist.source = \"api\"", shared.ErrInvalidArgument)
		}
		if err := r.playlistServices(ctx); err != nil {
			return err
		}
		if err := r.authenticate(ctx); err != nil {
			return err
		}
	}
	if r.catalog == nil {
		return fmt.Errorf("%w: playlist catalog not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Debug("listing playlists")

	playlists, err := r.catalog.ListPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, listingFailure(err))
	}

	if r.useJSON {
		return r.writeJSON(playlists, true)
	}

	r.writePlain("Found %d playlists (Watch Later is always available as WL):\n\n", len(playlists))
	_, err = r.output.Write(formatter.PlaylistsToText(playlists))
	return err
}
