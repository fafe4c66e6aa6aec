package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/shared"
	ytget "github.com/ytget/ytdlp/v2"
)

// PublicLister lists public playlists by scraping the watch page, without credentials.
//
// The whole playlist is returned as a single page.
type PublicLister struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Logger
}

// NewPublicLister creates a lister. A nil client uses the library default.
func NewPublicLister(httpClient *http.Client, timeout time.Duration, logger *log.Logger) *PublicLister {
	return &PublicLister{httpClient: httpClient, timeout: timeout, logger: logger}
}

// ListEntries implements [PlaylistLister]. Page tokens are ignored.
func (p *PublicLister) ListEntries(ctx context.Context, selector, _ string) (*Page, error) {
	playlistID := ParsePlaylistSelector(selector)
	if playlistID == WatchLaterID {
		return nil, &ListingError{
			Kind:     ListingForbidden,
			Playlist: selector,
			Err:      fmt.Errorf("%w: watch later is private and needs the api source", shared.ErrNotAuthenticated),
		}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	d := ytget.New()
	if p.httpClient != nil {
		d = d.WithHTTPClient(p.httpClient)
	}

	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, &ListingError{Kind: classifyPublicListing(err), Playlist: selector, Err: err}
	}
	p.logger.Debug("listed public playlist", "playlist", playlistID, "items", len(items))

	page := &Page{Entries: make([]models.VideoEntry, 0, len(items))}
	for i, it := range items {
		if it.VideoID == "" {
			continue
		}
		page.Entries = append(page.Entries, models.VideoEntry{ID: it.VideoID, Title: it.Title, Position: i})
	}
	return page, nil
}

func classifyPublicListing(err error) ListingKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ListingUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist"):
		return ListingNotFound
	case strings.Contains(msg, "403") || strings.Contains(msg, "private"):
		return ListingForbidden
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		return ListingQuotaExceeded
	}
	return ListingUnknown
}
