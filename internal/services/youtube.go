// YouTube Data API v3 implementation of [PlaylistLister], [PlaylistCatalog] and [PlaylistCleaner].
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/shared"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	// WatchLaterID is the selector and legacy playlist ID for Watch Later.
	WatchLaterID = "WL"

	maxPageSize = 50
)

var itemParts = []string{"snippet", "contentDetails"}

// IsWatchLater reports whether selector names the Watch Later playlist.
func IsWatchLater(selector string) bool {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "wl", "watchlater", "watch-later", "watch_later", "watch later":
		return true
	}
	return false
}

// ParsePlaylistSelector accepts a playlist ID or a URL carrying a list parameter.
func ParsePlaylistSelector(selector string) string {
	selector = strings.TrimSpace(selector)
	if IsWatchLater(selector) {
		return WatchLaterID
	}
	if !strings.Contains(selector, "://") {
		return selector
	}

	u, err := url.Parse(selector)
	if err != nil {
		return selector
	}
	if list := u.Query().Get("list"); list != "" {
		if IsWatchLater(list) {
			return WatchLaterID
		}
		return list
	}
	return selector
}

// YouTubeLister lists, resolves and edits playlists through the Data API.
type YouTubeLister struct {
	svc    *youtube.Service
	logger *log.Logger

	mu       sync.Mutex
	resolved map[string]string
}

// NewYouTubeLister builds a Data API client authorized by auth.
//
// Extra options are appended, so [option.WithHTTPClient] and [option.WithEndpoint] can redirect the client in tests.
func NewYouTubeLister(ctx context.Context, auth AuthProvider, logger *log.Logger, opts ...option.ClientOption) (*YouTubeLister, error) {
	var all []option.ClientOption
	if auth != nil {
		all = append(all, option.WithTokenSource(TokenSource(ctx, auth)))
	}
	all = append(all, opts...)

	svc, err := youtube.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}
	return &YouTubeLister{svc: svc, logger: logger, resolved: map[string]string{}}, nil
}

// ListEntries fetches one page of playlist items.
func (l *YouTubeLister) ListEntries(ctx context.Context, selector, pageToken string) (*Page, error) {
	playlistID, err := l.ResolvePlaylistID(ctx, selector)
	if err != nil {
		return nil, err
	}

	call := l.svc.PlaylistItems.List(itemParts).
		PlaylistId(playlistID).
		MaxResults(maxPageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, classifyListingError(selector, err)
	}

	page := &Page{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		entry, ok := entryFromItem(item)
		if !ok {
			l.logger.Debug("skipping playlist item without a video", "item", item.Id)
			continue
		}
		page.Entries = append(page.Entries, entry)
	}
	return page, nil
}

func entryFromItem(item *youtube.PlaylistItem) (models.VideoEntry, bool) {
	var entry models.VideoEntry
	if item.ContentDetails != nil {
		entry.ID = item.ContentDetails.VideoId
	}
	if item.Snippet != nil {
		if entry.ID == "" && item.Snippet.ResourceId != nil {
			entry.ID = item.Snippet.ResourceId.VideoId
		}
		entry.Title = item.Snippet.Title
		entry.Position = int(item.Snippet.Position)
	}
	return entry, entry.ID != ""
}

// ResolvePlaylistID turns a selector into a concrete playlist ID.
//
// Watch Later is looked up from the channel's related playlists, then tried as "WL",
// then matched by title among the user's playlists.
func (l *YouTubeLister) ResolvePlaylistID(ctx context.Context, selector string) (string, error) {
	id := ParsePlaylistSelector(selector)
	if id == "" {
		return "", &ListingError{Kind: ListingNotFound, Playlist: selector, Err: shared.ErrPlaylistNotFound}
	}
	if id != WatchLaterID {
		return id, nil
	}

	l.mu.Lock()
	cached, ok := l.resolved[id]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	resolved, err := l.resolveWatchLater(ctx)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	l.resolved[id] = resolved
	l.mu.Unlock()
	l.logger.Debug("resolved watch later playlist", "id", resolved)
	return resolved, nil
}

func (l *YouTubeLister) resolveWatchLater(ctx context.Context) (string, error) {
	resp, err := l.svc.Channels.List([]string{"contentDetails"}).Mine(true).Context(ctx).Do()
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return "", authErr
		}
		l.logger.Debug("channel lookup failed", "error", err)
	} else {
		for _, ch := range resp.Items {
			if ch.ContentDetails == nil || ch.ContentDetails.RelatedPlaylists == nil {
				continue
			}
			if wl := ch.ContentDetails.RelatedPlaylists.WatchLater; wl != "" {
				return wl, nil
			}
		}
	}

	_, err = l.svc.PlaylistItems.List([]string{"id"}).PlaylistId(WatchLaterID).MaxResults(1).Context(ctx).Do()
	if err == nil {
		return WatchLaterID, nil
	}
	l.logger.Debug("direct watch later lookup failed", "error", err)

	playlists, err := l.ListPlaylists(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range playlists {
		if IsWatchLater(p.Title) {
			return p.ID, nil
		}
	}

	return "", &ListingError{
		Kind:     ListingNotFound,
		Playlist: WatchLaterID,
		Err:      fmt.Errorf("%w: watch later is not reachable for this account", shared.ErrPlaylistNotFound),
	}
}

// ListPlaylists returns every playlist owned by the authenticated user.
func (l *YouTubeLister) ListPlaylists(ctx context.Context) ([]models.PlaylistInfo, error) {
	var playlists []models.PlaylistInfo
	pageToken := ""

	for {
		call := l.svc.Playlists.List([]string{"snippet", "contentDetails", "status"}).
			Mine(true).
			MaxResults(maxPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, classifyListingError("mine", err)
		}

		for _, p := range resp.Items {
			info := models.PlaylistInfo{ID: p.Id}
			if p.Snippet != nil {
				info.Title = p.Snippet.Title
				info.Description = p.Snippet.Description
			}
			if p.ContentDetails != nil {
				info.ItemCount = int(p.ContentDetails.ItemCount)
			}
			if p.Status != nil {
				info.Privacy = p.Status.PrivacyStatus
			}
			playlists = append(playlists, info)
		}

		if resp.NextPageToken == "" {
			return playlists, nil
		}
		pageToken = resp.NextPageToken
	}
}

// RemoveVideos deletes every playlist item whose video is in videoIDs and reports how many were removed.
//
// Individual delete failures do not stop the sweep; they are joined into the returned error.
func (l *YouTubeLister) RemoveVideos(ctx context.Context, selector string, videoIDs []string) (int, error) {
	if len(videoIDs) == 0 {
		return 0, nil
	}

	playlistID, err := l.ResolvePlaylistID(ctx, selector)
	if err != nil {
		return 0, err
	}

	wanted := make(map[string]bool, len(videoIDs))
	for _, id := range videoIDs {
		wanted[id] = true
	}

	var itemIDs []string
	pageToken := ""
	for {
		call := l.svc.PlaylistItems.List(itemParts).
			PlaylistId(playlistID).
			MaxResults(maxPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return 0, classifyListingError(selector, err)
		}
		for _, item := range resp.Items {
			if entry, ok := entryFromItem(item); ok && wanted[entry.ID] {
				itemIDs = append(itemIDs, item.Id)
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	removed := 0
	var errs []error
	for _, itemID := range itemIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := l.svc.PlaylistItems.Delete(itemID).Context(ctx).Do(); err != nil {
			l.logger.Warn("failed to remove playlist item", "item", itemID, "error", err)
			errs = append(errs, fmt.Errorf("remove %s: %w", itemID, err))
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

func classifyListingError(playlist string, err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	kind := ListingUnknown
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case hasReason(gerr, "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded"):
			kind = ListingQuotaExceeded
		case gerr.Code == http.StatusNotFound || hasReason(gerr, "playlistNotFound"):
			kind = ListingNotFound
		case gerr.Code == http.StatusUnauthorized:
			return &AuthError{Err: fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, gerr)}
		case gerr.Code == http.StatusForbidden:
			kind = ListingForbidden
		}
	}
	return &ListingError{Kind: kind, Playlist: playlist, Err: err}
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}
