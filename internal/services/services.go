// package services defines the collaborators a download run depends on and
// implements them against YouTube.
package services

import (
	"context"

	"github.com/desertthunder/ytpull/internal/models"
	"golang.org/x/oauth2"
)

// AuthProvider hands out valid access tokens. Failures are reported as [*AuthError].
type AuthProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Page is one page of playlist entries. Entry positions are assigned by the caller.
type Page struct {
	Entries       []models.VideoEntry
	NextPageToken string
}

// PlaylistLister enumerates a playlist one page at a time.
//
// An empty pageToken requests the first page. Failures are reported as [*ListingError] or [*AuthError].
type PlaylistLister interface {
	ListEntries(ctx context.Context, selector, pageToken string) (*Page, error)
}

// PlaylistCatalog lists the playlists owned by the authenticated user.
type PlaylistCatalog interface {
	ListPlaylists(ctx context.Context) ([]models.PlaylistInfo, error)
}

// PlaylistCleaner removes videos from a remote playlist.
type PlaylistCleaner interface {
	RemoveVideos(ctx context.Context, selector string, videoIDs []string) (int, error)
}

// FetchResult describes a completed download.
type FetchResult struct {
	Path    string
	Size    int64
	Quality models.Quality
	Format  string
}

// MediaFetcher downloads one video to dest.
//
// Implementations only create dest once the file is complete. Failures are reported as [*FetchError].
type MediaFetcher interface {
	Fetch(ctx context.Context, videoID string, constraint models.ResolutionConstraint, dest string) (*FetchResult, error)
}
