// package snapshot captures the ordered entries of a playlist for one run.
//
// A snapshot is fetched page by page from a [services.PlaylistLister], written to disk before
// any download starts and never changed afterwards. Download-only runs read it back with
// [LoadCached] and make no listing calls.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
	"github.com/desertthunder/ytpull/internal/shared"
)

// Fetch lists every page of the playlist and concatenates them in platform order.
//
// Positions are reassigned from the concatenated index so file numbering is stable.
// Duplicate identifiers keep their first occurrence. Any listing failure aborts the fetch;
// a partial snapshot is never returned.
func Fetch(ctx context.Context, lister services.PlaylistLister, selector string, logger *log.Logger) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		PlaylistID: services.ParsePlaylistSelector(selector),
		Entries:    []models.VideoEntry{},
	}

	seen := make(map[string]bool)
	tokens := make(map[string]bool)
	pageToken := ""
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := lister.ListEntries(ctx, selector, pageToken)
		if err != nil {
			return nil, asListingError(selector, err)
		}
		pages++

		for _, e := range page.Entries {
			if seen[e.ID] {
				logger.Warn("duplicate playlist entry dropped", "video", e.ID, "title", e.Title)
				continue
			}
			seen[e.ID] = true
			snap.Entries = append(snap.Entries, models.VideoEntry{
				ID:       e.ID,
				Title:    e.Title,
				Position: len(snap.Entries),
			})
		}

		next := page.NextPageToken
		if next == "" {
			break
		}
		if tokens[next] {
			return nil, &services.ListingError{
				Kind:     services.ListingUnknown,
				Playlist: selector,
				Err:      fmt.Errorf("page token %q repeated", next),
			}
		}
		tokens[next] = true
		pageToken = next
	}

	snap.FetchedAt = time.Now().UTC()
	logger.Info("playlist fetched", "playlist", snap.PlaylistID, "entries", len(snap.Entries), "pages", pages)
	return snap, nil
}

func asListingError(selector string, err error) error {
	var authErr *services.AuthError
	var listErr *services.ListingError
	switch {
	case errors.As(err, &authErr), errors.As(err, &listErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &services.ListingError{Kind: services.ListingUnknown, Playlist: selector, Err: err}
}

// LoadCached reads a snapshot written by [Save].
//
// A missing file yields [shared.ErrNoSnapshot]; an undecodable one [shared.ErrCorruptSnapshot].
func LoadCached(path string) (*models.Snapshot, error) {
	path = shared.ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrNoSnapshot, path)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrCorruptSnapshot, path, err)
	}
	for _, e := range snap.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: %s: entry at position %d has no id", shared.ErrCorruptSnapshot, path, e.Position)
		}
	}
	sort.SliceStable(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].Position < snap.Entries[j].Position
	})
	if snap.Entries == nil {
		snap.Entries = []models.VideoEntry{}
	}
	return &snap, nil
}

// Save writes snap to path, replacing any previous snapshot atomically.
func Save(path string, snap *models.Snapshot) error {
	path = shared.ExpandPath(path)
	data, err := shared.MarshalJSON(snap, true)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	if err := shared.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Source says where a resolved snapshot came from.
type Source int

const (
	SourceRemote Source = iota
	SourceCache
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "remote"
}

// Resolve fetches and saves a fresh snapshot.
//
// With fallback set, a listing failure that is not an authentication failure is answered from
// the cache at path, with a warning. Authentication failures are always returned.
func Resolve(ctx context.Context, lister services.PlaylistLister, selector, path string, fallback bool, logger *log.Logger) (*models.Snapshot, Source, error) {
	snap, err := Fetch(ctx, lister, selector, logger)
	if err == nil {
		if err := Save(path, snap); err != nil {
			return nil, SourceRemote, err
		}
		return snap, SourceRemote, nil
	}

	var authErr *services.AuthError
	var listErr *services.ListingError
	if !fallback || errors.As(err, &authErr) || !errors.As(err, &listErr) {
		return nil, SourceRemote, err
	}

	cached, cacheErr := LoadCached(path)
	if cacheErr != nil {
		logger.Debug("no usable cached snapshot", "error", cacheErr)
		return nil, SourceRemote, err
	}

	want := services.ParsePlaylistSelector(selector)
	if cached.PlaylistID != "" && cached.PlaylistID != want {
		logger.Debug("cached snapshot is for another playlist", "cached", cached.PlaylistID, "want", want)
		return nil, SourceRemote, err
	}

	logger.Warn("playlist fetch failed, using cached snapshot",
		"error", err, "fetched_at", cached.FetchedAt.Format(time.RFC3339), "entries", len(cached.Entries))
	return cached, SourceCache, nil
}
