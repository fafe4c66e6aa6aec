package snapshot

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
	"github.com/desertthunder/ytpull/internal/shared"
	tu "github.com/desertthunder/ytpull/internal/testing"
)

func TestFetch(t *testing.T) {
	logger := log.New(io.Discard)
	ctx := context.Background()

	t.Run("Concatenates pages in order", func(t *testing.T) {
		lister := tu.NewMockLister(tu.Entries(7), 3)

		snap, err := Fetch(ctx, lister, "PL1", logger)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if lister.Calls() != 3 {
			t.Errorf("expected 3 page requests, got %d", lister.Calls())
		}
		if snap.Len() != 7 {
			t.Fatalf("expected 7 entries, got %d", snap.Len())
		}
		for i, e := range snap.Entries {
			if e.Position != i {
				t.Errorf("entry %d has position %d", i, e.Position)
			}
		}
		if snap.PlaylistID != "PL1" || snap.FetchedAt.IsZero() {
			t.Errorf("unexpected snapshot header %+v", snap)
		}
	})

	t.Run("Deterministic across fetches", func(t *testing.T) {
		lister := tu.NewMockLister(tu.Entries(5), 2)
		first, _ := Fetch(ctx, lister, "PL1", logger)
		second, _ := Fetch(ctx, lister, "PL1", logger)
		for i := range first.Entries {
			if first.Entries[i] != second.Entries[i] {
				t.Errorf("entry %d differs: %v vs %v", i, first.Entries[i], second.Entries[i])
			}
		}
	})

	t.Run("Positions are reassigned and duplicates dropped", func(t *testing.T) {
		entries := []models.VideoEntry{
			{ID: "a", Title: "A", Position: 9},
			{ID: "b", Title: "B", Position: 9},
			{ID: "a", Title: "A again", Position: 9},
			{ID: "c", Title: "C", Position: 9},
		}
		snap, err := Fetch(ctx, tu.NewMockLister(entries, 2), "PL1", logger)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if snap.Len() != 3 {
			t.Fatalf("expected 3 unique entries, got %d", snap.Len())
		}
		if snap.Entries[2].ID != "c" || snap.Entries[2].Position != 2 {
			t.Errorf("unexpected last entry %+v", snap.Entries[2])
		}
	})

	t.Run("Listing failure is fatal", func(t *testing.T) {
		lister := tu.NewMockLister(tu.Entries(6), 2)
		lister.Err = &services.ListingError{Kind: services.ListingQuotaExceeded, Playlist: "PL1", Err: errors.New("quota")}
		lister.FailAt = 2

		snap, err := Fetch(ctx, lister, "PL1", logger)
		if snap != nil {
			t.Error("expected no partial snapshot")
		}
		var le *services.ListingError
		if !errors.As(err, &le) || le.Kind != services.ListingQuotaExceeded {
			t.Errorf("expected quota listing error, got %v", err)
		}
	})

	t.Run("Unclassified failures become listing errors", func(t *testing.T) {
		lister := tu.NewMockLister(tu.Entries(1), 1)
		lister.Err = errors.New("boom")

		_, err := Fetch(ctx, lister, "PL1", logger)
		var le *services.ListingError
		if !errors.As(err, &le) || le.Kind != services.ListingUnknown {
			t.Errorf("expected unknown listing error, got %v", err)
		}
	})

	t.Run("Auth failure passes through", func(t *testing.T) {
		lister := tu.NewMockLister(tu.Entries(1), 1)
		lister.Err = &services.AuthError{Err: shared.ErrNotAuthenticated}

		_, err := Fetch(ctx, lister, "PL1", logger)
		var authErr *services.AuthError
		if !errors.As(err, &authErr) {
			t.Errorf("expected AuthError, got %v", err)
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := Fetch(cctx, tu.NewMockLister(tu.Entries(2), 1), "PL1", logger); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestSaveAndLoadCached(t *testing.T) {
	dir := t.TempDir()

	t.Run("Round trip", func(t *testing.T) {
		path := filepath.Join(dir, "cache", "snapshot.json")
		snap := &models.Snapshot{
			PlaylistID: "PL1",
			FetchedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Entries:    tu.Entries(3),
		}
		if err := Save(path, snap); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		loaded, err := LoadCached(path)
		if err != nil {
			t.Fatalf("LoadCached() error = %v", err)
		}
		if loaded.PlaylistID != "PL1" || !loaded.FetchedAt.Equal(snap.FetchedAt) || loaded.Len() != 3 {
			t.Errorf("unexpected snapshot %+v", loaded)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadCached(filepath.Join(dir, "absent.json"))
		if !errors.Is(err, shared.ErrNoSnapshot) {
			t.Errorf("expected ErrNoSnapshot, got %v", err)
		}
	})

	t.Run("Corrupt file", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.json")
		os.WriteFile(path, []byte("{not json"), 0o644)

		_, err := LoadCached(path)
		if !errors.Is(err, shared.ErrCorruptSnapshot) {
			t.Errorf("expected ErrCorruptSnapshot, got %v", err)
		}
	})

	t.Run("Entries are ordered by position", func(t *testing.T) {
		path := filepath.Join(dir, "unordered.json")
		os.WriteFile(path, []byte(`{"playlist_id":"PL1","fetched_at":"2026-01-01T00:00:00Z","entries":[{"id":"b","title":"B","position":1},{"id":"a","title":"A","position":0}]}`), 0o644)

		loaded, err := LoadCached(path)
		if err != nil {
			t.Fatalf("LoadCached() error = %v", err)
		}
		if loaded.Entries[0].ID != "a" {
			t.Errorf("expected position order, got %+v", loaded.Entries)
		}
	})
}

func TestResolve(t *testing.T) {
	logger := log.New(io.Discard)
	ctx := context.Background()

	quota := &services.ListingError{Kind: services.ListingQuotaExceeded, Playlist: "PL1", Err: errors.New("quota")}

	t.Run("Fresh fetch is saved", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		snap, source, err := Resolve(ctx, tu.NewMockLister(tu.Entries(2), 5), "PL1", path, true, logger)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if source != SourceRemote || snap.Len() != 2 {
			t.Errorf("unexpected result %s %d", source, snap.Len())
		}
		tu.AssertFileExists(t, path)
	})

	t.Run("Falls back to cache on listing error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		Save(path, &models.Snapshot{PlaylistID: "PL1", FetchedAt: time.Now(), Entries: tu.Entries(4)})

		lister := tu.NewMockLister(nil, 1)
		lister.Err = quota

		snap, source, err := Resolve(ctx, lister, "PL1", path, true, logger)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if source != SourceCache || snap.Len() != 4 {
			t.Errorf("expected cached snapshot, got %s with %d entries", source, snap.Len())
		}
	})

	t.Run("No fallback when disabled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		Save(path, &models.Snapshot{PlaylistID: "PL1", Entries: tu.Entries(1)})

		lister := tu.NewMockLister(nil, 1)
		lister.Err = quota

		if _, _, err := Resolve(ctx, lister, "PL1", path, false, logger); !errors.As(err, new(*services.ListingError)) {
			t.Errorf("expected listing error, got %v", err)
		}
	})

	t.Run("Auth failure never falls back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		Save(path, &models.Snapshot{PlaylistID: "PL1", Entries: tu.Entries(1)})

		lister := tu.NewMockLister(nil, 1)
		lister.Err = &services.AuthError{Err: shared.ErrNotAuthenticated}

		if _, _, err := Resolve(ctx, lister, "PL1", path, true, logger); !errors.As(err, new(*services.AuthError)) {
			t.Errorf("expected AuthError, got %v", err)
		}
	})

	t.Run("Cache for another playlist is ignored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		Save(path, &models.Snapshot{PlaylistID: "OTHER", Entries: tu.Entries(1)})

		lister := tu.NewMockLister(nil, 1)
		lister.Err = quota

		if _, _, err := Resolve(ctx, lister, "PL1", path, true, logger); err == nil {
			t.Error("expected the listing error to surface")
		}
	})
}
