package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"google.golang.org/api/option"
)

type fakeDataAPI struct {
	mu       sync.Mutex
	pages    map[string]string
	channels string
	mine     string
	failWL   bool
	deleted  []string
	requests []string
}

func (f *fakeDataAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/playlistItems"):
		f.deleted = append(f.deleted, r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(r.URL.Path, "/playlistItems"):
		list := r.URL.Query().Get("playlistId")
		if list == "WL" && f.failWL {
			writeAPIError(w, http.StatusForbidden, "watchLaterNotAccessible")
			return
		}
		if list == "QUOTA" {
			writeAPIError(w, http.StatusForbidden, "quotaExceeded")
			return
		}
		body, ok := f.pages[list+"|"+r.URL.Query().Get("pageToken")]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "playlistNotFound")
			return
		}
		io.WriteString(w, body)
	case strings.HasSuffix(r.URL.Path, "/channels"):
		io.WriteString(w, f.channels)
	case strings.HasSuffix(r.URL.Path, "/playlists"):
		io.WriteString(w, f.mine)
	default:
		http.NotFound(w, r)
	}
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":"%s","errors":[{"reason":"%s","domain":"youtube","message":"%s"}]}}`, code, reason, reason, reason)
}

func item(itemID, videoID, title string, position int) string {
	return fmt.Sprintf(`{"id":%q,"snippet":{"title":%q,"position":%d,"resourceId":{"kind":"youtube#video","videoId":%q}},"contentDetails":{"videoId":%q}}`,
		itemID, title, position, videoID, videoID)
}

func newTestLister(t *testing.T, api *fakeDataAPI) *YouTubeLister {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	lister, err := NewYouTubeLister(context.Background(), nil, log.New(io.Discard),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewYouTubeLister() error = %v", err)
	}
	return lister
}

func newFakeDataAPI() *fakeDataAPI {
	return &fakeDataAPI{
		pages: map[string]string{
			"PL1|":   `{"items":[` + item("i1", "v1", "First", 0) + `,` + item("i2", "v2", "Second", 1) + `],"nextPageToken":"p2"}`,
			"PL1|p2": `{"items":[` + item("i3", "v3", "Third", 2) + `]}`,
			"WLX|":   `{"items":[` + item("w1", "wv1", "Later", 0) + `]}`,
			"WL|":    `{"items":[` + item("w2", "wv2", "Legacy", 0) + `]}`,
		},
		channels: `{"items":[{"id":"UC1","contentDetails":{"relatedPlaylists":{"watchLater":"WLX"}}}]}`,
		mine:     `{"items":[{"id":"PL1","snippet":{"title":"Music","description":"d"},"contentDetails":{"itemCount":3},"status":{"privacyStatus":"private"}}]}`,
	}
}

func TestYouTubeLister(t *testing.T) {
	api := newFakeDataAPI()

	t.Run("ListEntries pages through results", func(t *testing.T) {
		lister := newTestLister(t, api)
		ctx := context.Background()

		page, err := lister.ListEntries(ctx, "PL1", "")
		if err != nil {
			t.Fatalf("ListEntries() error = %v", err)
		}
		if len(page.Entries) != 2 || page.NextPageToken != "p2" {
			t.Fatalf("expected 2 entries and a next token, got %+v", page)
		}
		if page.Entries[0].ID != "v1" || page.Entries[1].Title != "Second" {
			t.Errorf("unexpected entries: %+v", page.Entries)
		}

		page, err = lister.ListEntries(ctx, "PL1", "p2")
		if err != nil {
			t.Fatalf("ListEntries() page 2 error = %v", err)
		}
		if len(page.Entries) != 1 || page.NextPageToken != "" {
			t.Errorf("expected final page with 1 entry, got %+v", page)
		}
	})

	t.Run("Accepts playlist URLs", func(t *testing.T) {
		lister := newTestLister(t, api)
		page, err := lister.ListEntries(context.Background(), "https://www.youtube.com/playlist?list=PL1", "")
		if err != nil {
			t.Fatalf("ListEntries() error = %v", err)
		}
		if len(page.Entries) != 2 {
			t.Errorf("expected 2 entries, got %d", len(page.Entries))
		}
	})

	t.Run("Watch Later resolves through channel", func(t *testing.T) {
		lister := newTestLister(t, api)
		id, err := lister.ResolvePlaylistID(context.Background(), "WL")
		if err != nil {
			t.Fatalf("ResolvePlaylistID() error = %v", err)
		}
		if id != "WLX" {
			t.Errorf("expected WLX, got %s", id)
		}
	})

	t.Run("Watch Later falls back to legacy ID", func(t *testing.T) {
		fallback := newFakeDataAPI()
		fallback.channels = `{"items":[]}`
		lister := newTestLister(t, fallback)

		page, err := lister.ListEntries(context.Background(), "watch-later", "")
		if err != nil {
			t.Fatalf("ListEntries() error = %v", err)
		}
		if len(page.Entries) != 1 || page.Entries[0].ID != "wv2" {
			t.Errorf("expected legacy watch later entry, got %+v", page.Entries)
		}
	})

	t.Run("Watch Later unreachable", func(t *testing.T) {
		unreachable := &fakeDataAPI{pages: map[string]string{}, channels: `{"items":[]}`, mine: `{"items":[]}`, failWL: true}
		lister := newTestLister(t, unreachable)

		_, err := lister.ResolvePlaylistID(context.Background(), "WL")
		var le *ListingError
		if !errors.As(err, &le) || le.Kind != ListingNotFound {
			t.Fatalf("expected not-found listing error, got %v", err)
		}
	})

	t.Run("Quota exceeded", func(t *testing.T) {
		lister := newTestLister(t, api)
		_, err := lister.ListEntries(context.Background(), "QUOTA", "")
		var le *ListingError
		if !errors.As(err, &le) {
			t.Fatalf("expected ListingError, got %v", err)
		}
		if le.Kind != ListingQuotaExceeded {
			t.Errorf("expected quota_exceeded, got %s", le.Kind)
		}
	})

	t.Run("Not found", func(t *testing.T) {
		lister := newTestLister(t, api)
		_, err := lister.ListEntries(context.Background(), "PLMISSING", "")
		var le *ListingError
		if !errors.As(err, &le) || le.Kind != ListingNotFound {
			t.Fatalf("expected not-found listing error, got %v", err)
		}
	})

	t.Run("ListPlaylists", func(t *testing.T) {
		lister := newTestLister(t, api)
		playlists, err := lister.ListPlaylists(context.Background())
		if err != nil {
			t.Fatalf("ListPlaylists() error = %v", err)
		}
		if len(playlists) != 1 {
			t.Fatalf("expected 1 playlist, got %d", len(playlists))
		}
		p := playlists[0]
		if p.ID != "PL1" || p.Title != "Music" || p.ItemCount != 3 || p.Privacy != "private" {
			t.Errorf("unexpected playlist: %+v", p)
		}
	})

	t.Run("RemoveVideos", func(t *testing.T) {
		api := newFakeDataAPI()
		lister := newTestLister(t, api)

		removed, err := lister.RemoveVideos(context.Background(), "PL1", []string{"v1", "v3", "absent"})
		if err != nil {
			t.Fatalf("RemoveVideos() error = %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 removed, got %d", removed)
		}
		if strings.Join(api.deleted, ",") != "i1,i3" {
			t.Errorf("expected items i1,i3 deleted, got %v", api.deleted)
		}
	})

	t.Run("RemoveVideos with nothing to remove", func(t *testing.T) {
		lister := newTestLister(t, api)
		removed, err := lister.RemoveVideos(context.Background(), "PL1", nil)
		if err != nil || removed != 0 {
			t.Errorf("expected no-op, got %d, %v", removed, err)
		}
	})
}

func TestParsePlaylistSelector(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PLabc", "PLabc"},
		{" WL ", "WL"},
		{"watch-later", "WL"},
		{"https://www.youtube.com/playlist?list=PLxyz", "PLxyz"},
		{"https://www.youtube.com/watch?v=abc&list=WL", "WL"},
		{"https://www.youtube.com/watch?v=abc", "https://www.youtube.com/watch?v=abc"},
	}

	for _, tt := range tests {
		if got := ParsePlaylistSelector(tt.in); got != tt.want {
			t.Errorf("ParsePlaylistSelector(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
