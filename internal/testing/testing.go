// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
	"golang.org/x/oauth2"
)

// MockAuth is a test double for [services.AuthProvider]
type MockAuth struct {
	Err   error
	calls int
}

func (m *MockAuth) Token(ctx context.Context) (*oauth2.Token, error) {
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return &oauth2.Token{AccessToken: "mock-token", Expiry: time.Now().Add(time.Hour)}, nil
}

func (m *MockAuth) Calls() int { return m.calls }

// MockLister serves a fixed sequence of pages for any selector.
//
// Page i links to page i+1 through the token "page-<i+1>". When FailAt is positive the
// FailAt-th call returns Err instead.
type MockLister struct {
	Pages  [][]models.VideoEntry
	Err    error
	FailAt int

	mu    sync.Mutex
	calls int
}

// NewMockLister builds a lister that pages through entries in chunks of size.
func NewMockLister(entries []models.VideoEntry, size int) *MockLister {
	m := &MockLister{}
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		m.Pages = append(m.Pages, entries[start:end])
	}
	if len(m.Pages) == 0 {
		m.Pages = [][]models.VideoEntry{{}}
	}
	return m
}

func (m *MockLister) ListEntries(ctx context.Context, selector, pageToken string) (*services.Page, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if m.Err != nil && (m.FailAt <= 0 || call == m.FailAt) {
		return nil, m.Err
	}

	index := 0
	if pageToken != "" {
		if _, err := fmt.Sscanf(pageToken, "page-%d", &index); err != nil {
			return nil, fmt.Errorf("bad page token %q", pageToken)
		}
	}
	if index >= len(m.Pages) {
		return &services.Page{}, nil
	}

	page := &services.Page{Entries: append([]models.VideoEntry(nil), m.Pages[index]...)}
	if index+1 < len(m.Pages) {
		page.NextPageToken = fmt.Sprintf("page-%d", index+1)
	}
	return page, nil
}

func (m *MockLister) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockCatalog is a test double for [services.PlaylistCatalog]
type MockCatalog struct {
	Playlists []models.PlaylistInfo
	Err       error
}

func (m *MockCatalog) ListPlaylists(ctx context.Context) ([]models.PlaylistInfo, error) {
	return m.Playlists, m.Err
}

// MockCleaner records removals requested through [services.PlaylistCleaner]
type MockCleaner struct {
	Err error

	mu       sync.Mutex
	Playlist string
	Removed  []string
}

func (m *MockCleaner) RemoveVideos(ctx context.Context, selector string, videoIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	m.Playlist = selector
	m.Removed = append(m.Removed, videoIDs...)
	return len(videoIDs), nil
}

// MockFetcher is a scripted [services.MediaFetcher].
//
// Each video answers its scripted results in call order, repeating the last one; unscripted
// videos answer Default. A nil result writes Content to dest. The fetcher records overlapping
// calls for the same video and the peak number of concurrent calls.
type MockFetcher struct {
	Default error
	Content []byte
	Delay   time.Duration

	// OnFetch, when set, runs at the start of every call.
	OnFetch func(videoID string)

	mu        sync.Mutex
	scripts   map[string][]error
	calls     map[string]int
	active    map[string]int
	current   int
	maxActive int
	overlaps  []string
	order     []string
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Content: []byte("video-bytes"),
		scripts: make(map[string][]error),
		calls:   make(map[string]int),
		active:  make(map[string]int),
	}
}

// Script sets the results for videoID, one per call.
func (m *MockFetcher) Script(videoID string, results ...error) *MockFetcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[videoID] = results
	return m
}

func (m *MockFetcher) Fetch(ctx context.Context, videoID string, c models.ResolutionConstraint, dest string) (*services.FetchResult, error) {
	m.mu.Lock()
	m.calls[videoID]++
	call := m.calls[videoID]
	m.active[videoID]++
	if m.active[videoID] > 1 {
		m.overlaps = append(m.overlaps, videoID)
	}
	m.current++
	m.maxActive = max(m.maxActive, m.current)
	m.order = append(m.order, videoID)
	result := m.result(videoID, call)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active[videoID]--
		m.current--
		m.mu.Unlock()
	}()

	if m.OnFetch != nil {
		m.OnFetch(videoID)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if result != nil {
		return nil, result
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, m.Content, 0o644); err != nil {
		return nil, err
	}
	return &services.FetchResult{Path: dest, Size: int64(len(m.Content)), Quality: c.Preferred, Format: "video/mp4"}, nil
}

func (m *MockFetcher) result(videoID string, call int) error {
	script, ok := m.scripts[videoID]
	if !ok || len(script) == 0 {
		return m.Default
	}
	if call > len(script) {
		return script[len(script)-1]
	}
	return script[call-1]
}

// Calls reports how many times videoID was fetched.
func (m *MockFetcher) Calls(videoID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[videoID]
}

// TotalCalls reports the number of fetches across all videos.
func (m *MockFetcher) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Order returns video IDs in the order their fetches started.
func (m *MockFetcher) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Overlaps lists videos that were fetched by two callers at once.
func (m *MockFetcher) Overlaps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.overlaps...)
}

// MaxActive is the peak number of concurrent fetches.
func (m *MockFetcher) MaxActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// Entries builds n entries with IDs "vid-000".. and titles "Video 0"...
func Entries(n int) []models.VideoEntry {
	entries := make([]models.VideoEntry, n)
	for i := range entries {
		entries[i] = models.VideoEntry{ID: fmt.Sprintf("vid-%03d", i), Title: fmt.Sprintf("Video %d", i), Position: i}
	}
	return entries
}

// Transient, Permanent, NoStream and AuthRequired build fetch errors of each kind.
func Transient(videoID string) error {
	return services.NewFetchError(services.FetchTransient, videoID, errors.New("connection reset"))
}

func Permanent(videoID string) error {
	return services.NewFetchError(services.FetchPermanentUnavailable, videoID, errors.New("Private video"))
}

func NoStream(videoID string) error {
	return services.NewFetchError(services.FetchNoAcceptableStream, videoID, errors.New("no stream in range"))
}

func AuthRequired(videoID string) error {
	return services.NewFetchError(services.FetchAuthRequired, videoID, errors.New("Sign in to confirm you're not a bot"))
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
