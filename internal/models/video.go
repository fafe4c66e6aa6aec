package models

import (
	"fmt"
	"time"
)

// VideoEntry is one playlist item. Position is the 0-based index in the playlist.
type VideoEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

func (e VideoEntry) String() string {
	return fmt.Sprintf("#%d %s (%s)", e.Position+1, e.Title, e.ID)
}

// WatchURL returns the canonical watch page for the entry.
func (e VideoEntry) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + e.ID
}

// Snapshot is the ordered list of entries captured for one playlist.
type Snapshot struct {
	PlaylistID string       `json:"playlist_id"`
	FetchedAt  time.Time    `json:"fetched_at"`
	Entries    []VideoEntry `json:"entries"`
}

// Len reports the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Age reports how long ago the snapshot was fetched.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// PlaylistInfo describes a playlist owned by the authenticated user.
type PlaylistInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ItemCount   int    `json:"item_count"`
	Privacy     string `json:"privacy,omitempty"`
}
