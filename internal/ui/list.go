package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ytpull/internal/models"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [models.PlaylistInfo] to implement [list.Item].
type playlistItem struct {
	playlist models.PlaylistInfo
}

func (i playlistItem) FilterValue() string { return i.playlist.Title }
func (i playlistItem) Title() string       { return i.playlist.Title }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d videos", i.playlist.ItemCount)
	if i.playlist.Privacy != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Privacy)
	}
	return desc
}

// watchLater is listed first since the Data API does not return it with the user's playlists.
func watchLater() models.PlaylistInfo {
	return models.PlaylistInfo{ID: "WL", Title: "Watch Later", Privacy: "private"}
}
