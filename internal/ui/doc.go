// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for downloading a playlist:
//  1. [PlaylistListView] : Browse and select playlists, Watch Later included
//  2. [ConfirmView] : Confirm the download with the configured resolution and concurrency
//  3. [RunView] : Monitor live progress with a progress bar and the most recent outcomes
//  4. [ResultView] : Display outcome counts and the entries that failed
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the orchestrator, which never blocks on a slow UI.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
