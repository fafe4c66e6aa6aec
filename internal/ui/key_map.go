package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding; [keyMap.forView] picks the ones shown in each view's help line.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	cancel  key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose playlist")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "start download")),
		no:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "pick another")),
		cancel:  key.NewBinding(key.WithKeys("ctrl+c", "x"), key.WithHelp("x", "stop after in-flight")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "playlists")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forView returns the bindings that act in v. During a run ctrl+c cancels instead of quitting.
func (k keyMap) forView(v ViewState) []key.Binding {
	switch v {
	case PlaylistListView:
		return []key.Binding{k.up, k.down, k.enter, k.quit}
	case ConfirmView:
		return []key.Binding{k.yes, k.no, k.back}
	case RunView:
		return []key.Binding{k.cancel}
	default:
		return []key.Binding{k.restart, k.quit}
	}
}
