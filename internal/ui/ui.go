package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
	"github.com/desertthunder/ytpull/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	RunView
	ResultView
)

const recentLimit = 8

// RunFunc fetches the playlist and downloads it, reporting progress on the channel.
//
// The channel is owned by the model and closed once RunFunc returns.
type RunFunc func(ctx context.Context, playlistID string, progress chan<- tasks.ProgressUpdate) (*models.RunSummary, error)

// Settings are shown on the confirm view.
type Settings struct {
	Playlist    string
	Resolution  models.ResolutionConstraint
	Concurrency int
	Attempts    int
	OutputDir   string
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	catalog      services.PlaylistCatalog
	run          RunFunc
	settings     Settings
	width        int
	height       int
	playlistList list.Model
	selected     *models.PlaylistInfo
	progressChan chan tasks.ProgressUpdate
	done         chan runComplete
	bar          progress.Model
	spin         spinner.Model
	step         int
	total        int
	current      string
	recent       []string
	summary      *models.RunSummary
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. A nil catalog lists only the configured playlist.
func NewModel(ctx context.Context, catalog services.PlaylistCatalog, run RunFunc, settings Settings) *Model {
	playlists := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	playlists.Title = "Playlists"

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		catalog:      catalog,
		run:          run,
		settings:     settings,
		playlistList: playlists,
		bar:          progress.New(progress.WithDefaultGradient()),
		spin:         spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Summary returns the last completed run, if any.
func (m *Model) Summary() *models.RunSummary {
	return m.summary
}

// Init initializes the TUI by fetching playlists.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = max(msg.Width-8, 20)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			return m.handleRunKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == PlaylistListView {
		m.playlistList, cmd = m.playlistList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		m.setPlaylists(data.playlists)
		return m, nil

	case MsgProgressUpdate:
		m.applyProgress(msg.data.(tasks.ProgressUpdate))
		return m, waitForProgress(m.progressChan, m.done)

	case MsgRunComplete:
		data := msg.data.(runComplete)
		m.summary = data.summary
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) setPlaylists(playlists []models.PlaylistInfo) {
	items := []list.Item{playlistItem{playlist: watchLater()}}
	for _, pl := range playlists {
		if services.IsWatchLater(pl.ID) {
			continue
		}
		items = append(items, playlistItem{playlist: pl})
	}

	m.playlistList.SetItems(items)
	m.playlistList.Select(0)
}

func (m *Model) applyProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Complete:
		m.step, m.total = update.Step, update.Total
		kind := ""
		if o, ok := update.Data.(models.Outcome); ok {
			kind = o.Kind.String()
		}
		m.recent = append(m.recent, styles.outcome(update.Message, kind))
		if len(m.recent) > recentLimit {
			m.recent = m.recent[len(m.recent)-recentLimit:]
		}
	default:
		m.current = update.Message
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.selected = &pl.playlist
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = RunView
		return m, m.startRun()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PlaylistListView
		m.selected = nil
	}
	return m, nil
}

// handleRunKeys cancels the run on the first press. Attempts in flight still finish,
// then the result view is shown.
func (m *Model) handleRunKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.cancel != nil {
		m.cancel()
		m.cancel = nil
		m.current = "Stopping after in-flight downloads finish..."
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selected = nil
		m.err = nil
		m.recent = nil
		m.step, m.total = 0, 0
		m.current = ""
	}
	return m, nil
}

func (m *Model) fetchPlaylists() tea.Cmd {
	catalog, ctx, fallback := m.catalog, m.ctx, m.settings.Playlist
	return func() tea.Msg {
		if catalog == nil {
			if fallback == "" || services.IsWatchLater(fallback) {
				return playlistsFetchedMsg(nil, nil)
			}
			return playlistsFetchedMsg([]models.PlaylistInfo{{ID: fallback, Title: fallback}}, nil)
		}
		playlists, err := catalog.ListPlaylists(ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) startRun() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan runComplete, 1)
	m.summary = nil
	m.err = nil

	progressChan, done, run, id := m.progressChan, m.done, m.run, m.selected.ID
	go func() {
		summary, err := run(ctx, id, progressChan)
		done <- runComplete{summary, err}
		close(progressChan)
	}()

	return tea.Batch(m.spin.Tick, waitForProgress(progressChan, done))
}

// waitForProgress relays one update, or the run result once the channel is closed.
func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan runComplete) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			result := <-done
			return runCompleteMsg(result.summary, result.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) helpView() string {
	return m.help.ShortHelpView(m.keys.forView(m.view))
}

func (m *Model) renderPlaylistList() string {
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), m.helpView())
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Download '%s'?", m.selected.Title))
	info := fmt.Sprintf(
		"\nPlaylist: %s\nResolution: %s\nWorkers: %d, attempts: %d\nOutput: %s\n",
		m.selected.ID,
		m.settings.Resolution,
		m.settings.Concurrency,
		m.settings.Attempts,
		m.settings.OutputDir,
	)

	return fmt.Sprintf("%s\n%s\n%s", title, info, m.helpView())
}

func (m *Model) renderRun() string {
	title := styles.title.Render(fmt.Sprintf("Downloading %s", m.selected.Title))

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.step) / float64(m.total)
	}

	var b strings.Builder
	b.WriteString(title + "\n\n")
	b.WriteString(m.bar.ViewAs(pct) + "\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n\n", m.spin.View(), m.current))
	for _, line := range m.recent {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("\n" + m.helpView())
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.helpView()

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.summary == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	s := m.summary
	title := styles.ok.Render("✓ Run complete")
	if s.HasFailures() {
		title = styles.warn.Render("Run complete with failures")
	}
	if s.Cancelled {
		title = styles.warn.Render(fmt.Sprintf("Run cancelled, %d not finished", s.Remaining))
	}

	info := fmt.Sprintf(
		"\nDownloaded: %d\nSkipped: %d\nUnavailable: %d\nFailed: %d\nElapsed: %s",
		s.Succeeded, s.Skipped, s.Unavailable, s.Failed, s.Duration().Round(time.Second),
	)

	var failed string
	if s.Failed > 0 {
		failed = "\n\n" + styles.err.Render(fmt.Sprintf("%d failed:", s.Failed))
		for _, o := range s.ByKind(models.OutcomeFailed) {
			failed += fmt.Sprintf("\n  • %s (%s)", o.Entry.Title, o.Detail())
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
