package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	CopyView
	ResultView
	HistoryView
	RecoveryView
)

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	engine     *tasks.PlaylistEngine
	clearDelay time.Duration
	now        func() time.Time
	width      int
	height     int

	playlistList list.Model
	playlists    []models.Playlist
	trackList    list.Model
	source       *models.Playlist
	tracks       []models.Track
	selection    tasks.Selection

	nameInput textinput.Model
	public    bool

	progressChan <-chan tasks.ProgressUpdate
	doneChan     <-chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.CopyResult

	historyList list.Model
	checkpoint  *models.Checkpoint

	notice  string
	err     error
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
//
// clearDelay is how long a completed copy's checkpoint stays visible before it is cleared.
func NewModel(ctx context.Context, engine *tasks.PlaylistEngine, clearDelay time.Duration) *Model {
	input := textinput.New()
	input.Placeholder = "Playlist name"
	input.CharLimit = 100

	s := spinner.New()
	s.Spinner = spinner.Dot

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		engine:       engine,
		clearDelay:   clearDelay,
		now:          time.Now,
		selection:    tasks.Selection{},
		nameInput:    input,
		spinner:      s,
		help:         help.New(),
		keys:         newKeyMap(),
		playlistList: newList("Spotify Playlists", nil),
		trackList:    newList("Tracks", nil),
		historyList:  newList("History", nil),
	}
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Init fetches playlists and checks for an interrupted copy.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.checkInterruption(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, l := range []*list.Model{&m.playlistList, &m.trackList, &m.historyList} {
			l.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case CopyView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		case RecoveryView:
			return m.handleRecoveryKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.playlists = msg.data.([]models.Playlist)
		items := make([]list.Item, len(m.playlists))
		for i, pl := range m.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		return m, m.playlistList.SetItems(items)

	case MsgTracksFetched:
		if msg.err != nil {
			m.err = msg.err
			m.view = PlaylistListView
			return m, nil
		}
		data := msg.data.(struct {
			playlist models.Playlist
			tracks   []models.Track
		})
		m.err = nil
		m.notice = ""
		return m, m.showTracks(data.playlist, data.tracks, tasks.Selection{})

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgCopyComplete:
		m.progressChan = nil
		m.doneChan = nil
		m.view = ResultView
		m.err = msg.err
		m.result, _ = msg.data.(*tasks.CopyResult)
		if m.result == nil {
			return m, nil
		}
		opID := m.result.Checkpoint.OperationID
		return m, tea.Tick(m.clearDelay, func(time.Time) tea.Msg {
			return checkpointClearedMsg(m.engine.FinishCheckpoint(m.ctx, opID))
		})

	case MsgCheckpointCleared:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Failed to clear checkpoint: %v", msg.err)
		}
		return m, nil

	case MsgInterruptionFound:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Failed to read checkpoint: %v", msg.err)
			return m, nil
		}
		if cp, _ := msg.data.(*models.Checkpoint); cp != nil && m.view == PlaylistListView {
			m.checkpoint = cp
			m.view = RecoveryView
		}
		return m, nil

	case MsgCheckpointResolved:
		m.checkpoint = nil
		m.view = PlaylistListView
		if msg.err != nil {
			m.notice = fmt.Sprintf("Checkpoint not resolved: %v", msg.err)
		} else {
			m.notice = msg.data.(string)
		}
		return m, nil

	case MsgHistoryLoaded:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		entries := msg.data.([]models.HistoryEntry)
		items := make([]list.Item, len(entries))
		for i, e := range entries {
			items[i] = historyItem{entry: e}
		}
		m.view = HistoryView
		return m, m.historyList.SetItems(items)

	case MsgLocated:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Locate failed: %v", msg.err)
			return m, nil
		}
		p := msg.data.(*tasks.Preselection)
		if p.AnchorFound {
			m.notice = fmt.Sprintf("Preselected %d tracks added since the last copy", p.Selection.Len())
		} else {
			m.notice = "Last copied track not found in the source; nothing preselected"
		}
		return m, m.showTracks(p.Parent, p.Tracks, p.Selection)

	case MsgSynced:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Sync failed: %v", msg.err)
			return m, nil
		}
		r := msg.data.(tasks.ReconcileResult)
		m.notice = fmt.Sprintf("Synced history: %d added, %d updated", r.Added, r.Enriched)
		return m, m.loadHistory()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	var body string
	switch m.view {
	case PlaylistListView:
		body = m.renderPlaylistList()
	case TrackListView:
		body = m.renderTrackList()
	case ConfirmView:
		body = m.renderConfirm()
	case CopyView:
		body = m.renderCopy()
	case ResultView:
		body = m.renderResult()
	case HistoryView:
		body = m.renderHistory()
	case RecoveryView:
		body = m.renderRecovery()
	}

	if m.notice != "" && m.view != RecoveryView {
		body = fmt.Sprintf("%s\n\n%s", styles.warn.Render(m.notice), body)
	}
	return body
}

func (m *Model) filtering(l list.Model) bool {
	return l.FilterState() == list.Filtering
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.playlistList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.history):
			m.notice = ""
			return m, m.loadHistory()
		case key.Matches(msg, m.keys.enter):
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.fetchTracks(pl.playlist)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.trackList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			m.notice = ""
			return m, nil
		case key.Matches(msg, m.keys.toggle):
			if it, ok := m.trackList.SelectedItem().(trackItem); ok {
				m.selection = tasks.Toggle(m.selection, it.pos)
				it.selected = m.selection.Has(it.pos)
				return m, m.trackList.SetItem(it.pos, it)
			}
			return m, nil
		case key.Matches(msg, m.keys.all):
			m.selection = tasks.ToggleAll(m.selection, len(m.tracks))
			return m, m.trackList.SetItems(m.trackItems())
		case key.Matches(msg, m.keys.enter):
			if m.selection.Len() == 0 {
				m.notice = "Select at least one track"
				return m, nil
			}
			m.notice = ""
			m.nameInput.SetValue(tasks.DerivedName(m.source.Name, m.now()))
			m.view = ConfirmView
			return m, m.nameInput.Focus()
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.nameInput.Blur()
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.public):
		m.public = !m.public
		return m, nil
	case key.Matches(msg, m.keys.enter):
		name := strings.TrimSpace(m.nameInput.Value())
		if name == "" {
			m.notice = "Playlist name is required"
			return m, nil
		}
		m.notice = ""
		m.nameInput.Blur()
		m.view = CopyView
		return m, m.startCopy(tasks.CopyRequest{
			Source: models.SourceRef{ID: m.source.ID, Name: m.source.Name},
			Tracks: tasks.Materialize(m.tracks, m.selection),
			Name:   name,
			Public: m.public,
		})
	}

	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.history):
		m.err = nil
		return m, m.loadHistory()
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.source = nil
		m.result = nil
		m.err = nil
		m.selection = tasks.Selection{}
		return m, m.fetchPlaylists()
	}
	return m, nil
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.historyList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			m.notice = ""
			return m, nil
		case key.Matches(msg, m.keys.sync):
			m.notice = "Syncing history..."
			return m, m.syncHistory()
		case key.Matches(msg, m.keys.enter):
			if it, ok := m.historyList.SelectedItem().(historyItem); ok {
				m.notice = fmt.Sprintf("Locating new tracks for %s...", it.entry.Name)
				return m, m.locate(it.entry)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.historyList, cmd = m.historyList.Update(msg)
	return m, cmd
}

func (m *Model) handleRecoveryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.accept):
		return m, m.acceptCheckpoint()
	case key.Matches(msg, m.keys.discard):
		return m, m.discardCheckpoint()
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	case HistoryView:
		m.historyList, cmd = m.historyList.Update(msg)
	}
	return m, cmd
}

// showTracks switches to the track list for playlist with selection applied.
func (m *Model) showTracks(playlist models.Playlist, tracks []models.Track, selection tasks.Selection) tea.Cmd {
	m.source = &playlist
	m.tracks = tracks
	m.selection = selection
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", playlist.Name)
	m.trackList.ResetFilter()
	m.view = TrackListView
	cmd := m.trackList.SetItems(m.trackItems())
	m.trackList.Select(0)
	return cmd
}

func (m *Model) trackItems() []list.Item {
	items := make([]list.Item, len(m.tracks))
	for i, t := range m.tracks {
		items[i] = trackItem{pos: i, track: t, selected: m.selection.Has(i)}
	}
	return items
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.engine.Playlists(m.ctx, nil)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlist models.Playlist) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.engine.Tracks(m.ctx, playlist, nil)
		return tracksFetchedMsg(playlist, tracks, err)
	}
}

func (m *Model) checkInterruption() tea.Cmd {
	return func() tea.Msg {
		return interruptionFoundMsg(m.engine.PendingInterruption(m.ctx))
	}
}

func (m *Model) acceptCheckpoint() tea.Cmd {
	return func() tea.Msg {
		entry, err := m.engine.AcceptCheckpoint(m.ctx)
		if err != nil {
			return checkpointResolvedMsg("", err)
		}
		return checkpointResolvedMsg(fmt.Sprintf("Saved %s to history (%d tracks)", entry.Name, entry.TrackCount), nil)
	}
}

func (m *Model) discardCheckpoint() tea.Cmd {
	return func() tea.Msg {
		return checkpointResolvedMsg("Checkpoint discarded", m.engine.DiscardCheckpoint(m.ctx))
	}
}

func (m *Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		return historyLoadedMsg(m.engine.History(m.ctx))
	}
}

func (m *Model) locate(entry models.HistoryEntry) tea.Cmd {
	return func() tea.Msg {
		return locatedMsg(m.engine.LocateFromHistory(m.ctx, entry, nil))
	}
}

func (m *Model) syncHistory() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.engine.OwnedPlaylists(m.ctx, nil)
		if err != nil {
			return syncedMsg(tasks.ReconcileResult{}, err)
		}
		return syncedMsg(m.engine.ReconcileHistory(m.ctx, tasks.DetectOrigins(playlists), nil))
	}
}

// startCopy runs the copy in the background, reporting through the progress and done channels.
func (m *Model) startCopy(req tasks.CopyRequest) tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan = progress
	m.doneChan = done
	m.progress = tasks.ProgressUpdate{Total: len(req.Tracks), Message: "Starting..."}

	go func() {
		result, err := m.engine.Copy(m.ctx, req, progress)
		close(progress)
		done <- copyCompleteMsg(result, err)
	}()

	return tea.Batch(m.waitForProgress(), m.spinner.Tick)
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if update, ok := <-progress; ok {
			return progressUpdateMsg(update)
		}
		return <-done
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.history, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	copyKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "copy selected"))
	helpKeys := []key.Binding{m.keys.toggle, m.keys.all, copyKey, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	status := styles.help.Render(fmt.Sprintf("%d of %d selected", m.selection.Len(), len(m.tracks)))
	return fmt.Sprintf("%s\n%s\n\n%s", m.trackList.View(), status, helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Copy %d tracks from '%s'", m.selection.Len(), m.source.Name))
	visibility := "Private"
	if m.public {
		visibility = "Public"
	}
	info := fmt.Sprintf("Name: %s\nVisibility: %s", m.nameInput.View(), visibility)

	createKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "create"))
	helpKeys := []key.Binding{createKey, m.keys.public, m.keys.back}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

func (m *Model) renderCopy() string {
	title := styles.title.Render("Copying Tracks")

	var phase string
	switch m.progress.Phase {
	case tasks.CreatePlaylist:
		phase = "Creating playlist..."
	case tasks.WriteTracks:
		phase = fmt.Sprintf("Adding tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Archive:
		phase = "Saving to history..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.restart, m.keys.history, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		msg := fmt.Sprintf("Copy failed: %v", m.err)
		var bwe *tasks.BatchWriteError
		if errors.As(m.err, &bwe) {
			msg = fmt.Sprintf("Copy failed after %d of %d tracks: %v\n\nA checkpoint was saved; accept or discard it on the next start.",
				bwe.Checkpoint.ItemsWritten, bwe.Checkpoint.TotalItems, bwe.Err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to restart, q to quit")
	}

	title := styles.ok.Render("✓ Playlist Created!")
	info := fmt.Sprintf(
		"\nName: %s\nTracks: %d (%d batches)\nURL: %s",
		m.result.Entry.Name,
		m.result.Entry.TrackCount,
		m.result.Batches,
		m.result.Playlist.URL,
	)

	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

func (m *Model) renderHistory() string {
	locateKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "locate new tracks"))
	helpKeys := []key.Binding{locateKey, m.keys.sync, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.historyList.View(), helpView)
}

func (m *Model) renderRecovery() string {
	cp := m.checkpoint
	if cp == nil {
		return ""
	}

	lines := []string{
		styles.warn.Bold(true).Render("Interrupted copy found"),
		"",
		fmt.Sprintf("Playlist: %s", cp.DestinationName),
		fmt.Sprintf("Source: %s", cp.Source.Name),
		fmt.Sprintf("Progress: %d of %d tracks (%s)", cp.ItemsWritten, cp.TotalItems, cp.Status),
		fmt.Sprintf("Started: %s", cp.Timestamp.Local().Format(time.DateTime)),
	}
	if cp.DestinationURL != "" {
		lines = append(lines, fmt.Sprintf("URL: %s", cp.DestinationURL))
	}

	helpKeys := []key.Binding{m.keys.accept, m.keys.discard, m.keys.back}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", styles.box.Render(strings.Join(lines, "\n")), helpView)
}
