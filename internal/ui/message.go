package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
	err  error
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgTracksFetched
	MsgProgressUpdate
	MsgCopyComplete
	MsgCheckpointCleared
	MsgInterruptionFound
	MsgCheckpointResolved
	MsgHistoryLoaded
	MsgLocated
	MsgSynced
)

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlists, err: err}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist models.Playlist, tracks []models.Track, err error) Msg {
	return Msg{
		kind: MsgTracksFetched,
		data: struct {
			playlist models.Playlist
			tracks   []models.Track
		}{playlist, tracks},
		err: err,
	}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// copyCompleteMsg is the constructor for [MsgCopyComplete]
func copyCompleteMsg(result *tasks.CopyResult, err error) Msg {
	return Msg{kind: MsgCopyComplete, data: result, err: err}
}

// checkpointClearedMsg is the constructor for [MsgCheckpointCleared]
func checkpointClearedMsg(err error) Msg {
	return Msg{kind: MsgCheckpointCleared, err: err}
}

// interruptionFoundMsg is the constructor for [MsgInterruptionFound]
func interruptionFoundMsg(cp *models.Checkpoint, err error) Msg {
	return Msg{kind: MsgInterruptionFound, data: cp, err: err}
}

// checkpointResolvedMsg is the constructor for [MsgCheckpointResolved]
func checkpointResolvedMsg(notice string, err error) Msg {
	return Msg{kind: MsgCheckpointResolved, data: notice, err: err}
}

// historyLoadedMsg is the constructor for [MsgHistoryLoaded]
func historyLoadedMsg(entries []models.HistoryEntry, err error) Msg {
	return Msg{kind: MsgHistoryLoaded, data: entries, err: err}
}

// locatedMsg is the constructor for [MsgLocated]
func locatedMsg(p *tasks.Preselection, err error) Msg {
	return Msg{kind: MsgLocated, data: p, err: err}
}

// syncedMsg is the constructor for [MsgSynced]
func syncedMsg(result tasks.ReconcileResult, err error) Msg {
	return Msg{kind: MsgSynced, data: result, err: err}
}
