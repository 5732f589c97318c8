package tasks

import (
	"fmt"

	"github.com/desertthunder/spm/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchTracks
	CreatePlaylist
	WriteTracks
	Archive
	Reconcile
	Locate
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchTracks:
		return "fetch_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case WriteTracks:
		return "write_tracks"
	case Archive:
		return "archive"
	case Reconcile:
		return "reconcile"
	case Locate:
		return "locate"
	default:
		return ""
	}
}

func createDestinationUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q on Spotify...", name),
	}
}

func createPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func writeBatchUpdate(cp models.Checkpoint) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteTracks,
		Step:    cp.ItemsWritten,
		Total:   cp.TotalItems,
		Message: fmt.Sprintf("[%d/%d] Added tracks", cp.ItemsWritten, cp.TotalItems),
		Data:    cp,
	}
}

func archiveUpdate(entry models.HistoryEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Archive,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saved %s to history (%d tracks)", entry.Name, entry.TrackCount),
		Data:    entry,
	}
}

func fetchPlaylistsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Message: "Fetching playlists from Spotify...",
	}
}

func fetchTracksUpdate(pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Total:   pl.TrackCount,
		Message: fmt.Sprintf("Fetching tracks of %s...", pl.Name),
	}
}

func reconcileUpdate(step, total int, d Detection) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s ← %s", step, total, d.Child.Name, d.ParentName),
		Data:    d,
	}
}

func locateUpdate(p *Preselection) ProgressUpdate {
	msg := fmt.Sprintf("Preselected %d new tracks in %s", p.Selection.Len(), p.Parent.Name)
	if !p.AnchorFound {
		msg = fmt.Sprintf("Last copied track not found in %s; nothing preselected", p.Parent.Name)
	}
	return ProgressUpdate{
		Phase:   Locate,
		Step:    p.Selection.Len(),
		Total:   len(p.Tracks),
		Message: msg,
		Data:    p,
	}
}
