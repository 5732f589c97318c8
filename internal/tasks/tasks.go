// package tasks implements the checkpointed playlist copy and lineage tracking.
//
// The core abstraction is PlaylistEngine, which creates playlists, writes tracks in batches and keeps history.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
)

// CheckpointStore holds the single checkpoint slot.
type CheckpointStore interface {
	Load(ctx context.Context) (*models.Checkpoint, error)
	Save(ctx context.Context, cp *models.Checkpoint) error
	Clear(ctx context.Context) error
	ClearIf(ctx context.Context, operationID string) (bool, error)
}

// HistoryStore holds the bounded history list.
type HistoryStore interface {
	List(ctx context.Context) ([]models.HistoryEntry, error)
	Get(ctx context.Context, id string) (*models.HistoryEntry, error)
	Add(ctx context.Context, entry models.HistoryEntry) error
	Update(ctx context.Context, entry models.HistoryEntry) error
	Delete(ctx context.Context, id string) error
}

// UserStore caches the authenticated user.
type UserStore interface {
	LoadUser(ctx context.Context) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// CopyRequest describes a copy of selected tracks into a new playlist.
type CopyRequest struct {
	Source models.SourceRef // Playlist the tracks were selected from
	Tracks []models.Track   // Selection, newest addition first
	Name   string           // Destination playlist name
	Public bool             // Destination visibility
}

// CopyResult contains the outcome of a completed copy.
type CopyResult struct {
	Playlist   *models.Playlist    // Created destination playlist
	Checkpoint models.Checkpoint   // Final checkpoint, status completed
	Entry      models.HistoryEntry // History entry recorded for the copy
	Batches    int                 // Number of add-tracks calls made
}

// BatchWriteError reports a copy that stopped after its checkpoint was saved.
//
// Checkpoint is the last persisted checkpoint; ItemsWritten tracks are in the destination.
type BatchWriteError struct {
	Checkpoint models.Checkpoint
	Err        error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("copy to %q stopped after %d of %d tracks (checkpoint saved): %v",
		e.Checkpoint.DestinationName, e.Checkpoint.ItemsWritten, e.Checkpoint.TotalItems, e.Err)
}

func (e *BatchWriteError) Unwrap() []error {
	return []error{shared.ErrBatchWrite, e.Err}
}

// PlaylistEngine copies tracks into new playlists and maintains history.
type PlaylistEngine struct {
	library     services.Library
	checkpoints CheckpointStore
	history     HistoryStore
	users       UserStore
	logger      *log.Logger
	now         func() time.Time
	newID       func() string
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided library and stores.
func NewPlaylistEngine(library services.Library, checkpoints CheckpointStore, history HistoryStore, users UserStore, logger *log.Logger) *PlaylistEngine {
	return &PlaylistEngine{
		library:     library,
		checkpoints: checkpoints,
		history:     history,
		users:       users,
		logger:      shared.WithLogger(logger, "component", "engine"),
		now:         time.Now,
		newID:       shared.GenerateID,
	}
}

// SetClock replaces the time source.
func (e *PlaylistEngine) SetClock(now func() time.Time) {
	e.now = now
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Copy creates a playlist named req.Name and writes the selected tracks into it.
//
// The selection is submitted oldest first, in batches of [services.MaxBatchSize], so the destination lists
// the tracks in the order they were originally added. A checkpoint is persisted before the playlist is created
// and after every batch. On failure the last checkpoint stays in place and a [*BatchWriteError] is returned.
// On success the checkpoint is left completed for [PlaylistEngine.FinishCheckpoint] to clear.
func (e *PlaylistEngine) Copy(ctx context.Context, req CopyRequest, progress chan<- ProgressUpdate) (*CopyResult, error) {
	name := strings.TrimSpace(req.Name)
	if len(req.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks selected", shared.ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}

	user, err := e.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	logger := shared.WithLogger(e.logger, "op", "copy")
	total := len(req.Tracks)
	cp := models.Checkpoint{
		OperationID:     e.newID(),
		Timestamp:       e.now(),
		DestinationName: name,
		Public:          req.Public,
		Source:          req.Source,
		TotalItems:      total,
		Status:          models.CheckpointCreating,
	}
	if err := e.checkpoints.Save(ctx, &cp); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	e.sendProgress(progress, createDestinationUpdate(name))
	created, err := e.library.CreatePlaylist(ctx, user.ID, services.NewPlaylist{
		Name:        name,
		Description: Description(req.Source.Name),
		Public:      req.Public,
	})
	if err != nil {
		return nil, &BatchWriteError{Checkpoint: cp, Err: err}
	}
	logger.Info("created playlist", "id", created.ID, "tracks", total)
	e.sendProgress(progress, createPlaylistUpdate(created))

	next := cp
	next.DestinationID = created.ID
	next.DestinationURL = created.URL
	if err := e.saveCheckpoint(ctx, &next); err != nil {
		return nil, &BatchWriteError{Checkpoint: cp, Err: err}
	}
	cp = next

	ordered := slices.Clone(req.Tracks)
	slices.Reverse(ordered)

	batches := 0
	for batch := range slices.Chunk(ordered, services.MaxBatchSize) {
		uris := make([]string, len(batch))
		for i, t := range batch {
			uris[i] = t.URI
		}

		if err := e.library.AddTracks(ctx, created.ID, uris); err != nil {
			logger.Error("batch failed", "batch", batches+1, "written", cp.ItemsWritten, "error", err)
			return nil, &BatchWriteError{Checkpoint: cp, Err: err}
		}
		batches++

		next := cp
		next.ItemsWritten = min(cp.ItemsWritten+len(batch), total)
		next.Status = models.CheckpointInProgress
		if next.ItemsWritten == total {
			next.Status = models.CheckpointCompleted
		}
		if err := e.saveCheckpoint(ctx, &next); err != nil {
			return nil, &BatchWriteError{Checkpoint: cp, Err: err}
		}
		cp = next

		logger.Debug("batch written", "batch", batches, "written", cp.ItemsWritten, "total", total)
		e.sendProgress(progress, writeBatchUpdate(cp))
	}

	entry := models.HistoryEntry{
		ID:         created.ID,
		Name:       created.Name,
		URL:        created.URL,
		TrackCount: total,
		CreatedAt:  cp.Timestamp,
		Source:     req.Source,
		Public:     req.Public,
		LastItem:   models.NewLastItem(req.Tracks[0]),
	}
	if entry.Name == "" {
		entry.Name = name
	}
	if err := e.history.Add(ctx, entry); err != nil {
		logger.Error("history not updated", "playlist", created.ID, "error", err)
		return nil, &BatchWriteError{Checkpoint: cp, Err: fmt.Errorf("playlist created but history was not updated: %w", err)}
	}
	e.sendProgress(progress, archiveUpdate(entry))

	return &CopyResult{Playlist: created, Checkpoint: cp, Entry: entry, Batches: batches}, nil
}

func (e *PlaylistEngine) saveCheckpoint(ctx context.Context, cp *models.Checkpoint) error {
	cp.Timestamp = e.now()
	if err := e.checkpoints.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// currentUser returns the cached user, fetching and caching it when absent.
func (e *PlaylistEngine) currentUser(ctx context.Context) (*models.User, error) {
	user, err := e.users.LoadUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user != nil && user.ID != "" {
		return user, nil
	}

	user, err = e.library.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.users.SaveUser(ctx, user); err != nil {
		e.logger.Warn("failed to cache user", "error", err)
	}
	return user, nil
}

// FinishCheckpoint clears the checkpoint of a completed copy.
//
// The checkpoint is only cleared while it still belongs to operationID, so a delayed call cannot remove the
// checkpoint of a newer copy.
func (e *PlaylistEngine) FinishCheckpoint(ctx context.Context, operationID string) error {
	cleared, err := e.checkpoints.ClearIf(ctx, operationID)
	if err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	if !cleared {
		e.logger.Debug("checkpoint already replaced", "operation", operationID)
	}
	return nil
}

// PendingInterruption returns the checkpoint of a copy that did not finish, or nil.
//
// A completed checkpoint whose playlist never reached history is reported too.
// Stale checkpoints are discarded by the store and never reported.
func (e *PlaylistEngine) PendingInterruption(ctx context.Context) (*models.Checkpoint, error) {
	cp, err := e.checkpoints.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return nil, nil
	}
	if cp.Interrupted() {
		return cp, nil
	}
	if cp.DestinationID == "" {
		return nil, nil
	}

	_, err = e.history.Get(ctx, cp.DestinationID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return cp, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return nil, nil
}

// AcceptCheckpoint records the partial copy described by the checkpoint in history, then clears the checkpoint.
//
// The entry's track count is the number of tracks that landed. Its anchor is the destination's newest track.
func (e *PlaylistEngine) AcceptCheckpoint(ctx context.Context) (*models.HistoryEntry, error) {
	cp, err := e.checkpoints.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: no checkpoint", shared.ErrNotFound)
	}
	if cp.DestinationID == "" {
		return nil, fmt.Errorf("%w: playlist %q was never created; discard the checkpoint instead",
			shared.ErrInvalidInput, cp.DestinationName)
	}

	entry := models.HistoryEntry{
		ID:         cp.DestinationID,
		Name:       cp.DestinationName,
		URL:        cp.DestinationURL,
		TrackCount: cp.ItemsWritten,
		CreatedAt:  cp.Timestamp,
		Source:     cp.Source,
		Public:     cp.Public,
	}
	if cp.ItemsWritten > 0 {
		latest, err := e.library.LatestTrack(ctx, cp.DestinationID)
		switch {
		case err == nil:
			entry.LastItem = models.NewLastItem(*latest)
		case errors.Is(err, shared.ErrTrackNotFound):
		default:
			return nil, err
		}
	}

	if err := e.history.Add(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add history entry: %w", err)
	}
	if err := e.checkpoints.Clear(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return &entry, nil
}

// DiscardCheckpoint clears the checkpoint without touching the destination playlist.
func (e *PlaylistEngine) DiscardCheckpoint(ctx context.Context) error {
	if err := e.checkpoints.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// DeletePlaylist unfollows a playlist recorded in history and removes the entry.
//
// The entry is kept when the provider refuses, which it does for playlists owned by someone else.
func (e *PlaylistEngine) DeletePlaylist(ctx context.Context, id string) error {
	if _, err := e.history.Get(ctx, id); err != nil {
		return err
	}
	if err := e.library.UnfollowPlaylist(ctx, id); err != nil {
		if errors.Is(err, shared.ErrPermissionDenied) {
			return fmt.Errorf("%w: only the owner can delete this playlist", err)
		}
		return err
	}
	return e.history.Delete(ctx, id)
}

// Playlists fetches every playlist of the user.
func (e *PlaylistEngine) Playlists(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Playlist, error) {
	e.sendProgress(progress, fetchPlaylistsUpdate())
	return e.library.Playlists(ctx)
}

// Tracks fetches every track of pl, newest addition first.
func (e *PlaylistEngine) Tracks(ctx context.Context, pl models.Playlist, progress chan<- ProgressUpdate) ([]models.Track, error) {
	e.sendProgress(progress, fetchTracksUpdate(pl))
	return e.library.PlaylistTracks(ctx, pl.ID)
}

// History returns the recorded copies, newest first.
func (e *PlaylistEngine) History(ctx context.Context) ([]models.HistoryEntry, error) {
	return e.history.List(ctx)
}
