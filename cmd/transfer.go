package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/desertthunder/spm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Copy creates a new playlist from a selection of a source playlist's newest additions.
func (r *Runner) Copy(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	playlist, tracks, err := r.fetchPlaylist(ctx, cmd.String("source"))
	if err != nil {
		return err
	}

	selection, err := selectTracks(cmd, tracks)
	if err != nil {
		return err
	}

	name := cmd.String("name")
	if name == "" {
		name = tasks.DerivedName(playlist.Name, time.Now())
	}

	return r.runCopy(ctx, tasks.CopyRequest{
		Source: models.SourceRef{ID: playlist.ID, Name: playlist.Name},
		Tracks: tasks.Materialize(tracks, selection),
		Name:   name,
		Public: cmd.Bool("public"),
	})
}

// selectTracks builds the selection from exactly one of --select, --first, --since or --all.
func selectTracks(cmd *cli.Command, tracks []models.Track) (tasks.Selection, error) {
	set := 0
	for _, name := range []string{"select", "first", "since", "all"} {
		if cmd.IsSet(name) {
			set++
		}
	}
	if set == 0 {
		return nil, fmt.Errorf("%w: one of --select, --first, --since or --all is required", shared.ErrMissingArgument)
	}
	if set > 1 {
		return nil, fmt.Errorf("%w: --select, --first, --since and --all are exclusive", shared.ErrInvalidArgument)
	}

	switch {
	case cmd.IsSet("all"):
		return tasks.ToggleAll(tasks.NewSelection(), len(tracks)), nil
	case cmd.IsSet("first"):
		k := cmd.Int("first")
		if k < 1 {
			return nil, fmt.Errorf("%w: --first must be positive", shared.ErrInvalidArgument)
		}
		return tasks.SelectFirst(min(k, len(tracks))), nil
	case cmd.IsSet("since"):
		anchor := cmd.String("since")
		selection, k := tasks.SelectSince(tracks, anchor)
		if k < 0 {
			return nil, fmt.Errorf("%w: %q is not in the playlist", shared.ErrTrackNotFound, anchor)
		}
		return selection, nil
	default:
		return tasks.ParseSelection(cmd.String("select"), len(tracks))
	}
}

// runCopy runs the engine copy, printing progress as batches land, then clears the completed checkpoint.
func (r *Runner) runCopy(ctx context.Context, req tasks.CopyRequest) error {
	r.logger.Info("starting copy", "source", req.Source.Name, "dest", req.Name, "tracks", len(req.Tracks))
	r.writePlain("Copying %d tracks from %s\n", len(req.Tracks), req.Source.Name)
	r.writePlain("Destination: %s\n\n", req.Name)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			switch update.Phase {
			case tasks.CreatePlaylist:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.WriteTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.Archive:
				r.writePlain("🗂  %s\n", update.Message)
			}
		}
	}()

	result, err := r.engine.Copy(ctx, req, progressCh)
	close(progressCh)
	<-printed

	if err != nil {
		var batchErr *tasks.BatchWriteError
		if errors.As(err, &batchErr) {
			cp := batchErr.Checkpoint
			r.writePlainln("✗ Copy failed after %d of %d tracks", cp.ItemsWritten, cp.TotalItems)
			r.writePlain("A checkpoint was saved. Run 'spm checkpoint accept' or 'spm checkpoint discard'.\n")
		}
		return err
	}

	r.writePlainln("")
	r.writePlainHeader("Copy Complete!")
	r.writePlain("Playlist: %s\n", result.Playlist.Name)
	r.writePlain("Tracks: %d (%d batches)\n", result.Checkpoint.ItemsWritten, result.Batches)
	if result.Playlist.URL != "" {
		r.writePlain("URL: %s\n", result.Playlist.URL)
	}

	return r.engine.FinishCheckpoint(ctx, result.Checkpoint.OperationID)
}
