package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
)

// CheckpointShow prints the checkpoint of an interrupted copy, if any.
func (r *Runner) CheckpointShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	cp, err := r.engine.PendingInterruption(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(cp, true)
	}
	if cp == nil {
		return r.writePlain("No interrupted copy.\n")
	}

	r.writePlainHeader("Interrupted Copy")
	r.writePlain("Playlist: %s\n", cp.DestinationName)
	r.writePlain("Source: %s\n", cp.Source.Name)
	r.writePlain("Status: %s\n", cp.Status)
	r.writePlain("Written: %d of %d tracks\n", cp.ItemsWritten, cp.TotalItems)
	r.writePlain("Saved: %s\n", cp.Timestamp.Local().Format(time.DateTime))
	if cp.DestinationURL != "" {
		r.writePlain("URL: %s\n", cp.DestinationURL)
	}
	return nil
}

// CheckpointAccept archives the interrupted copy into history.
func (r *Runner) CheckpointAccept(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	entry, err := r.engine.AcceptCheckpoint(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("checkpoint accepted", "playlist", entry.ID, "tracks", entry.TrackCount)
	return r.writePlain("✓ %s added to history with %d tracks\n", entry.Name, entry.TrackCount)
}

// CheckpointDiscard drops the checkpoint. The destination playlist is left as it is.
func (r *Runner) CheckpointDiscard(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	if err := r.engine.DiscardCheckpoint(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Checkpoint discarded\n")
}
