package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spm/internal/formatter"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/desertthunder/spm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// HistoryList prints the recorded copies, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	entries, err := r.engine.History(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.ExportHistory(entries, formatter.FormatJSON)
		if err != nil {
			return err
		}
		return formatter.WriteFile(r.output, "", data)
	}

	data, err := formatter.HistoryToText(entries)
	if err != nil {
		return err
	}
	return formatter.WriteFile(r.output, "", data)
}

// HistoryExport renders the history as JSON, CSV, Markdown or text to stdout or --output.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	entries, err := r.engine.History(ctx)
	if err != nil {
		return err
	}

	data, err := formatter.ExportHistory(entries, format)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if err := formatter.WriteFile(r.output, output, data); err != nil {
		return err
	}
	if output != "" {
		r.logger.Info("history exported", "path", output, "entries", len(entries))
		r.writePlain("✓ %d entries exported to %s\n", len(entries), output)
	}
	return nil
}

// HistorySync scans the user's playlists for derived names and records or enriches their history entries.
func (r *Runner) HistorySync(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	playlists, err := r.engine.OwnedPlaylists(ctx, nil)
	if err != nil {
		return err
	}

	detections := tasks.DetectOrigins(playlists)
	if len(detections) == 0 {
		return r.writePlain("No derived playlists found.\n")
	}

	progressCh := make(chan tasks.ProgressUpdate, len(detections))
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			r.writePlain("   %s\n", update.Message)
		}
	}()

	result, err := r.engine.ReconcileHistory(ctx, detections, progressCh)
	close(progressCh)
	<-printed

	if err != nil {
		return err
	}

	return r.writePlain("✓ %d derived playlists: %d added, %d updated\n", len(detections), result.Added, result.Enriched)
}

// HistoryLocate finds the tracks added to an entry's source since the copy was made.
//
// With --copy the located tracks are copied into a new derived playlist.
func (r *Runner) HistoryLocate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	entry, err := r.historyEntry(ctx, cmd)
	if err != nil {
		return err
	}

	pre, err := r.engine.LocateFromHistory(ctx, *entry, nil)
	if err != nil {
		return err
	}

	if !pre.AnchorFound {
		r.writePlain("⚠ The last copied track is no longer in %s; nothing was selected.\n", pre.Parent.Name)
		return nil
	}

	selected := pre.Selected()
	if len(selected) == 0 {
		return r.writePlain("✓ %s has no new tracks since %s\n", pre.Parent.Name, entry.Name)
	}

	r.writePlain("%d new tracks in %s since %s:\n\n", len(selected), pre.Parent.Name, entry.Name)
	for i, t := range selected {
		r.writePlain("%3d. %s\n", i, t)
	}

	if !cmd.Bool("copy") {
		return nil
	}

	name := cmd.String("name")
	if name == "" {
		name = tasks.DerivedName(pre.Parent.Name, time.Now())
	}

	r.writePlainln("")
	return r.runCopy(ctx, tasks.CopyRequest{
		Source: models.SourceRef{ID: pre.Parent.ID, Name: pre.Parent.Name},
		Tracks: selected,
		Name:   name,
		Public: cmd.Bool("public"),
	})
}

// HistoryDelete unfollows a created playlist and removes it from history.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	entry, err := r.historyEntry(ctx, cmd)
	if err != nil {
		return err
	}

	if err := r.engine.DeletePlaylist(ctx, entry.ID); err != nil {
		return err
	}

	r.logger.Info("playlist deleted", "id", entry.ID)
	return r.writePlain("✓ Deleted %s\n", entry.Name)
}

func (r *Runner) historyEntry(ctx context.Context, cmd *cli.Command) (*models.HistoryEntry, error) {
	id := cmd.StringArg("id")
	if id == "" {
		return nil, fmt.Errorf("%w: history entry id is required", shared.ErrMissingArgument)
	}
	return r.history.Get(ctx, id)
}
