package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spm/internal/formatter"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

// Playlists lists the user's playlists with an optional name filter and limit.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	limit := cmd.Int("limit")
	filter := cmd.String("filter")

	r.logger.Info("listing spotify playlists", "filter", filter, "limit", limit)

	playlists, err := r.engine.Playlists(ctx, nil)
	if err != nil {
		return err
	}

	playlists = services.FilterPlaylists(playlists, filter)
	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		return r.writePlain("No playlists found.\n")
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
	}
	return nil
}

// Tracks prints or exports every track of a playlist, newest addition first.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	playlist, tracks, err := r.fetchPlaylist(ctx, cmd.String("playlist"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"playlist": playlist, "tracks": tracks}, cmd.Bool("pretty"))
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	output := cmd.String("output")

	if format == formatter.FormatMarkdown && output != "" {
		result, err := formatter.WriteMarkdownExport(r.httpClient, *playlist, tracks, output, func(err error) {
			r.logger.Warn("export warning", "error", err)
		})
		if err != nil {
			return err
		}
		r.logger.Info("playlist exported", "dir", result.Directory, "tracks", len(tracks))
		r.writePlain("✓ Playlist exported to %s\n", result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", f)
		}
		return nil
	}

	data, err := formatter.ExportTracks(*playlist, tracks, format)
	if err != nil {
		return err
	}
	if err := formatter.WriteFile(r.output, output, data); err != nil {
		return err
	}
	if output != "" {
		r.writePlain("✓ %d tracks exported to %s\n", len(tracks), output)
	}
	return nil
}

// resolvePlaylist finds ref among the user's playlists by id or name.
func (r *Runner) resolvePlaylist(ctx context.Context, ref string) (*models.Playlist, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: playlist id or name is required", shared.ErrMissingArgument)
	}

	playlists, err := r.engine.Playlists(ctx, nil)
	if err != nil {
		return nil, err
	}

	playlist, ok := services.FindPlaylist(playlists, ref)
	if !ok {
		if matches := services.FilterPlaylists(playlists, ref); len(matches) > 1 {
			return nil, fmt.Errorf("%w: %q matches %d playlists, use the id", shared.ErrInvalidArgument, ref, len(matches))
		}
		return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, ref)
	}
	return playlist, nil
}

// fetchPlaylist resolves ref and fetches its tracks.
func (r *Runner) fetchPlaylist(ctx context.Context, ref string) (*models.Playlist, []models.Track, error) {
	playlist, err := r.resolvePlaylist(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Info("fetching tracks", "playlist", playlist.Name)

	tracks, err := r.engine.Tracks(ctx, *playlist, nil)
	if err != nil {
		return nil, nil, err
	}
	return playlist, tracks, nil
}
