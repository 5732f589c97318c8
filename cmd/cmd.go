// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand creates the config file and runs migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the database",
		Action: r.Setup,
	}
}

// serveCommand runs the callback receiver in the foreground.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the OAuth callback receiver until interrupted",
		Action: r.Serve,
	}
}

// configCommand manages the OAuth client configuration
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or change configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ConfigShow,
			},
			{
				Name:  "set",
				Usage: "Save the Spotify client id",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "client-id",
						Usage:    "Client id of your Spotify developer app",
						Required: true,
					},
				},
				Action: r.ConfigSet,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in to Spotify in the browser (PKCE)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Log in again even when a session is valid",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show credential, session and checkpoint state",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove the stored session",
				Action: r.AuthLogout,
			},
		},
	}
}

// playlistsCommand lists the user's playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List Spotify playlists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Only show playlists whose name contains this text",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to show (0 for all)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Playlists,
	}
}

// tracksCommand lists or exports the tracks of a playlist
func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "List the tracks of a playlist, newest addition first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Playlist id or name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, json, csv or markdown",
				Value: "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file (a directory for markdown)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Tracks,
	}
}

// copyCommand copies a selection of new additions into a new playlist
func copyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "copy",
		Usage: "Copy selected tracks of a playlist into a new playlist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source",
				Aliases:  []string{"s"},
				Usage:    "Source playlist id or name",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Destination playlist name (default: New - {source} - {date} ✨)",
			},
			&cli.BoolFlag{
				Name:  "public",
				Usage: "Make the destination playlist public",
			},
			&cli.StringFlag{
				Name:  "select",
				Usage: "Track positions to copy, e.g. 0,2-5 (0 is the newest addition)",
			},
			&cli.IntFlag{
				Name:  "first",
				Usage: "Copy the N newest additions",
			},
			&cli.StringFlag{
				Name:  "since",
				Usage: "Copy every track added after this track id",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Copy every track",
			},
		},
		Action: r.Copy,
	}
}

// checkpointCommand handles recovery of an interrupted copy
func checkpointCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "checkpoint",
		Aliases: []string{"cp"},
		Usage:   "Recover an interrupted copy",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the interrupted copy",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CheckpointShow,
			},
			{
				Name:   "accept",
				Usage:  "Keep the partial playlist and record it in history",
				Action: r.CheckpointAccept,
			},
			{
				Name:   "discard",
				Usage:  "Forget the interrupted copy",
				Action: r.CheckpointDiscard,
			},
		},
	}
}

// historyCommand handles the record of created playlists
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Playlists created by spm",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List created playlists, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "export",
				Usage: "Export history as json, csv, markdown or text",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: json, csv, markdown or text",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: stdout)",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:   "sync",
				Usage:  "Record derived playlists found in your library",
				Action: r.HistorySync,
			},
			{
				Name:  "locate",
				Usage: "Find tracks added to the source since a playlist was created",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "copy",
						Usage: "Copy the located tracks into a new playlist",
					},
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Destination playlist name when copying",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Make the destination playlist public",
					},
				},
				Action: r.HistoryLocate,
			},
			{
				Name:  "delete",
				Usage: "Delete a created playlist from Spotify and history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log file used while the TUI owns the terminal",
				Value: "./tmp/spm-tui.log",
			},
		},
		Action: r.TUI,
	}
}
