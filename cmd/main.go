package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "spm",
		Usage:    "Copy the newest additions of a Spotify playlist into a new playlist",
		Version:  "0.3.0",
		Flags:    globalFlags(),
		Before:   runner.bootstrap,
		After:    func(context.Context, *cli.Command) error { return runner.Close() },
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log informational messages",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Log debug messages",
		},
	}
}

// bootstrap loads the configuration, opens the store and wires the runner before any command runs.
func (r *Runner) bootstrap(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logger := r.logger
	switch {
	case cmd.Bool("debug"):
		shared.SetLogLevel(logger, log.DebugLevel)
	case cmd.Bool("verbose"):
		shared.SetLogLevel(logger, log.InfoLevel)
	default:
		shared.SetLogLevel(logger, log.WarnLevel)
	}

	configPath := cmd.String("config")
	config, err := shared.LoadConfigOrDefault(configPath)
	if err != nil {
		return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	creds, err := shared.NewCredentialStore(config.Credentials.EnvPath)
	if err != nil {
		return ctx, err
	}

	db, err := shared.OpenStore(config.Database)
	if err != nil {
		return ctx, fmt.Errorf("failed to open database %s: %w", config.Database.Path, err)
	}

	logger.Debug("configuration loaded", "config", configPath, "database", config.Database.Path)

	r.configure(RunnerOpts{
		Config:      config,
		ConfigPath:  configPath,
		Credentials: creds,
		DB:          db,
		Logger:      logger,
		Output:      r.output,
	})
	return ctx, nil
}
