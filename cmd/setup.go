package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing and initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file exists", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Config file created at %s\n", configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.writePlain("✓ Database ready at %s\n", config.Database.Path)

	if r.creds == nil || !r.creds.Load().IsConfigured {
		r.writePlainln("Next steps:")
		r.writePlain("1. Create an app in the Spotify developer dashboard with redirect URI %s\n", shared.DefaultRedirectURI)
		r.writePlain("2. Run 'spm config set --client-id <id>'\n")
		r.writePlain("3. Run 'spm auth login'\n")
	}
	return nil
}
