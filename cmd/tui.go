package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/desertthunder/spm/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for picking and copying new additions.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}
	if r.tokens != nil && !r.tokens.HasSession(ctx) {
		return fmt.Errorf("%w: run 'spm auth login' first", shared.ErrNotAuthenticated)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	// Rebuild the client and engine on the file logger; an injected library is kept.
	library := r.library
	if r.tokens != nil {
		library = nil
	}
	r.configure(RunnerOpts{
		Config:      r.config,
		ConfigPath:  r.configPath,
		Credentials: r.creds,
		DB:          r.db,
		Library:     library,
		HTTPClient:  r.httpClient,
		Logger:      fileLogger,
		Output:      r.output,
		OpenBrowser: r.openBrowser,
	})

	model := ui.NewModel(ctx, r.engine, r.config.Checkpoint.ClearDelay.Duration)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
