package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spm/internal/auth"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/server"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the PKCE login: it opens the consent page and waits for the authorization code.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.tokens == nil {
		return fmt.Errorf("%w: token manager not initialized", shared.ErrServiceUnavailable)
	}

	if r.tokens.HasSession(ctx) {
		if !cmd.Bool("force") {
			r.writePlain("✓ Already logged in. Use --force to log in again.\n")
			return nil
		}
		if err := r.tokens.Logout(ctx); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}

	session, err := r.login(ctx)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Login successful")
	r.writePlain("Session expires at %s\n", session.ExpiresAt.Local().Format(time.DateTime))

	user, err := r.cacheUser(ctx)
	if err != nil {
		r.logger.Warn("failed to fetch current user", "error", err)
		return nil
	}
	return r.writePlain("Logged in as %s\n", user.Name())
}

// login delivers one authorization code to the exchange.
//
// The receiver is started in-process when the callback port is free, and codes are pushed to the bridge and
// buffered in its mailbox. When another process already owns the port the code is pulled from it instead.
func (r *Runner) login(ctx context.Context) (*models.Session, error) {
	creds := r.creds.Load()
	if !creds.IsConfigured {
		return nil, fmt.Errorf("%w: run 'spm config set --client-id <id>' first", shared.ErrMissingCredentials)
	}

	cfg := r.config.Auth
	mailbox := auth.NewMailbox()
	receiver := server.NewReceiver(r.config.Server.Addr(), mailbox, r.creds, r.logger)

	var sources []auth.PollSource
	if err := receiver.Start(ctx); err != nil {
		r.logger.Warn("callback port in use, polling the running receiver", "addr", r.config.Server.Addr(), "error", err)
		sources = append(sources, auth.PollSource{
			Name:     "pull",
			Source:   auth.NewHTTPCodeSource(r.config.Server.BaseURL(), r.httpClient),
			Interval: cfg.PollInterval.Duration,
		})
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := receiver.Shutdown(shutdownCtx); err != nil {
				r.logger.Warn("error shutting down receiver", "error", err)
			}
		}()
		sources = append(sources, auth.PollSource{
			Name:     "buffer",
			Source:   mailbox,
			Interval: cfg.BufferInterval.Duration,
		})
	}

	bridge := auth.NewBridge(func() bool { return r.tokens.HasSession(ctx) }, r.logger, sources...)
	receiver.SetNotifier(bridge)
	defer receiver.SetNotifier(nil)

	verifier := auth.GenerateVerifier()
	authURL, err := r.tokens.AuthorizationURL(auth.DeriveChallenge(verifier))
	if err != nil {
		return nil, err
	}
	bridge.Begin(verifier)
	defer bridge.Cancel()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	timeout := cfg.LoginTimeout.Duration
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	grant, err := bridge.Wait(waitCtx)
	if err != nil {
		return nil, err
	}

	session, err := r.tokens.Exchange(ctx, grant.Code, grant.Verifier)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// cacheUser fetches the current user and stores it for playlist creation.
func (r *Runner) cacheUser(ctx context.Context) (*models.User, error) {
	if r.library == nil {
		return nil, fmt.Errorf("%w: library not initialized", shared.ErrServiceUnavailable)
	}
	user, err := r.library.Me(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.sessions.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return user, nil
}

// AuthStatus reports the credential, session and checkpoint state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if r.tokens == nil {
		return fmt.Errorf("%w: token manager not initialized", shared.ErrServiceUnavailable)
	}

	r.writePlainHeader("Authentication")

	creds := r.creds.Load()
	if creds.IsConfigured {
		r.writePlain("Client ID: ✓ configured (%s)\n", r.creds.Path())
	} else {
		r.writePlain("Client ID: ✗ not configured\n")
	}

	session, err := r.tokens.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		r.writePlain("Session: ✗ not logged in\n")
	} else {
		r.writePlain("Session: ✓ valid until %s\n", session.ExpiresAt.Local().Format(time.DateTime))
		user, err := r.sessions.LoadUser(ctx)
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		if user != nil {
			r.writePlain("User: %s\n", user.Name())
		}
	}

	return r.reportInterruption(ctx)
}

// reportInterruption prints a notice when an unfinished copy left a checkpoint behind.
func (r *Runner) reportInterruption(ctx context.Context) error {
	if r.engine == nil {
		return nil
	}
	cp, err := r.engine.PendingInterruption(ctx)
	if err != nil {
		return err
	}
	if cp == nil {
		return nil
	}

	r.writePlainln("⚠ An earlier copy did not finish")
	r.writePlain("Playlist: %s (%d of %d tracks written)\n", cp.DestinationName, cp.ItemsWritten, cp.TotalItems)
	r.writePlain("Run 'spm checkpoint accept' to keep it in history or 'spm checkpoint discard' to drop it.\n")
	return nil
}

// AuthLogout removes the session, the refresh token and the cached user.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.tokens == nil {
		return fmt.Errorf("%w: token manager not initialized", shared.ErrServiceUnavailable)
	}
	if err := r.tokens.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	r.logger.Info("logged out")
	return r.writePlain("✓ Logged out\n")
}

// Serve runs the callback receiver in the foreground so logins in other processes can pull their code.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if r.creds == nil {
		return fmt.Errorf("%w: credential store not initialized", shared.ErrServiceUnavailable)
	}

	receiver := server.NewReceiver(r.config.Server.Addr(), auth.NewMailbox(), r.creds, r.logger)
	if err := receiver.Start(ctx); err != nil {
		return err
	}

	r.writePlain("✓ Callback receiver listening on %s\n", r.config.Server.BaseURL())
	r.writePlain("Press Ctrl+C to stop.\n")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := receiver.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to stop receiver: %w", err)
	}
	return nil
}
