package main

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigShow prints the effective configuration and the credential status.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"config":      r.config,
			"credentials": r.credentials(),
		}, true)
	}

	r.writePlain("# %s\n", r.configPath)
	if err := toml.NewEncoder(r.output).Encode(r.config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	creds := r.credentials()
	r.writePlainln("[credentials.spotify]")
	if creds.IsConfigured {
		r.writePlain("client_id = %q\n", creds.ClientID)
	} else {
		r.writePlain("client_id = \"\" # not configured\n")
	}
	return r.writePlain("redirect_uri = %q\n", creds.RedirectURI)
}

func (r *Runner) credentials() shared.Credentials {
	if r.creds == nil {
		return shared.Credentials{RedirectURI: shared.DefaultRedirectURI}
	}
	return r.creds.Load()
}

// ConfigSet saves the OAuth client id to the credential store.
func (r *Runner) ConfigSet(ctx context.Context, cmd *cli.Command) error {
	if r.creds == nil {
		return fmt.Errorf("%w: credential store not initialized", shared.ErrServiceUnavailable)
	}

	clientID := cmd.String("client-id")
	if clientID == "" {
		return fmt.Errorf("%w: --client-id is required", shared.ErrMissingArgument)
	}

	if err := r.creds.Save(clientID); err != nil {
		return err
	}

	r.logger.Info("client id saved", "path", r.creds.Path())
	r.writePlain("✓ Client ID saved to %s\n", r.creds.Path())
	r.writePlain("Register %s as a redirect URI in the Spotify developer dashboard.\n", shared.DefaultRedirectURI)
	return r.writePlain("You can now use: spm auth login\n")
}
