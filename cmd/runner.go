package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/auth"
	"github.com/desertthunder/spm/internal/repositories"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/desertthunder/spm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	creds       *shared.CredentialStore
	db          *sql.DB
	sessions    *repositories.SessionRepository
	checkpoints *repositories.CheckpointRepository
	history     *repositories.HistoryRepository
	tokens      *auth.TokenManager
	library     services.Library
	engine      *tasks.PlaylistEngine
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Stores and the engine are only built when DB is set.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Credentials *shared.CredentialStore
	DB          *sql.DB
	Library     services.Library
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{}
	r.configure(opts)
	return r
}

// configure (re)builds the runner's dependency graph from opts.
func (r *Runner) configure(opts RunnerOpts) {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.HTTP.Timeout.Duration}
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	*r = Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		creds:       opts.Credentials,
		db:          opts.DB,
		library:     opts.Library,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}

	if opts.DB == nil {
		return
	}

	store := repositories.NewKVStore(opts.DB)
	r.sessions = repositories.NewSessionRepository(store)
	r.checkpoints = repositories.NewCheckpointRepository(store, opts.Config.Checkpoint.StaleAfter.Duration)
	r.history = repositories.NewHistoryRepository(store)

	if opts.Credentials != nil {
		r.tokens = auth.NewTokenManager(opts.Credentials, r.sessions, opts.Logger)
		r.tokens.SetHTTPClient(opts.HTTPClient)
	}

	if r.library == nil && r.tokens != nil {
		r.library = services.NewSpotifyClient(r.tokens, services.ClientOptions{
			Timeout:   opts.Config.HTTP.Timeout.Duration,
			RateLimit: opts.Config.HTTP.RateLimit,
		}, opts.Logger)
	}

	if r.library != nil {
		r.engine = tasks.NewPlaylistEngine(r.library, r.checkpoints, r.history, r.sessions, opts.Logger)
	}
}

// SetLogger replaces the logger used by the runner. The engine keeps the logger it was built with.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, configCommand, authCommand, playlistsCommand, tracksCommand,
		copyCommand, checkpointCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireEngine fails when the store or the library could not be initialized.
func (r *Runner) requireEngine() error {
	if r.engine == nil {
		if r.creds != nil && !r.creds.Load().IsConfigured {
			return fmt.Errorf("%w: run 'spm config set --client-id <id>' first", shared.ErrMissingCredentials)
		}
		return fmt.Errorf("%w: playlist engine not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
