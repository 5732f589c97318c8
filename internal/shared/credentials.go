package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	// DefaultRedirectURI is the fixed loopback callback registered with the provider.
	DefaultRedirectURI = "http://127.0.0.1:8888/callback"

	envClientID    = "SPOTIFY_CLIENT_ID"
	envRedirectURI = "REDIRECT_URI"
)

// Credentials is the OAuth public client configuration.
//
// The client id of a PKCE public client is not a secret.
type Credentials struct {
	ClientID     string `json:"clientId"`
	RedirectURI  string `json:"redirectUri"`
	IsConfigured bool   `json:"isConfigured"`
}

// CredentialStore persists the OAuth client id in a .env file.
//
// Saved values are visible to subsequent [CredentialStore.Load] calls without a restart.
type CredentialStore struct {
	mu          sync.RWMutex
	path        string
	clientID    string
	redirectURI string
}

// NewCredentialStore reads the .env file at path.
//
// A missing file is not an error: the SPOTIFY_CLIENT_ID environment variable is used instead.
func NewCredentialStore(path string) (*CredentialStore, error) {
	s := &CredentialStore{path: path}

	values, err := godotenv.Read(path)
	switch {
	case err == nil:
		s.clientID = values[envClientID]
		s.redirectURI = values[envRedirectURI]
	case os.IsNotExist(err):
		s.clientID = os.Getenv(envClientID)
		s.redirectURI = os.Getenv(envRedirectURI)
	default:
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidConfig, path, err)
	}

	if s.redirectURI == "" {
		s.redirectURI = DefaultRedirectURI
	}

	return s, nil
}

// Path returns the location of the .env file.
func (s *CredentialStore) Path() string {
	return s.path
}

// Load returns the current credentials.
func (s *CredentialStore) Load() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Credentials{
		ClientID:     s.clientID,
		RedirectURI:  s.redirectURI,
		IsConfigured: strings.TrimSpace(s.clientID) != "",
	}
}

// Save validates and persists clientID. The redirect URI is reset to [DefaultRedirectURI].
func (s *CredentialStore) Save(clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	values := map[string]string{
		envClientID:    clientID,
		envRedirectURI: DefaultRedirectURI,
	}
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	s.clientID = clientID
	s.redirectURI = DefaultRedirectURI
	return nil
}
