package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

// defaultExpiresIn applies when the provider omits expires_in.
const defaultExpiresIn = time.Hour

// CredentialSource supplies the OAuth client configuration.
type CredentialSource interface {
	Load() shared.Credentials
}

// SessionStore persists the session.
type SessionStore interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Clear(ctx context.Context) error
}

// AuthorizationError is a rejection reported by the provider, either at the token endpoint or on the consent redirect.
type AuthorizationError struct {
	Code        string // OAuth error code, e.g. "invalid_grant" or "access_denied"
	Description string
	Status      int // HTTP status of the token response; 0 for consent redirects
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// Unwrap returns [shared.ErrAuthFailed].
func (e *AuthorizationError) Unwrap() error {
	return shared.ErrAuthFailed
}

// TokenManager exchanges authorization codes for sessions and decides whether a stored session is usable.
type TokenManager struct {
	creds      CredentialSource
	sessions   SessionStore
	endpoint   oauth2.Endpoint
	httpClient *http.Client
	now        func() time.Time
	logger     *log.Logger
}

// NewTokenManager creates a [TokenManager] against the Spotify accounts service.
func NewTokenManager(creds CredentialSource, sessions SessionStore, logger *log.Logger) *TokenManager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TokenManager{
		creds:    creds,
		sessions: sessions,
		endpoint: Endpoint,
		now:      time.Now,
		logger:   shared.WithLogger(logger, "component", "token"),
	}
}

// SetEndpoint overrides the provider endpoints.
func (m *TokenManager) SetEndpoint(endpoint oauth2.Endpoint) {
	m.endpoint = endpoint
}

// SetHTTPClient sets the client used for the token request.
func (m *TokenManager) SetHTTPClient(client *http.Client) {
	m.httpClient = client
}

// SetClock replaces the time source used for expiry.
func (m *TokenManager) SetClock(now func() time.Time) {
	m.now = now
}

// AuthorizationURL returns the authorization URL for challenge using the stored credentials.
func (m *TokenManager) AuthorizationURL(challenge string) (string, error) {
	creds := m.creds.Load()
	if !creds.IsConfigured {
		return "", shared.ErrMissingCredentials
	}
	return buildAuthorizationURL(m.endpoint, creds.ClientID, creds.RedirectURI, Scopes, challenge), nil
}

// Exchange trades code and verifier for a session and persists it.
//
// The expiry is computed from the provider's relative expires_in at the time of the response.
func (m *TokenManager) Exchange(ctx context.Context, code, verifier string) (*models.Session, error) {
	creds := m.creds.Load()
	if !creds.IsConfigured {
		return nil, shared.ErrMissingCredentials
	}
	if code == "" || verifier == "" {
		return nil, fmt.Errorf("%w: code and verifier are required", shared.ErrInvalidInput)
	}

	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}

	cfg := oauthConfig(m.endpoint, creds.ClientID, creds.RedirectURI, Scopes)
	m.logger.Debug("exchanging authorization code", "code_len", len(code))

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			authErr := &AuthorizationError{Code: re.ErrorCode, Description: re.ErrorDescription}
			if re.Response != nil {
				authErr.Status = re.Response.StatusCode
			}
			if authErr.Code == "" {
				authErr.Code = "token_request_failed"
			}
			return nil, authErr
		}
		return nil, fmt.Errorf("%w: token exchange: %v", shared.ErrAPIRequest, err)
	}

	expiresIn := time.Duration(token.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	session := &models.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    m.now().Add(expiresIn),
	}

	if err := m.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	m.logger.Info("session issued", "expires_at", session.ExpiresAt.Format(time.RFC3339))
	return session, nil
}

// LoadSession returns the stored session, or nil when there is none or it has expired.
func (m *TokenManager) LoadSession(ctx context.Context) (*models.Session, error) {
	session, err := m.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !session.Valid(m.now()) {
		return nil, nil
	}
	return session, nil
}

// HasSession reports whether a usable session exists.
func (m *TokenManager) HasSession(ctx context.Context) bool {
	session, err := m.LoadSession(ctx)
	return err == nil && session != nil
}

// Logout removes the stored session.
func (m *TokenManager) Logout(ctx context.Context) error {
	return m.sessions.Clear(ctx)
}
