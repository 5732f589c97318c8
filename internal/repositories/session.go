package repositories

import (
	"context"

	"github.com/desertthunder/spm/internal/models"
)

// SessionRepository persists the session, its refresh token and the current user in separate slots.
type SessionRepository struct {
	store   *KVStore
	session *JSONSlot[models.Session]
	refresh *JSONSlot[string]
	user    *JSONSlot[models.User]
}

// NewSessionRepository creates a new [SessionRepository] on store.
func NewSessionRepository(store *KVStore) *SessionRepository {
	return &SessionRepository{
		store:   store,
		session: NewJSONSlot[models.Session](store, KeySession),
		refresh: NewJSONSlot[string](store, KeyRefreshToken),
		user:    NewJSONSlot[models.User](store, KeyUser),
	}
}

// Load returns the stored session with its refresh token attached, or nil.
//
// Expiry is not checked here.
func (r *SessionRepository) Load(ctx context.Context) (*models.Session, error) {
	session, err := r.session.Load(ctx)
	if err != nil || session == nil {
		return nil, err
	}

	refresh, err := r.refresh.Load(ctx)
	if err != nil {
		return nil, err
	}
	if refresh != nil {
		session.RefreshToken = *refresh
	}
	return session, nil
}

// Save stores session. The refresh token goes to its own slot and is only replaced when non-empty.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	if session == nil {
		return r.Clear(ctx)
	}

	stored := *session
	stored.RefreshToken = ""
	if err := r.session.Save(ctx, &stored); err != nil {
		return err
	}

	if session.RefreshToken != "" {
		return r.refresh.Save(ctx, &session.RefreshToken)
	}
	return nil
}

// Clear removes the session, refresh token and user.
func (r *SessionRepository) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, KeySession, KeyRefreshToken, KeyUser)
}

// LoadUser returns the stored user, or nil.
func (r *SessionRepository) LoadUser(ctx context.Context) (*models.User, error) {
	return r.user.Load(ctx)
}

// SaveUser stores user.
func (r *SessionRepository) SaveUser(ctx context.Context, user *models.User) error {
	return r.user.Save(ctx, user)
}
