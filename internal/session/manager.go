package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/information-sharing-networks/userportal/internal/apiclient"
)

// keys used in the store
const (
	TokenKey  = "token"
	UserIDKey = "userId"
)

// Session is the logged in user's credentials as held by the client
type Session struct {
	Token  string
	UserID string
}

// TokenStatus describes the token as far as the client can tell without calling the backend
type TokenStatus string

const (
	TokenValid   TokenStatus = "valid"
	TokenExpired TokenStatus = "expired"
	TokenOpaque  TokenStatus = "opaque" // not a JWT, treated as valid
)

// Authenticator is the subset of the api client used by the manager
type Authenticator interface {
	Login(ctx context.Context, creds apiclient.Credentials) (*apiclient.AuthResponse, error)
	Register(ctx context.Context, creds apiclient.Credentials) (*apiclient.User, error)
	Logout(ctx context.Context, token, id string) error
}

// Manager is the only code that reads and writes the session values in a Store
type Manager struct {
	api    Authenticator
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(api Authenticator, store Store, logger *slog.Logger) *Manager {
	return &Manager{
		api:    api,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithStore returns a manager sharing the api client and logger but backed by a different store.
// The ui server uses it to bind a manager to a browser's scoped store for the duration of a request.
func (m *Manager) WithStore(store Store) *Manager {
	return &Manager{
		api:    m.api,
		store:  store,
		logger: m.logger,
		now:    m.now,
	}
}

// Login authenticates with the backend and stores the returned token and user id
func (m *Manager) Login(ctx context.Context, creds apiclient.Credentials) (*Session, error) {
	res, err := m.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	s := &Session{Token: res.Token, UserID: res.ID.String()}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}

	m.logger.Debug("session started", slog.String("user_id", s.UserID))
	return s, nil
}

// Register creates the account and then logs in with the same credentials.
// The login call is only made once registration has returned successfully.
func (m *Manager) Register(ctx context.Context, creds apiclient.Credentials) (*Session, error) {
	user, err := m.api.Register(ctx, creds)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("user registered", slog.String("user_id", user.ID.String()))

	s, err := m.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("registration succeeded but login failed: %w", err)
	}
	return s, nil
}

// Current returns the stored session, or nil when either value is missing
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	token, ok, err := m.store.Get(ctx, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("could not read session token: %w", err)
	}
	if !ok || token == "" {
		return nil, nil
	}

	userID, ok, err := m.store.Get(ctx, UserIDKey)
	if err != nil {
		return nil, fmt.Errorf("could not read session user id: %w", err)
	}
	if !ok || userID == "" {
		return nil, nil
	}

	return &Session{Token: token, UserID: userID}, nil
}

// Logout invalidates the session on the backend and clears the store.
// The store is cleared even when the backend call fails; the backend error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	s, err := m.Current(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return m.Clear(ctx)
	}

	serverErr := m.api.Logout(ctx, s.Token, s.UserID)
	if serverErr != nil {
		m.logger.Warn("logout request failed, clearing local session anyway",
			slog.String("user_id", s.UserID),
			slog.String("error", serverErr.Error()),
		)
	}

	if err := m.Clear(ctx); err != nil {
		return errors.Join(serverErr, err)
	}
	return serverErr
}

// Clear removes the session values without contacting the backend
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("could not clear session token: %w", err)
	}
	if err := m.store.Delete(ctx, UserIDKey); err != nil {
		return fmt.Errorf("could not clear session user id: %w", err)
	}
	return nil
}

// TokenStatus inspects the token without verifying its signature.
// Only an expired JWT is reported as unusable.
func (m *Manager) TokenStatus(s *Session) TokenStatus {
	if s == nil {
		return TokenExpired
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return TokenOpaque
	}

	if claims.ExpiresAt != nil && !m.now().Before(claims.ExpiresAt.Time) {
		return TokenExpired
	}
	return TokenValid
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	if err := m.store.Set(ctx, TokenKey, s.Token); err != nil {
		return fmt.Errorf("could not store session token: %w", err)
	}
	if err := m.store.Set(ctx, UserIDKey, s.UserID); err != nil {
		return fmt.Errorf("could not store session user id: %w", err)
	}
	return nil
}
