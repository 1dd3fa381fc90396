// Package session is the single source of truth for who is acting. Login
// and logout drive the lifecycle of every dependent component through the
// SessionListener interface.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"rentloop/contract"
	"rentloop/domain"
	apperrors "rentloop/errors"
)

var validate = validator.New()

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Session holds the authenticated identity for at most one user at a time.
// It implements contract.CredentialSource and contract.IdentitySource.
type Session struct {
	mu        sync.RWMutex
	api       contract.AuthAPI
	log       *slog.Logger
	identity  *domain.Identity
	resuming  string
	listeners []contract.SessionListener
}

func New(api contract.AuthAPI, log *slog.Logger) *Session {
	return &Session{api: api, log: log}
}

// AddListener registers a dependent. Listeners added after login are not
// retroactively notified.
func (s *Session) AddListener(l contract.SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Login exchanges credentials for an identity and bearer token. On failure
// the prior session state is left untouched.
func (s *Session) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	if err := validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	identity, token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return domain.Identity{}, err
	}

	s.start(identity, token)
	return identity, nil
}

// Register creates an account and starts a session for it.
func (s *Session) Register(ctx context.Context, reg domain.Registration) (domain.Identity, error) {
	if err := validate.Struct(reg); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	identity, token, err := s.api.Register(ctx, reg)
	if err != nil {
		return domain.Identity{}, err
	}

	s.start(identity, token)
	return identity, nil
}

// Resume validates a stored token and restores the session it belongs to.
// An expired token fails locally without touching the network.
func (s *Session) Resume(ctx context.Context, token string) (domain.Identity, error) {
	if err := checkExpiry(token); err != nil {
		return domain.Identity{}, err
	}

	// The token is held provisionally so Me() can authenticate with it.
	s.mu.Lock()
	s.resuming = token
	s.mu.Unlock()

	identity, err := s.api.Me(ctx)

	s.mu.Lock()
	s.resuming = ""
	s.mu.Unlock()

	if err != nil {
		return domain.Identity{}, err
	}

	s.start(identity, token)
	return identity, nil
}

// checkExpiry inspects the token's exp claim without verifying the
// signature; verification is the server's job.
func checkExpiry(token string) error {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSessionExpired, err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSessionExpired, err)
	}
	if exp != nil && exp.Before(time.Now()) {
		return apperrors.ErrSessionExpired
	}
	return nil
}

// Logout clears the identity and credential. Listeners are notified
// synchronously before Logout returns so dependents tear down first.
// Safe to call when already logged out, including from the API client's
// unauthorized hook.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return
	}
	username := s.identity.Username
	s.identity = nil
	listeners := append([]contract.SessionListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.SessionEnded()
	}
	s.log.Info("Session ended", "username", username)
}

// Current returns the authenticated identity, if any.
func (s *Session) Current() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

// Credential implements contract.CredentialSource. It is read at request
// time by the API client and is never cached across a logout.
func (s *Session) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity != nil {
		return s.identity.Credential, true
	}
	if s.resuming != "" {
		return s.resuming, true
	}
	return "", false
}

// UpdateProfile mutates profile fields of the current identity. The id and
// credential are preserved regardless of what the server echoes back.
func (s *Session) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.Identity, error) {
	if _, ok := s.Current(); !ok {
		return domain.Identity{}, apperrors.ErrUnauthorized
	}
	if err := validate.Struct(update); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	updated, err := s.api.UpdateProfile(ctx, update)
	if err != nil {
		return domain.Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		// Logged out while the request was in flight; discard the result.
		return domain.Identity{}, apperrors.ErrIdentityChanged
	}
	updated.ID = s.identity.ID
	updated.Credential = s.identity.Credential
	*s.identity = updated
	return updated, nil
}

// start installs a fresh identity and notifies listeners. A still-active
// prior session is ended first so dependents never see two identities.
func (s *Session) start(identity domain.Identity, token string) {
	s.Logout()

	identity.Credential = token
	s.mu.Lock()
	s.identity = &identity
	listeners := append([]contract.SessionListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.SessionStarted(identity)
	}
	s.log.Info("Session started", "username", identity.Username)
}
