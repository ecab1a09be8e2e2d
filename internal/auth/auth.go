package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session token.
const CookieName = "dashboard_auth"

// DefaultSessionTTL is used when the verifier is built with a zero TTL.
const DefaultSessionTTL = 12 * time.Hour

var (
	// ErrInvalidPasscode is returned when the submitted passcode does not match.
	ErrInvalidPasscode = errors.New("invalid passcode")
	// ErrNotConfigured is returned when no passcode is configured on the server.
	ErrNotConfigured = errors.New("server configuration error")
	// ErrSessionNotFound is returned for unknown, expired or empty tokens.
	ErrSessionNotFound = errors.New("session not found")
)

// Session is an authenticated browser session.
type Session struct {
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions by token.
type Store interface {
	// Save stores or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Get returns the session for token or ErrSessionNotFound.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes the session. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}

// Verifier checks passcodes and issues sessions.
type Verifier struct {
	passcode string
	store    Store
	ttl      time.Duration
	now      func() time.Time
}

// NewVerifier creates a verifier for passcode. An empty passcode makes every
// Verify call fail with ErrNotConfigured.
func NewVerifier(passcode string, store Store, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Verifier{
		passcode: passcode,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the lifetime of issued sessions.
func (v *Verifier) TTL() time.Duration {
	return v.ttl
}

// Verify compares passcode with the configured one in constant time and
// returns a fresh session on success.
func (v *Verifier) Verify(ctx context.Context, passcode string) (*Session, error) {
	if v.passcode == "" {
		return nil, ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(passcode), []byte(v.passcode)) != 1 {
		return nil, ErrInvalidPasscode
	}

	now := v.now()
	s := &Session{
		Token:     uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(v.ttl),
	}
	if err := v.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("Verify: save session: %w", err)
	}
	return s, nil
}

// Authenticate returns the live session for token.
func (v *Verifier) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	s, err := v.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.Expired(v.now()) {
		_ = v.store.Delete(ctx, token)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Revoke ends the session for token.
func (v *Verifier) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := v.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("Revoke: %w", err)
	}
	return nil
}

type contextKey struct{}

// WithSession attaches the authenticated session to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session attached by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
