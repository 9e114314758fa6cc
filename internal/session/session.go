// Package session keeps logged-in users' backend tokens and wizard state on
// the server. Browsers only ever see the opaque session id.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is one login. Tokens are empty after a failed refresh.
type Session struct {
	ID           string
	Username     string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Tokens is the access/refresh pair a session is created with.
type Tokens struct {
	Access  string
	Refresh string
}

// Authenticated reports whether the session still has tokens to use.
func (s Session) Authenticated() bool {
	return s.AccessToken != "" || s.RefreshToken != ""
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions. Implementations are safe for concurrent use.
type Store interface {
	Create(ctx context.Context, username string, tokens Tokens) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	UpdateAccessToken(ctx context.Context, id, access string) error
	ClearTokens(ctx context.Context, id string) error
	SaveWizard(ctx context.Context, id string, state []byte) error
	// LoadWizard returns nil when no wizard was saved for the session.
	LoadWizard(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// New builds a session for username valid for ttl from now.
func New(username string, tokens Tokens, now time.Time, ttl time.Duration) Session {
	return Session{
		ID:           NewID(),
		Username:     username,
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}
