// Package adapters binds storage types to the interfaces other packages consume.
package adapters

import (
	"context"

	"finmgr/internal/apiclient"
	"finmgr/internal/session"
)

// SessionTokens exposes one session's tokens to the API client.
type SessionTokens struct {
	store session.Store
	id    string
}

var _ apiclient.TokenStore = (*SessionTokens)(nil)

func NewSessionTokens(store session.Store, id string) *SessionTokens {
	return &SessionTokens{store: store, id: id}
}

// Tokens reads the pair fresh from the store, so a refresh done by a
// concurrent request is picked up.
func (a *SessionTokens) Tokens(ctx context.Context) (string, string, error) {
	s, err := a.store.Get(ctx, a.id)
	if err != nil {
		return "", "", err
	}
	return s.AccessToken, s.RefreshToken, nil
}

func (a *SessionTokens) SetAccessToken(ctx context.Context, access string) error {
	return a.store.UpdateAccessToken(ctx, a.id, access)
}

func (a *SessionTokens) ClearTokens(ctx context.Context) error {
	return a.store.ClearTokens(ctx, a.id)
}
