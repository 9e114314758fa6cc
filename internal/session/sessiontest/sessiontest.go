// Package sessiontest checks that a session.Store behaves like the others.
package sessiontest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmgr/internal/session"
)

// Run exercises store against the behaviour every backend must share.
// newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) session.Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, "ana", session.Tokens{Access: "A", Refresh: "R"})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.True(t, created.ExpiresAt.After(created.CreatedAt))

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana", got.Username)
		assert.Equal(t, "A", got.AccessToken)
		assert.Equal(t, "R", got.RefreshToken)
		assert.True(t, got.Authenticated())
		assert.WithinDuration(t, created.ExpiresAt, got.ExpiresAt, 0)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrNotFound)
		assert.ErrorIs(t, s.UpdateAccessToken(ctx, "missing", "x"), session.ErrNotFound)
		assert.ErrorIs(t, s.ClearTokens(ctx, "missing"), session.ErrNotFound)
		assert.ErrorIs(t, s.SaveWizard(ctx, "missing", []byte("{}")), session.ErrNotFound)
		_, err = s.LoadWizard(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("update access token keeps refresh token", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, "ana", session.Tokens{Access: "A", Refresh: "R"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateAccessToken(ctx, created.ID, "A2"))

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "A2", got.AccessToken)
		assert.Equal(t, "R", got.RefreshToken)
	})

	t.Run("clear tokens keeps the session", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, "ana", session.Tokens{Access: "A", Refresh: "R"})
		require.NoError(t, err)

		require.NoError(t, s.ClearTokens(ctx, created.ID))

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, got.Authenticated())
		assert.Equal(t, "ana", got.Username)
	})

	t.Run("wizard state round trip", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, "ana", session.Tokens{Access: "A"})
		require.NoError(t, err)

		data, err := s.LoadWizard(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, data)

		require.NoError(t, s.SaveWizard(ctx, created.ID, []byte(`{"step":"items"}`)))
		require.NoError(t, s.SaveWizard(ctx, created.ID, []byte(`{"step":"review"}`)))

		data, err = s.LoadWizard(ctx, created.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"step":"review"}`, string(data))
	})

	t.Run("delete removes session and wizard", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, "ana", session.Tokens{Access: "A"})
		require.NoError(t, err)
		require.NoError(t, s.SaveWizard(ctx, created.ID, []byte(`{}`)))

		require.NoError(t, s.Delete(ctx, created.ID))
		require.NoError(t, s.Delete(ctx, created.ID), "delete is idempotent")

		_, err = s.Get(ctx, created.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = s.LoadWizard(ctx, created.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("ids are unique", func(t *testing.T) {
		s := newStore(t)
		seen := map[string]bool{}
		for range 20 {
			created, err := s.Create(ctx, "ana", session.Tokens{Access: "A"})
			require.NoError(t, err)
			assert.False(t, seen[created.ID])
			seen[created.ID] = true
		}
	})

	t.Run("concurrent token updates", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, "ana", session.Tokens{Access: "A", Refresh: "R"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.UpdateAccessToken(ctx, created.ID, "A2"))
				_, err := s.Get(ctx, created.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "A2", got.AccessToken)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}
