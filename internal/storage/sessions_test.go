package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmgr/internal/session"
	"finmgr/internal/session/sessiontest"
)

func newTestStore(t *testing.T) *SQLiteSessionStore {
	t.Helper()
	store, err := NewSQLiteSessionStore(filepath.Join(t.TempDir(), "data", "sessions.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteSessionStore(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) session.Store {
		return newTestStore(t)
	})
}

func TestSQLiteSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	s, err := store.Create(ctx, "ana", session.Tokens{Access: "A"})
	require.NoError(t, err)
	other, err := store.Create(ctx, "bo", session.Tokens{Access: "B"})
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	require.NoError(t, store.UpdateAccessToken(ctx, other.ID, "B2"))

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, store.SaveWizard(ctx, s.ID, []byte("{}")), session.ErrNotFound)

	assert.Equal(t, 2, store.CleanExpired())
	assert.Zero(t, store.CleanExpired())
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")

	v1, err := RunMigrations(path)
	require.NoError(t, err)
	v2, err := RunMigrations(path)
	require.NoError(t, err)

	assert.Equal(t, uint(1), v1)
	assert.Equal(t, v1, v2)
}

func TestSQLiteSessionStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	first, err := NewSQLiteSessionStore(path, time.Hour)
	require.NoError(t, err)
	s, err := first.Create(ctx, "ana", session.Tokens{Access: "A", Refresh: "R"})
	require.NoError(t, err)
	require.NoError(t, first.SaveWizard(ctx, s.ID, []byte(`{"step":"options"}`)))
	require.NoError(t, first.Close())

	second, err := NewSQLiteSessionStore(path, time.Hour)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "R", got.RefreshToken)
	state, err := second.LoadWizard(ctx, s.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":"options"}`, string(state))
}
