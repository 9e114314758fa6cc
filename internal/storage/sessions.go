// Package storage is the SQLite session backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"finmgr/internal/session"
)

const (
	insertSession = `INSERT INTO sessions (id, username, access_token, refresh_token, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)`
	selectSession = `SELECT username, access_token, refresh_token, created_at, expires_at
FROM sessions WHERE id = ? AND expires_at > ?`
	updateAccess  = `UPDATE sessions SET access_token = ? WHERE id = ? AND expires_at > ?`
	clearTokens   = `UPDATE sessions SET access_token = '', refresh_token = '' WHERE id = ? AND expires_at > ?`
	updateWizard  = `UPDATE sessions SET wizard_state = ? WHERE id = ? AND expires_at > ?`
	selectWizard  = `SELECT wizard_state FROM sessions WHERE id = ? AND expires_at > ?`
	deleteSession = `DELETE FROM sessions WHERE id = ?`
	deleteExpired = `DELETE FROM sessions WHERE expires_at <= ?`
)

// SQLiteSessionStore implements session.Store on a local SQLite file.
type SQLiteSessionStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteSessionStore(dbPath string, ttl time.Duration) (*SQLiteSessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteSessionStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteSessionStore) Create(ctx context.Context, username string, tokens session.Tokens) (session.Session, error) {
	sess := session.New(username, tokens, s.now(), s.ttl)
	_, err := s.db.ExecContext(ctx, insertSession,
		sess.ID, sess.Username, sess.AccessToken, sess.RefreshToken,
		sess.CreatedAt.UnixMilli(), sess.ExpiresAt.UnixMilli())
	if err != nil {
		return session.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteSessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	sess := session.Session{ID: id}
	var created, expires int64
	err := s.db.QueryRowContext(ctx, selectSession, id, s.nowMilli()).
		Scan(&sess.Username, &sess.AccessToken, &sess.RefreshToken, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("select session: %w", err)
	}
	sess.CreatedAt = time.UnixMilli(created)
	sess.ExpiresAt = time.UnixMilli(expires)
	return sess, nil
}

// exec runs an update that must touch exactly the live session id.
func (s *SQLiteSessionStore) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *SQLiteSessionStore) UpdateAccessToken(ctx context.Context, id, access string) error {
	return s.exec(ctx, updateAccess, access, id, s.nowMilli())
}

func (s *SQLiteSessionStore) ClearTokens(ctx context.Context, id string) error {
	return s.exec(ctx, clearTokens, id, s.nowMilli())
}

func (s *SQLiteSessionStore) SaveWizard(ctx context.Context, id string, state []byte) error {
	return s.exec(ctx, updateWizard, state, id, s.nowMilli())
}

func (s *SQLiteSessionStore) LoadWizard(ctx context.Context, id string) ([]byte, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx, selectWizard, id, s.nowMilli()).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select wizard: %w", err)
	}
	return state, nil
}

func (s *SQLiteSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, deleteSession, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanExpired removes expired rows. Errors count as nothing removed.
func (s *SQLiteSessionStore) CleanExpired() int {
	res, err := s.db.Exec(deleteExpired, s.nowMilli())
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

func (s *SQLiteSessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSessionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteSessionStore) nowMilli() int64 {
	return s.now().UnixMilli()
}
