package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	session Session
	wizard  []byte
}

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, username string, tokens Tokens) (Session, error) {
	s := New(username, tokens, m.now(), m.ttl)
	m.mu.Lock()
	m.entries[s.ID] = &memoryEntry{session: s}
	m.mu.Unlock()
	return s, nil
}

// live returns the entry for id if it exists and has not expired.
// Callers hold the lock.
func (m *MemoryStore) live(id string) (*memoryEntry, bool) {
	e, ok := m.entries[id]
	if !ok || e.session.Expired(m.now()) {
		return nil, false
	}
	return e, true
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.live(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return e.session, nil
}

func (m *MemoryStore) UpdateAccessToken(_ context.Context, id, access string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(id)
	if !ok {
		return ErrNotFound
	}
	e.session.AccessToken = access
	return nil
}

func (m *MemoryStore) ClearTokens(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(id)
	if !ok {
		return ErrNotFound
	}
	e.session.AccessToken = ""
	e.session.RefreshToken = ""
	return nil
}

func (m *MemoryStore) SaveWizard(_ context.Context, id string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(id)
	if !ok {
		return ErrNotFound
	}
	e.wizard = append([]byte(nil), state...)
	return nil
}

func (m *MemoryStore) LoadWizard(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	if e.wizard == nil {
		return nil, nil
	}
	return append([]byte(nil), e.wizard...), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// CleanExpired drops expired sessions and returns how many were removed.
func (m *MemoryStore) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, e := range m.entries {
		if e.session.Expired(now) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
