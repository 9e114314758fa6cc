package memory

import (
	"context"
	"fmt"
	"sync"

	"finmgr/internal/core"
	ports "finmgr/internal/sheets"
)

// Store is an in-process ledger for development and tests.
type Store struct {
	mu    sync.Mutex
	items []core.LedgerEntry
	index map[int64]int // invoice id -> row
}

var _ ports.Ledger = (*Store)(nil)

func New() *Store {
	return &Store{index: make(map[int64]int)}
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (s *Store) AppendEntry(_ context.Context, e core.LedgerEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.index[e.InvoiceID]; ok {
		return fmt.Sprintf("mem:%d", row), nil
	}
	s.items = append(s.items, e)
	s.index[e.InvoiceID] = len(s.items)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *Store) ListEntries(_ context.Context) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerEntry(nil), s.items...), nil
}
