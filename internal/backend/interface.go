package backend

import (
	"context"

	"finmgr/internal/cache"
	"finmgr/internal/session"
	"finmgr/internal/sheets"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult is a ready session store plus how to tear it down.
type BackendResult struct {
	Store session.Store
	// Cleaner is set for stores that need periodic expiry sweeps. Redis
	// expires keys on its own and leaves it nil.
	Cleaner cache.Cleaner
	Cleanup CleanupFunc
}

// Factory creates the session store and the ledger from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateLedger(ctx context.Context, config LedgerConfig) (sheets.Ledger, error)
}

// BackendType names a session store implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	RedisBackend  BackendType = "redis"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, RedisBackend:
		return true
	default:
		return false
	}
}

// LedgerType names where invoice ledger rows are written.
type LedgerType string

const (
	MemoryLedger LedgerType = "memory"
	SheetsLedger LedgerType = "sheets"
)

func (lt LedgerType) IsValid() bool {
	return lt == MemoryLedger || lt == SheetsLedger
}
