package sheets

import (
	"context"

	"finmgr/internal/core"
)

// Ports for the invoice ledger.
type (
	// LedgerWriter appends one row per invoice. Appending an invoice that is
	// already in the ledger returns the existing row reference.
	LedgerWriter interface {
		AppendEntry(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
	}

	// LedgerReader lists what has been written so far.
	LedgerReader interface {
		ListEntries(ctx context.Context) ([]core.LedgerEntry, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)
