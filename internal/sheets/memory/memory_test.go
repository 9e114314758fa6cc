package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"finmgr/internal/core"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendEntry(ctx, core.LedgerEntry{InvoiceID: 5, ClientName: "Acme", Total: decimal.NewFromInt(10)})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, err = s.AppendEntry(ctx, core.LedgerEntry{InvoiceID: 6, ClientName: "Globex"})
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	// Redelivery of invoice 5 keeps its row.
	ref, err = s.AppendEntry(ctx, core.LedgerEntry{InvoiceID: 5, ClientName: "Acme"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("duplicate should map to first row: ref=%q err=%v", ref, err)
	}

	entries, _ := s.ListEntries(ctx)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	if _, err := New().AppendEntry(context.Background(), core.LedgerEntry{InvoiceID: 1}); err != core.ErrMissingClient {
		t.Fatalf("expected ErrMissingClient, got %v", err)
	}
}
