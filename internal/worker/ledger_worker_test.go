package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmgr/internal/amqp"
	"finmgr/internal/core"
	"finmgr/internal/sheets/memory"
)

func message(id int64) *amqp.InvoiceCreatedMessage {
	return &amqp.InvoiceCreatedMessage{
		InvoiceID:     id,
		InvoiceNumber: "INV-1",
		ClientName:    "Acme",
		Date:          "2024-11-05",
		BillType:      core.BillTaxInvoice,
		Total:         decimal.RequireFromString("236.00"),
		Timestamp:     time.Date(2024, 11, 5, 9, 0, 0, 0, time.UTC),
	}
}

func TestLedgerWorker_AppendsOncePerInvoice(t *testing.T) {
	ctx := context.Background()
	ledger := memory.New()
	w := NewLedgerWorker(ledger, nil)

	require.NoError(t, w.HandleInvoiceCreated(ctx, message(1)))
	require.NoError(t, w.HandleInvoiceCreated(ctx, message(1)))
	require.NoError(t, w.HandleInvoiceCreated(ctx, message(2)))

	entries, err := ledger.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Acme", entries[0].ClientName)
	assert.True(t, entries[0].Total.Equal(decimal.NewFromInt(236)))
}

type failingLedger struct{}

func (failingLedger) AppendEntry(context.Context, core.LedgerEntry) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestLedgerWorker_PropagatesErrors(t *testing.T) {
	err := NewLedgerWorker(failingLedger{}, nil).HandleInvoiceCreated(context.Background(), message(1))
	assert.ErrorContains(t, err, "quota exceeded")
}
