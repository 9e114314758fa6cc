// Package worker turns invoice.created messages into ledger rows.
package worker

import (
	"context"
	"fmt"

	"finmgr/internal/amqp"
	"finmgr/internal/log"
	"finmgr/internal/sheets"
)

// LedgerWorker appends one ledger row per created invoice.
type LedgerWorker struct {
	ledger sheets.LedgerWriter
	logger *log.Logger
}

func NewLedgerWorker(ledger sheets.LedgerWriter, logger *log.Logger) *LedgerWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerWorker{ledger: ledger, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleInvoiceCreated is an amqp.Handler. Errors requeue the message; the
// ledger skips invoices it already has, so redelivery is harmless.
func (w *LedgerWorker) HandleInvoiceCreated(ctx context.Context, msg *amqp.InvoiceCreatedMessage) error {
	w.logger.InfoContext(ctx, "Processing invoice created message",
		log.FieldInvoiceID, msg.InvoiceID,
		log.FieldInvoiceNumber, msg.InvoiceNumber)

	ref, err := w.ledger.AppendEntry(ctx, msg.LedgerEntry())
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	w.logger.InfoContext(ctx, "Invoice recorded in ledger",
		log.FieldInvoiceID, msg.InvoiceID,
		log.FieldClientName, msg.ClientName,
		log.FieldTotal, msg.Total.StringFixed(2),
		"ledger_ref", ref)
	return nil
}
