package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"finmgr/internal/core"
)

// InvoiceCreatedMessage announces an invoice the backend has just stored.
// It carries everything the ledger row needs, so the worker never calls the
// backend.
type InvoiceCreatedMessage struct {
	InvoiceID     int64           `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientName    string          `json:"client_name"`
	Date          string          `json:"date"`
	BillType      string          `json:"bill_type"`
	Total         decimal.Decimal `json:"total"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewInvoiceCreatedMessage builds the message from the created invoice and
// the payload it was created from. The backend's total wins when present.
func NewInvoiceCreatedMessage(inv core.Invoice, p core.InvoicePayload) *InvoiceCreatedMessage {
	total := inv.TotalAmount
	if total.IsZero() {
		total = p.TotalAmount
	}
	client := inv.ClientName
	if client == "" {
		client = p.ClientName
	}
	date := inv.Date
	if date == "" {
		date = p.Date
	}
	return &InvoiceCreatedMessage{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientName:    client,
		Date:          date,
		BillType:      p.Heading,
		Total:         total,
		Timestamp:     time.Now(),
	}
}

func (m *InvoiceCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceCreatedMessageFromJSON decodes and sanity checks a delivery body.
func InvoiceCreatedMessageFromJSON(data []byte) (*InvoiceCreatedMessage, error) {
	var msg InvoiceCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.InvoiceID <= 0 {
		return nil, errors.New("message has no invoice id")
	}
	return &msg, nil
}

// LedgerEntry converts the message into the row the ledger stores.
func (m *InvoiceCreatedMessage) LedgerEntry() core.LedgerEntry {
	return core.LedgerEntry{
		InvoiceID:     m.InvoiceID,
		InvoiceNumber: m.InvoiceNumber,
		ClientName:    m.ClientName,
		Date:          m.Date,
		BillType:      m.BillType,
		Total:         m.Total,
		CreatedAt:     m.Timestamp,
	}
}
