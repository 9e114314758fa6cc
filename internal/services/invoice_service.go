// Package services holds the work done around backend calls: publishing
// ledger messages and keeping per-session caches honest.
package services

import (
	"context"

	"finmgr/internal/amqp"
	"finmgr/internal/cache"
	"finmgr/internal/core"
	"finmgr/internal/log"
	"finmgr/internal/wizard"
)

// Publisher sends invoice.created messages. *amqp.Client implements it.
type Publisher interface {
	PublishInvoiceCreated(ctx context.Context, msg *amqp.InvoiceCreatedMessage) error
}

// SessionKeyPrefix starts every cache key that belongs to one session.
func SessionKeyPrefix(sessionID string) string {
	return sessionID + ":"
}

// ClientNamesKey is the cache key of a session's client name list.
func ClientNamesKey(sessionID string) string {
	return SessionKeyPrefix(sessionID) + "clients"
}

// InvoiceService runs the side effects of a successful invoice create.
type InvoiceService struct {
	publisher   Publisher
	clientNames cache.Cache[[]string]
	logger      *log.Logger
	events      *log.StructuredLogger
}

// NewInvoiceService accepts a nil publisher or cache; the matching side
// effect is then skipped.
func NewInvoiceService(publisher Publisher, clientNames cache.Cache[[]string], logger *log.Logger) *InvoiceService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentWizard)
	return &InvoiceService{
		publisher:   publisher,
		clientNames: clientNames,
		logger:      logger,
		events:      log.NewStructuredLogger(logger),
	}
}

// Creator wraps next so that every invoice it creates for sessionID is
// announced and invalidates the session's client names.
func (s *InvoiceService) Creator(sessionID string, next wizard.InvoiceCreator) wizard.InvoiceCreator {
	return &invoiceCreator{svc: s, sessionID: sessionID, next: next}
}

type invoiceCreator struct {
	svc       *InvoiceService
	sessionID string
	next      wizard.InvoiceCreator
}

func (c *invoiceCreator) CreateInvoice(ctx context.Context, p core.InvoicePayload) (core.Invoice, error) {
	inv, err := c.next.CreateInvoice(ctx, p)
	if err != nil {
		return inv, err
	}
	c.svc.created(ctx, c.sessionID, inv, p)
	return inv, nil
}

func (s *InvoiceService) created(ctx context.Context, sessionID string, inv core.Invoice, p core.InvoicePayload) {
	msg := amqp.NewInvoiceCreatedMessage(inv, p)
	s.events.LogInvoiceCreated(ctx, msg.InvoiceID, msg.InvoiceNumber, msg.ClientName, msg.Total.StringFixed(2))

	if s.clientNames != nil {
		s.clientNames.Delete(ClientNamesKey(sessionID))
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping ledger message")
		return
	}
	// The invoice already exists; a lost message only delays the ledger row.
	if err := s.publisher.PublishInvoiceCreated(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish invoice created message",
			log.FieldInvoiceID, msg.InvoiceID,
			log.FieldError, err)
	}
}
