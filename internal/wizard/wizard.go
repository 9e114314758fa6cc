// Package wizard drives the multi-step invoice creation flow.
//
// A Wizard holds the draft, the current step and the last validation error.
// Forward navigation is gated by the validator of the current step; backward
// navigation never validates. A Wizard is not safe for concurrent use; the
// HTTP layer loads and stores one per session.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"finmgr/internal/core"
)

var (
	ErrLastItem    = errors.New("an invoice needs at least one item")
	ErrItemIndex   = errors.New("item index out of range")
	ErrNotAtReview = errors.New("invoice can only be submitted from the review step")
)

// InvoiceCreator persists a finished invoice.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, p core.InvoicePayload) (core.Invoice, error)
}

// BodyError is implemented by errors that carry a raw response body.
type BodyError interface {
	error
	ResponseBody() string
}

type Wizard struct {
	step  Step
	draft core.InvoiceDraft
	err   string
}

// New returns a wizard on the first step with an empty draft.
func New() *Wizard {
	return &Wizard{step: StepClientInfo, draft: core.NewInvoiceDraft()}
}

func (w *Wizard) Step() Step { return w.step }

// Message is the text of the last failed gate or submit, or "".
func (w *Wizard) Message() string { return w.err }

// Draft returns a copy of the current draft.
func (w *Wizard) Draft() core.InvoiceDraft { return w.draft.Clone() }

// Totals computes totals for the draft as it stands.
func (w *Wizard) Totals() core.Totals { return core.CalculateTotals(w.draft) }

// Edit applies fn to the draft. Item count is restored to one if fn empties it.
func (w *Wizard) Edit(fn func(d *core.InvoiceDraft)) {
	fn(&w.draft)
	if len(w.draft.Items) == 0 {
		w.draft.Items = []core.LineItem{{}}
	}
}

// Next validates the current step and advances when it passes.
func (w *Wizard) Next() error {
	if msg := Validate(w.step, w.draft); msg != "" {
		w.err = msg
		return &ValidationError{Step: w.step, Message: msg}
	}
	w.err = ""
	w.step = w.step.Next()
	return nil
}

// Previous steps back without validating and clears any error.
func (w *Wizard) Previous() {
	w.err = ""
	w.step = w.step.Prev()
}

// AddItem appends a blank line item.
func (w *Wizard) AddItem() {
	w.draft.Items = append(w.draft.Items, core.LineItem{})
}

// RemoveItem deletes the item at i. The last remaining item cannot be removed.
func (w *Wizard) RemoveItem(i int) error {
	if i < 0 || i >= len(w.draft.Items) {
		return fmt.Errorf("%w: %d", ErrItemIndex, i)
	}
	if len(w.draft.Items) == 1 {
		return ErrLastItem
	}
	w.draft.Items = append(w.draft.Items[:i], w.draft.Items[i+1:]...)
	return nil
}

// SetVat switches VAT on at the default rate or off at zero. Any rate typed
// by hand is overwritten.
func (w *Wizard) SetVat(enabled bool) {
	w.draft.IncludeVat = enabled
	if enabled {
		w.draft.VatRate = core.DefaultVatRate
	} else {
		w.draft.VatRate = "0"
	}
}

// SetIncludeDays flips the flag only; per-item days are kept.
func (w *Wizard) SetIncludeDays(enabled bool) { w.draft.IncludeDays = enabled }

// SetIncludeAgentFee flips the flag only; the fee value is kept.
func (w *Wizard) SetIncludeAgentFee(enabled bool) { w.draft.IncludeAgentFee = enabled }

// LoadClient pre-fills the client block from an existing client.
func (w *Wizard) LoadClient(c core.ClientDetails) {
	w.draft.SetClient(c)
}

// Reset returns the wizard to its initial state.
func (w *Wizard) Reset() {
	*w = *New()
}

// Submit sends the invoice from the review step. On success the wizard is
// reset; on failure the raw error body becomes the wizard error and the
// draft is kept.
func (w *Wizard) Submit(ctx context.Context, creator InvoiceCreator) (core.Invoice, error) {
	if w.step != StepReview {
		return core.Invoice{}, ErrNotAtReview
	}
	inv, err := creator.CreateInvoice(ctx, w.draft.Payload())
	if err != nil {
		var be BodyError
		if errors.As(err, &be) && be.ResponseBody() != "" {
			w.err = be.ResponseBody()
		} else {
			w.err = err.Error()
		}
		return core.Invoice{}, err
	}
	w.Reset()
	return inv, nil
}

type state struct {
	Step  Step              `json:"step"`
	Draft core.InvoiceDraft `json:"draft"`
	Error string            `json:"error,omitempty"`
}

// MarshalState encodes the wizard for a session store.
func (w *Wizard) MarshalState() ([]byte, error) {
	return json.Marshal(state{Step: w.step, Draft: w.draft, Error: w.err})
}

// Restore decodes a wizard saved with MarshalState. Empty input yields a new wizard.
func Restore(data []byte) (*Wizard, error) {
	if len(data) == 0 {
		return New(), nil
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode wizard state: %w", err)
	}
	step, err := ParseStep(string(st.Step))
	if err != nil {
		return nil, err
	}
	if len(st.Draft.Items) == 0 {
		st.Draft.Items = []core.LineItem{{}}
	}
	return &Wizard{step: step, draft: st.Draft, err: st.Error}, nil
}
