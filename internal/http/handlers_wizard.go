package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"finmgr/internal/apiclient"
	"finmgr/internal/core"
	"finmgr/internal/log"
	"finmgr/internal/pdf"
	"finmgr/internal/services"
	"finmgr/internal/wizard"
)

const (
	wizardPath = "/financial-manager/invoices/new"

	// submitTimeout bounds a shared invoice submit.
	submitTimeout = 30 * time.Second
)

type wizardView struct {
	Step   wizard.Step
	Steps  []wizard.Step
	Draft  core.InvoiceDraft
	Totals core.Totals
	// Message is the wizard's own error: a failed gate or the raw body of a
	// rejected submit. Error covers everything around it.
	Message string
	Error   string

	ClientNames []string
	BillTypes   []string
	Signatures  []struct{ Value, Label string }
}

type submitResult struct {
	wiz *wizard.Wizard
	inv core.Invoice
	err error
}

func (s *Server) loadWizard(ctx context.Context, sessionID string) (*wizard.Wizard, error) {
	data, err := s.sessions.LoadWizard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	wiz, err := wizard.Restore(data)
	if err != nil {
		// A state that no longer decodes is dropped rather than blocking the user.
		log.FromContext(ctx).WarnContext(ctx, "Discarding unreadable wizard state",
			log.FieldComponent, log.ComponentWizard,
			log.FieldError, err)
		return wizard.New(), nil
	}
	return wiz, nil
}

func (s *Server) saveWizard(ctx context.Context, sessionID string, wiz *wizard.Wizard) error {
	data, err := wiz.MarshalState()
	if err != nil {
		return err
	}
	return s.sessions.SaveWizard(ctx, sessionID, data)
}

// clientNameList lists existing clients for the lookup, cached per session.
func (s *Server) clientNameList(ctx context.Context, api *apiclient.AuthenticatedClient) ([]string, error) {
	key := services.ClientNamesKey(currentSession(ctx).ID)
	if names, ok := s.clientNames.Get(key); ok {
		return names, nil
	}
	names, err := api.ClientNames(ctx)
	if err != nil {
		return nil, err
	}
	s.clientNames.Set(key, names)
	return names, nil
}

func (s *Server) newWizardView(wiz *wizard.Wizard) wizardView {
	return wizardView{
		Step:       wiz.Step(),
		Steps:      wizard.Steps,
		Draft:      wiz.Draft(),
		Totals:     wiz.Totals(),
		Message:    wiz.Message(),
		BillTypes:  core.BillTypes,
		Signatures: core.Signatures,
	}
}

// renderWizard draws the wizard: the panel alone for htmx, the page otherwise.
// A failed refresh while fetching client names ends the session.
func (s *Server) renderWizard(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard, errMsg string) {
	view := s.newWizardView(wiz)
	view.Error = errMsg
	if view.Step == wizard.StepClientInfo {
		names, err := s.clientNameList(r.Context(), s.backend(r))
		if errors.Is(err, apiclient.ErrRefreshFailed) {
			s.fail(w, r, err, "", nil)
			return
		}
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to fetch client names", log.FieldError, err)
			if view.Error == "" {
				view.Error = "Failed to fetch client names."
			}
		}
		view.ClientNames = names
	}

	if isHTMX(r) {
		s.renderPartial(w, r, NewHTMXResponse(), "wizard", view)
		return
	}
	s.render(w, r, "invoice_new.html", page{Title: "New Invoice", Nav: "invoices", Data: view})
}

func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, err := s.loadWizard(ctx, currentSession(ctx).ID)
	if err != nil {
		s.storeFailed(w, r, err)
		return
	}
	s.renderWizard(w, r, wiz, "")
}

// handleWizardAction binds the posted step fields to the draft, applies the
// action and stores the result.
func (s *Server) handleWizardAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(ctx)
	logger := log.FromContext(ctx).WithComponent(log.ComponentWizard)

	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	action, index := ParseAction(r.Form)

	if action == "submit" {
		s.submitWizard(w, r)
		return
	}

	wiz, err := s.loadWizard(ctx, sess.ID)
	if err != nil {
		s.storeFailed(w, r, err)
		return
	}

	var errMsg string
	if action != "cancel" {
		bindDraft(wiz, r.Form)
	}
	switch action {
	case "next":
		if err := wiz.Next(); err != nil {
			logger.DebugContext(ctx, "Wizard step rejected",
				log.FieldWizardStep, wiz.Step().String(),
				log.FieldError, err)
		}
	case "previous":
		wiz.Previous()
	case "add_item":
		wiz.AddItem()
	case "remove_item":
		if err := wiz.RemoveItem(index); err != nil {
			errMsg = removeItemMessage(err)
		}
	case "toggle_vat":
		wiz.SetVat(!wiz.Draft().IncludeVat)
	case "toggle_days":
		wiz.SetIncludeDays(!wiz.Draft().IncludeDays)
	case "toggle_agent_fee":
		wiz.SetIncludeAgentFee(!wiz.Draft().IncludeAgentFee)
	case "lookup_client":
		name := FormValue(r.Form, "existing_client")
		if name == "" {
			errMsg = "Please choose a client."
			break
		}
		details, err := s.backend(r).ClientDetails(ctx, name)
		if errors.Is(err, apiclient.ErrRefreshFailed) {
			s.fail(w, r, err, "", nil)
			return
		}
		if err != nil {
			logger.WarnContext(ctx, "Client lookup failed", log.FieldClientName, name, log.FieldError, err)
			errMsg = "Failed to fetch client details."
			break
		}
		wiz.LoadClient(details)
	case "cancel":
		wiz.Reset()
	case "", "save":
		// Field edits only.
	default:
		s.showError(w, r, http.StatusBadRequest, "Unknown action.", nil)
		return
	}

	if err := s.saveWizard(ctx, sess.ID, wiz); err != nil {
		s.storeFailed(w, r, err)
		return
	}
	if action == "cancel" && !isHTMX(r) {
		http.Redirect(w, r, invoicesPath, http.StatusSeeOther)
		return
	}
	s.renderWizard(w, r, wiz, errMsg)
}

// submitWizard creates the invoice. Submits for one session are collapsed so
// a double click cannot create the invoice twice. The shared submit is
// detached from the request that started it, so a client that disconnects
// does not fail the submits that joined it.
func (s *Server) submitWizard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := currentSession(ctx)
	api := s.backend(r)
	form := r.Form

	ch := s.submits.DoChan(sess.ID, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
		defer cancel()
		wiz, err := s.loadWizard(sctx, sess.ID)
		if err != nil {
			return submitResult{err: err}, nil
		}
		bindDraft(wiz, form)
		res := submitResult{wiz: wiz}
		res.inv, res.err = wiz.Submit(sctx, s.invoices.Creator(sess.ID, api))
		if err := s.saveWizard(sctx, sess.ID, wiz); err != nil && res.err == nil {
			log.FromContext(sctx).ErrorContext(sctx, "Failed to reset wizard after submit",
				log.FieldComponent, log.ComponentWizard,
				log.FieldError, err)
		}
		return res, nil
	})

	var res submitResult
	select {
	case <-ctx.Done():
		log.FromContext(ctx).WarnContext(ctx, "Client left before invoice submit finished",
			log.FieldComponent, log.ComponentWizard,
			log.FieldOperation, log.OpSubmit,
			log.FieldError, ctx.Err())
		return
	case out := <-ch:
		res = out.Val.(submitResult)
		if out.Shared {
			log.FromContext(ctx).InfoContext(ctx, "Duplicate submit joined in-flight request",
				log.FieldComponent, log.ComponentWizard,
				log.FieldOperation, log.OpSubmit)
		}
	}

	switch {
	case res.wiz == nil:
		s.storeFailed(w, r, res.err)
	case errors.Is(res.err, apiclient.ErrRefreshFailed):
		s.fail(w, r, res.err, "", nil)
	case errors.Is(res.err, wizard.ErrNotAtReview):
		s.renderWizard(w, r, res.wiz, "Review the invoice before submitting it.")
	case res.err != nil:
		log.FromContext(ctx).ErrorContext(ctx, "Invoice submit failed",
			log.FieldComponent, log.ComponentWizard,
			log.FieldOperation, log.OpSubmit,
			log.FieldError, res.err)
		s.renderWizard(w, r, res.wiz, "")
	default:
		target := invoiceCreatedURL(res.inv.InvoiceNumber)
		if isHTMX(r) {
			NewHTMXResponse().Redirect(target).Write(w)
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// handleWizardPreview renders the current draft as a PDF without creating it.
func (s *Server) handleWizardPreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wiz, err := s.loadWizard(ctx, currentSession(ctx).ID)
	if err != nil {
		s.storeFailed(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := pdf.RenderDraft(&buf, wiz.Draft(), s.now()); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Draft preview failed",
			log.FieldComponent, log.ComponentWizard,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		s.showError(w, r, http.StatusInternalServerError, "Failed to generate PDF.", nil)
		return
	}
	writeDownload(w, "invoice_preview.pdf", "application/pdf", buf.Bytes(), false)
}

func (s *Server) storeFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Session store failed",
		log.FieldComponent, log.ComponentSession,
		log.FieldErrorType, log.ErrorTypeDatabase,
		log.FieldError, err)
	s.showError(w, r, http.StatusInternalServerError, "Failed to save the invoice draft. Please try again.", nil)
}

func removeItemMessage(err error) string {
	if errors.Is(err, wizard.ErrLastItem) {
		return "An invoice needs at least one item."
	}
	return "That item no longer exists."
}

// bindDraft copies the posted fields of the current step into the draft.
// Fields absent from the form keep their stored value.
func bindDraft(wiz *wizard.Wizard, form url.Values) {
	wiz.Edit(func(d *core.InvoiceDraft) {
		set := func(dst *string, key string) {
			if form.Has(key) {
				*dst = FormValue(form, key)
			}
		}
		set(&d.ClientName, "client_name")
		set(&d.ClientLocation, "client_location")
		set(&d.ClientAddress, "client_address")
		set(&d.ClientTIN, "client_tin")
		set(&d.ClientEmail, "client_email")
		set(&d.Date, "date")
		set(&d.BillType, "bill_type")
		set(&d.Title, "title")
		set(&d.Signature, "signature")
		set(&d.VatRate, "vat_rate")
		set(&d.AgentFee, "agent_fee")
		if items, ok := ParseItems(form); ok {
			d.Items = items
		}
	})
}
