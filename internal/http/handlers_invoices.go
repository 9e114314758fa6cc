package http

import (
	"net/http"
	"net/url"
	"strconv"

	"finmgr/internal/core"
	"finmgr/internal/log"
)

const invoicesPath = "/financial-manager/invoices"

type invoicesView struct {
	Invoices []core.Invoice
}

func (s *Server) invoicesPage(w http.ResponseWriter, r *http.Request, errMsg string) {
	var notice string
	if n := sanitizeInput(r.URL.Query().Get("created")); n != "" {
		notice = "Invoice " + n + " created."
	}
	invoices, err := s.backend(r).ListInvoices(r.Context())
	if err != nil && errMsg == "" {
		s.fail(w, r, err, "Failed to fetch invoices.", func(w http.ResponseWriter, r *http.Request, msg string) {
			s.render(w, r, "invoices.html", page{Title: "Invoices", Nav: "invoices", Error: msg, Data: invoicesView{}})
		})
		return
	}
	s.render(w, r, "invoices.html", page{
		Title:  "Invoices",
		Nav:    "invoices",
		Error:  errMsg,
		Notice: notice,
		Data:   invoicesView{Invoices: invoices},
	})
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	s.invoicesPage(w, r, "")
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		s.showError(w, r, http.StatusBadRequest, "Invalid invoice.", s.invoicesPage)
		return
	}
	if err := s.backend(r).DeleteInvoice(r.Context(), id); err != nil {
		s.fail(w, r, err, "Failed to delete invoice.", s.invoicesPage)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Invoice deleted",
		log.FieldInvoiceID, id,
		log.FieldOperation, log.OpDelete)

	// The row removes itself; an empty body swaps it out.
	s.done(w, r, invoicesPath, NewHTMXResponse().
		TriggerChanged("invoices").
		TriggerSuccessNotification("Invoice deleted"))
}

// handleInvoicePDF streams the backend-rendered PDF as invoice_{id}.pdf.
func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		s.showError(w, r, http.StatusBadRequest, "Invalid invoice.", s.invoicesPage)
		return
	}
	d, err := s.backend(r).DownloadInvoicePDF(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Failed to generate PDF.", s.invoicesPage)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Invoice PDF downloaded",
		log.FieldInvoiceID, id,
		log.FieldOperation, log.OpDownload,
		"bytes", len(d.Data))
	writeDownload(w, d.Filename, d.ContentType, d.Data, true)
}

func writeDownload(w http.ResponseWriter, filename, contentType string, data []byte, attachment bool) {
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition+`; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func invoiceCreatedURL(number string) string {
	if number == "" {
		return invoicesPath
	}
	return invoicesPath + "?" + url.Values{"created": {number}}.Encode()
}
