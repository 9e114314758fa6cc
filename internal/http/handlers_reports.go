package http

import (
	"errors"
	"net/http"
	"slices"

	"finmgr/internal/apiclient"
	"finmgr/internal/log"
)

// handleWeeklyReport downloads last week's report. ?format= picks pdf, csv or
// xlsx and defaults to pdf.
func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pdf"
	}
	if !slices.Contains(apiclient.ReportFormats, format) {
		s.showError(w, r, http.StatusBadRequest, "Unsupported report format.", s.dashboardPage)
		return
	}

	d, err := s.backend(r).WeeklyReport(ctx, format)
	switch {
	case errors.Is(err, apiclient.ErrReportNotFound):
		s.fail(w, r, err, "Weekly report endpoint not found.", s.dashboardPage)
		return
	case errors.Is(err, apiclient.ErrReportFailed):
		s.fail(w, r, err, "Server error generating report.", s.dashboardPage)
		return
	case err != nil:
		s.fail(w, r, err, "Error downloading report. Please try again.", s.dashboardPage)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Weekly report downloaded",
		log.FieldOperation, log.OpDownload,
		"format", format,
		"bytes", len(d.Data))
	writeDownload(w, d.Filename, d.ContentType, d.Data, true)
}
