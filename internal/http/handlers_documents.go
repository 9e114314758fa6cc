package http

import (
	"errors"
	"net/http"

	"finmgr/internal/core"
	"finmgr/internal/log"
)

const (
	documentsPath = "/financial-manager/documents"

	// maxUpload caps a multipart document upload.
	maxUpload = 10 << 20
)

var documentFileTypes = []string{"pdf", "image", "spreadsheet", "other"}

type documentsView struct {
	Documents []core.Document
	FileTypes []string
}

func (s *Server) documentsPage(w http.ResponseWriter, r *http.Request, errMsg string) {
	view := documentsView{FileTypes: documentFileTypes}
	docs, err := s.backend(r).ListDocuments(r.Context())
	if err != nil && errMsg == "" {
		s.fail(w, r, err, "Failed to fetch documents.", func(w http.ResponseWriter, r *http.Request, msg string) {
			s.render(w, r, "documents.html", page{Title: "Documents", Nav: "documents", Error: msg, Data: view})
		})
		return
	}
	view.Documents = docs
	s.render(w, r, "documents.html", page{Title: "Documents", Nav: "documents", Error: errMsg, Data: view})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	s.documentsPage(w, r, "")
}

func (s *Server) documentList(w http.ResponseWriter, r *http.Request, notice string) {
	if !isHTMX(r) {
		http.Redirect(w, r, documentsPath, http.StatusSeeOther)
		return
	}
	docs, err := s.backend(r).ListDocuments(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to fetch documents.", nil)
		return
	}
	resp := NewHTMXResponse().
		TriggerChanged("documents").
		TriggerFormReset().
		TriggerSuccessNotification(notice)
	s.renderPartial(w, r, resp, "document_list", documentsView{Documents: docs, FileTypes: documentFileTypes})
}

// handleUploadDocument forwards a multipart upload to the backend without
// buffering the file to disk.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.showError(w, r, http.StatusRequestEntityTooLarge, "The file is too large. The limit is 10 MB.", s.documentsPage)
			return
		}
		s.showError(w, r, http.StatusBadRequest, "Invalid request format.", s.documentsPage)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	doc := core.Document{
		Title:    FormValue(r.MultipartForm.Value, "title"),
		FileType: FormValue(r.MultipartForm.Value, "file_type"),
	}
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
	}
	if err != nil || doc.Validate() != nil {
		s.showError(w, r, http.StatusUnprocessableEntity, "Please provide a title and select a file.", s.documentsPage)
		return
	}

	created, err := s.backend(r).UploadDocument(ctx, doc, header.Filename, file)
	if err != nil {
		s.fail(w, r, err, "Failed to upload document.", s.documentsPage)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Document uploaded",
		log.FieldOperation, log.OpUpload,
		"document_id", created.ID,
		"bytes", header.Size)
	s.documentList(w, r, "Document uploaded")
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		s.showError(w, r, http.StatusBadRequest, "Invalid document.", s.documentsPage)
		return
	}
	if err := s.backend(r).DeleteDocument(r.Context(), id); err != nil {
		s.fail(w, r, err, "Failed to delete document.", s.documentsPage)
		return
	}
	s.documentList(w, r, "Document deleted")
}
