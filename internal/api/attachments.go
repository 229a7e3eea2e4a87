package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/starford/datalib/internal/apperr"
	"github.com/starford/datalib/internal/attachments"
	"github.com/starford/datalib/internal/dataservice"
)

// AttachmentHandler serves and accepts attachment files.
type AttachmentHandler struct {
	svc *dataservice.Service
}

// NewAttachmentHandler creates an AttachmentHandler.
func NewAttachmentHandler(svc *dataservice.Service) *AttachmentHandler {
	return &AttachmentHandler{svc: svc}
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	rc, err := h.svc.OpenAttachment(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, dataservice.ErrAttachmentsDisabled):
			http.Error(w, err.Error(), http.StatusNotImplemented)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = io.Copy(w, rc)
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
//
//	@Summary		Upload an attachment
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to upload"
//	@Success		201		{object}	AttachmentUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, attachments.MaxUploadBytes)

	if err := r.ParseMultipartForm(attachments.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	obj, err := h.svc.Upload(r.Context(), header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, "upload attachment", err)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}
