package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/attachment"
	"github.com/isdb-fas/fasdesk/internal/middleware"
	"github.com/isdb-fas/fasdesk/internal/service"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

// UploadHandler handles attachment upload endpoints.
type UploadHandler struct {
	service  *service.UploadService
	maxBytes int64
	logger   *logger.Logger
}

// NewUploadHandler creates a new upload handler. maxBytes bounds one upload.
func NewUploadHandler(svc *service.UploadService, maxBytes int64, log *logger.Logger) *UploadHandler {
	return &UploadHandler{
		service:  svc,
		maxBytes: maxBytes,
		logger:   log,
	}
}

// Upload handles POST /api/v1/uploads
// Expects a multipart form with a "file" part.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	att, err := h.service.Add(ctx, sessionID, header.Filename, mimeType, header.Size, file)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			writeError(w, status, "failed to store file")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, att)
}

// List handles GET /api/v1/uploads
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, h.service.List(ctx, middleware.GetSessionID(ctx)))
}

// Remove handles DELETE /api/v1/uploads/{id}
func (h *UploadHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Remove(ctx, middleware.GetSessionID(ctx), chi.URLParam(r, "id")); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/v1/uploads
func (h *UploadHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Clear(ctx, middleware.GetSessionID(ctx)); err != nil {
		h.logger.Warn("failed to revoke uploads", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// FileHandler serves blobs kept in process memory.
type FileHandler struct {
	store *attachment.MemoryStore
}

// NewFileHandler creates a new file handler.
func NewFileHandler(store *attachment.MemoryStore) *FileHandler {
	return &FileHandler{store: store}
}

// Serve handles GET /files/{id}
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	blob, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(blob.Data)
}
