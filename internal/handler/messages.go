package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/export"
	"github.com/isdb-fas/fasdesk/internal/middleware"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/internal/service"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	service *service.MessageService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// Send handles POST /api/v1/messages
// The answer arrives later on the event stream.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	var req model.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Send(ctx, sessionID, &req)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to send message", zap.String("session_id", sessionID), zap.Error(err))
			writeError(w, status, "failed to send message")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// List handles GET /api/v1/messages
// Supports ?render=html to include rendered markup
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	render := r.URL.Query().Get("render") == "html"

	writeJSON(w, http.StatusOK, h.service.List(ctx, middleware.GetSessionID(ctx), render))
}

// Clear handles DELETE /api/v1/messages
func (h *MessageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.service.Clear(r.Context(), middleware.GetSessionID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Download handles GET /api/v1/messages/{id}/download
// Supports ?format=text|markdown|json|pdf
func (h *MessageHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := chi.URLParam(r, "id")
	format := export.Format(r.URL.Query().Get("format"))

	file, err := h.service.Download(ctx, middleware.GetSessionID(ctx), messageID, format)
	if errors.Is(err, export.ErrPDFUnsupported) {
		writeError(w, http.StatusNotImplemented, "PDF download would be implemented with a PDF generation library")
		return
	}
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", file.MIMEType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Body)
}
