// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/middleware"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/internal/service"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	var req model.CreateConversationRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateOptionalContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Create(ctx, sessionID, &req)
	if err != nil {
		h.fail(w, r, "failed to create conversation", err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /api/v1/conversations
// Supports ?category= to list a single category
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category := model.ScenarioCategory(r.URL.Query().Get("category"))

	resp, err := h.service.List(ctx, middleware.GetSessionID(ctx), category)
	if err != nil {
		h.fail(w, r, "failed to list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Load handles POST /api/v1/conversations/load
// A missing conversation responds 404 with the reset snapshot.
func (h *ConversationHandler) Load(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateConversationRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.service.Load(ctx, middleware.GetSessionID(ctx), &req)
	if err != nil {
		writeJSON(w, errorStatus(err), snap)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Rename handles POST /api/v1/conversations/rename
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.RenameConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateRenameRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Rename(ctx, middleware.GetSessionID(ctx), &req); err != nil {
		h.fail(w, r, "failed to rename conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/conversations
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateConversationRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(ctx, middleware.GetSessionID(ctx), &req); err != nil {
		h.fail(w, r, "failed to delete conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg,
			zap.String("session_id", middleware.GetSessionID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}
