package handler

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/middleware"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

// EventHistory reads a session's published events.
type EventHistory interface {
	History(ctx context.Context, sessionID string, afterSequence uint64, limit int) ([]model.Event, uint64, error)
}

// EventHandler handles the event history endpoint.
type EventHandler struct {
	history EventHistory
	logger  *logger.Logger
}

// NewEventHandler creates a new event handler. history is nil when publishing is disabled.
func NewEventHandler(history EventHistory, log *logger.Logger) *EventHandler {
	return &EventHandler{history: history, logger: log}
}

// List handles GET /api/v1/events
// Supports ?after_sequence=N and ?limit=N (max 100)
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "event history is disabled")
		return
	}
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var afterSequence uint64
	if s := r.URL.Query().Get("after_sequence"); s != "" {
		if parsed, err := strconv.ParseUint(s, 10, 64); err == nil {
			afterSequence = parsed
		}
	}

	events, last, err := h.history.History(ctx, sessionID, afterSequence, limit)
	if err != nil {
		h.logger.Error("failed to read event history", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to read event history")
		return
	}
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, &model.EventHistoryResponse{Events: events, LastSequence: last})
}
