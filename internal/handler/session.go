package handler

import (
	"net/http"

	"github.com/isdb-fas/fasdesk/internal/middleware"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/internal/service"
)

// SessionHandler handles session state and preference endpoints.
type SessionHandler struct {
	conversations *service.ConversationService
	sessions      *service.SessionManager
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(convSvc *service.ConversationService, sessions *service.SessionManager) *SessionHandler {
	return &SessionHandler{
		conversations: convSvc,
		sessions:      sessions,
	}
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, h.conversations.Snapshot(ctx, middleware.GetSessionID(ctx)))
}

// SetCategory handles PUT /api/v1/session
func (h *SessionHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SetCategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snap, err := h.conversations.SetCategory(ctx, middleware.GetSessionID(ctx), req.Category)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// GetPreferences handles GET /api/v1/preferences
func (h *SessionHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := h.sessions.Get(middleware.GetSessionID(r.Context())).Preferences()
	writeJSON(w, http.StatusOK, model.PreferencesResponse{Preferences: prefs, Dir: prefs.Dir()})
}

// SetPreferences handles PUT /api/v1/preferences
func (h *SessionHandler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(middleware.GetSessionID(r.Context()))

	prefs := sess.Preferences()
	if !decodeJSON(w, r, &prefs) {
		return
	}
	if err := sess.SetPreferences(prefs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.PreferencesResponse{Preferences: prefs, Dir: prefs.Dir()})
}
