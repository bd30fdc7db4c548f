package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdb-fas/fasdesk/internal/attachment"
	"github.com/isdb-fas/fasdesk/internal/export"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/internal/service"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, attachment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, service.ErrEmptyUpload),
		errors.Is(err, model.ErrUnknownCategory),
		errors.Is(err, model.ErrUnknownStandard):
		return http.StatusBadRequest
	case errors.Is(err, export.ErrPDFUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
