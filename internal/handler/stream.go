package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/middleware"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/internal/service"
	"github.com/isdb-fas/fasdesk/pkg/logger"
	"github.com/isdb-fas/fasdesk/pkg/metrics"
)

const eventBuffer = 64

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	sessions  *service.SessionManager
	heartbeat time.Duration
	logger    *logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(sessions *service.SessionManager, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{
		sessions:  sessions,
		heartbeat: heartbeat,
		logger:    log,
		done:      make(chan struct{}),
	}
}

// Close ends every open stream. http.Server.Shutdown does not cancel request contexts,
// so the server registers Close with RegisterOnShutdown.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Stream handles GET /api/v1/stream
// It sends the current snapshot, then every store event of the session.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	store := h.sessions.Get(sessionID).Store

	events := make(chan model.Event, eventBuffer)
	overflow := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(ev model.Event) {
		select {
		case events <- ev:
		default:
			select {
			case overflow <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	sendSSEEvent(w, flusher, "snapshot", store.Snapshot())

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("session_id", sessionID))
			return

		case <-h.done:
			h.logger.Debug("SSE stream closed for shutdown", zap.String("session_id", sessionID))
			return

		case ev := <-events:
			if err := sendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				h.logger.Warn("failed to send event", zap.String("session_id", sessionID), zap.Error(err))
				return
			}

		case <-overflow:
			// the client fell behind; a fresh snapshot replaces the dropped events and
			// the buffered ones, which are older than it
			dropped := drainEvents(events)
			h.logger.Warn("SSE client lagging, resending snapshot",
				zap.String("session_id", sessionID),
				zap.Int("discarded", dropped),
			)
			sendSSEEvent(w, flusher, "snapshot", store.Snapshot())

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

// drainEvents empties events without blocking and returns how many it discarded.
func drainEvents(events <-chan model.Event) int {
	n := 0
	for {
		select {
		case <-events:
			n++
		default:
			return n
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
