package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/store"
)

// ListSignalsResponse is the body for GET /inbox/signals.
type ListSignalsResponse struct {
	Signals []domain.Signal `json:"signals"`
	Total   int             `json:"total"`
}

// handleListSignals handles GET /inbox/signals.
// Query parameters: user_id (required), signal_type, workflow_id,
// unread_only, limit, offset.
func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_required", "user_id is required")
		return
	}

	filter := store.SignalFilter{
		Type:       domain.SignalType(q.Get("signal_type")),
		WorkflowID: q.Get("workflow_id"),
		UnreadOnly: q.Get("unread_only") == "true",
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	sigs, err := s.store.ListSignals(r.Context(), userID, filter)
	if err != nil {
		s.logger.Error("failed to list signals", "user_id", userID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "store_error", "Failed to list signals")
		return
	}
	writeJSON(w, http.StatusOK, ListSignalsResponse{Signals: sigs, Total: len(sigs)})
}

// handleUnreadCount handles GET /inbox/signals/unread-count.
func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_required", "user_id is required")
		return
	}
	count, err := s.store.UnreadCount(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to count unread signals", "user_id", userID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "store_error", "Failed to count unread signals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread_count": count})
}

// handleMarkRead handles POST /inbox/signals/{id}/read. Marking is scoped to
// the owning user: another user's signal id answers 404.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	signalID := r.PathValue("id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_required", "user_id is required")
		return
	}

	err := s.store.MarkRead(r.Context(), signalID, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", "Signal not found: "+signalID)
		return
	}
	if err != nil {
		s.logger.Error("failed to mark signal read", "signal_id", signalID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "store_error", "Failed to mark signal read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"signal_id": signalID, "status": "read"})
}

// handleMarkAllRead handles POST /inbox/signals/mark-all-read, optionally
// scoped to one workflow via the workflow_id query parameter.
func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_required", "user_id is required")
		return
	}

	updated, err := s.store.MarkAllRead(r.Context(), userID, r.URL.Query().Get("workflow_id"))
	if err != nil {
		s.logger.Error("failed to mark signals read", "user_id", userID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "store_error", "Failed to mark signals read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// sseHeartbeatInterval keeps idle connections alive through proxies.
const sseHeartbeatInterval = 30 * time.Second

// sseSink buffers pushed payloads for one connected stream. Push fails when
// the buffer is full, which unsubscribes the sink.
type sseSink struct {
	id     string
	ch     chan []byte
	closed sync.Once
}

func newSSESink() *sseSink {
	return &sseSink{id: uuid.NewString(), ch: make(chan []byte, 16)}
}

func (s *sseSink) ID() string { return s.id }

func (s *sseSink) Push(payload []byte) error {
	select {
	case s.ch <- payload:
		return nil
	default:
		return fmt.Errorf("sink %s buffer full", s.id)
	}
}

func (s *sseSink) Close() error {
	s.closed.Do(func() { close(s.ch) })
	return nil
}

// handleStream handles GET /inbox/stream: a server-sent-event stream of the
// caller's live signals.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_required", "user_id is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	sink := newSSESink()
	if err := s.registry.Subscribe(userID, sink); err != nil {
		s.logger.Error("stream subscribe failed", "user_id", userID, "error", err)
		return
	}
	defer s.registry.Unsubscribe(sink.id)

	if err := sendSSEEvent(w, flusher, "connected", map[string]string{"status": "connected"}); err != nil {
		return
	}
	s.logger.Debug("stream connected", "user_id", userID, "sink_id", sink.id)

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", map[string]any{}); err != nil {
				return
			}

		case payload, ok := <-sink.ch:
			if !ok {
				return
			}
			if err := sendSSERaw(w, flusher, "signal", payload); err != nil {
				s.logger.Debug("stream client disconnected", "sink_id", sink.id, "error", err)
				return
			}
		}
	}
}

// sendSSEEvent writes one JSON-encoded SSE event.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return sendSSERaw(w, flusher, eventType, payload)
}

// sendSSERaw writes one pre-encoded SSE event. A write error means the
// client went away.
func sendSSERaw(w http.ResponseWriter, flusher http.Flusher, eventType string, payload []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
