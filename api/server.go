// Package api exposes the HTTP façade: workflow invocation, inbox access,
// and the live signal stream.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/curatorhq/curator/engine"
	"github.com/curatorhq/curator/signals"
	"github.com/curatorhq/curator/store"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// Orchestrator is the durable-engine surface the handlers call.
type Orchestrator interface {
	StartWorkflow(ctx context.Context, opts engine.StartOptions, workflow any, args ...any) (string, error)
	Signal(ctx context.Context, workflowID, name string, payload any) error
	Query(ctx context.Context, workflowID, queryType string, out any) error
	ListWorkflows(ctx context.Context, query string, pageSize, offset int) ([]engine.ExecutionSummary, error)
}

// Server holds the handler dependencies.
type Server struct {
	engine   Orchestrator
	store    store.Store
	registry *signals.Registry
	logger   *slog.Logger
}

// Options configures a Server.
type Options struct {
	Engine   Orchestrator
	Store    store.Store
	Registry *signals.Registry
	Logger   *slog.Logger
}

// NewServer wires the HTTP façade.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = signals.NewRegistry()
	}
	return &Server{
		engine:   opts.Engine,
		store:    opts.Store,
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the live-subscriber registry so the signal service can
// broadcast into connected streams.
func (s *Server) Registry() *signals.Registry {
	return s.registry
}

// Routes builds the route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /domains", s.handleStartDomain)
	mux.HandleFunc("GET /domains/owner/inbox", s.handleOwnerInbox)
	mux.HandleFunc("GET /domains/{workflow_id}/status", s.handleDomainStatus)
	mux.HandleFunc("POST /domains/{workflow_id}/owner-feedback", s.handleOwnerFeedback)

	mux.HandleFunc("POST /documents", s.handleStartContribution)
	mux.HandleFunc("POST /workflows/{workflow_id}/controller-decision", s.handleControllerDecision)

	mux.HandleFunc("GET /inbox/signals", s.handleListSignals)
	mux.HandleFunc("GET /inbox/signals/unread-count", s.handleUnreadCount)
	mux.HandleFunc("POST /inbox/signals/{id}/read", s.handleMarkRead)
	mux.HandleFunc("POST /inbox/signals/mark-all-read", s.handleMarkAllRead)
	mux.HandleFunc("GET /inbox/stream", s.handleStream)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes the error envelope.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// decodeBody decodes a size-limited JSON request body.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Failed to parse request body: "+err.Error())
		return false
	}
	return true
}
