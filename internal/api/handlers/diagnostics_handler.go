package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/application/services"
)

// ClientCounter reports connected realtime clients.
type ClientCounter interface {
	ClientCount() int
}

// DiagnosticsHandler serves liveness and client log endpoints
type DiagnosticsHandler struct {
	hospitals *services.HospitalService
	clients   ClientCounter
	now       func() time.Time
}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler(hospitals *services.HospitalService, clients ClientCounter) *DiagnosticsHandler {
	return &DiagnosticsHandler{hospitals: hospitals, clients: clients, now: time.Now}
}

// Health handles GET /api/health
func (h *DiagnosticsHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"hospitals":       h.hospitals.Count(r.Context()),
		"realtimeClients": h.clients.ClientCount(),
		"time":            h.now().UTC().Format(time.RFC3339),
	})
}

// Liveness handles GET /health
func (h *DiagnosticsHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// DebugLog handles POST /api/debug-log. The client payload is logged as is.
func (h *DiagnosticsHandler) DebugLog(w http.ResponseWriter, r *http.Request) {
	payload, err := readBody(w, r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}

	log.Info().RawJSON("payload", payload).Str("remote_addr", r.RemoteAddr).Msg("client log")
	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
