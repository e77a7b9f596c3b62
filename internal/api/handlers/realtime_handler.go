package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/application/services"
	"github.com/medqueue/backend/internal/infrastructure/observability"
	apperrors "github.com/medqueue/backend/pkg/errors"
)

const (
	eventSubscribe   = "subscribe-hospital"
	eventUnsubscribe = "unsubscribe-hospital"

	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = pongWait * 9 / 10
	maxClientFrame    = 4096
	defaultHeartbeat  = 30 * time.Second
	transportSocket   = "websocket"
	transportEventSrc = "sse"
)

// RealtimeHandler serves the WebSocket channel and the per-hospital SSE stream
type RealtimeHandler struct {
	hub       *services.RealtimeHub
	hospitals *services.HospitalService
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
	heartbeat time.Duration
}

// NewRealtimeHandler creates a realtime handler. allowedOrigins follows the
// CORS list; "*" accepts every origin.
func NewRealtimeHandler(hub *services.RealtimeHub, hospitals *services.HospitalService, metrics *observability.Metrics, allowedOrigins []string) *RealtimeHandler {
	return &RealtimeHandler{
		hub:       hub,
		hospitals: hospitals,
		metrics:   metrics,
		heartbeat: defaultHeartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// SetHeartbeat overrides the SSE heartbeat interval.
func (h *RealtimeHandler) SetHeartbeat(d time.Duration) {
	h.heartbeat = d
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeWebSocket handles GET /api/ws
func (h *RealtimeHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx := r.Context()
	sub := h.hub.Connect()
	observability.TrackRealtimeClient(ctx, h.metrics, transportSocket, 1)
	defer observability.TrackRealtimeClient(ctx, h.metrics, transportSocket, -1)

	done := make(chan struct{})
	go h.writePump(conn, sub, done)

	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("client_id", sub.ID).Msg("websocket read failed")
			}
			break
		}
		h.handleFrame(r, sub, frame)
	}

	h.hub.Disconnect(sub)
	<-done
}

func (h *RealtimeHandler) handleFrame(r *http.Request, sub *services.Subscriber, frame []byte) {
	var msg clientMessage
	if err := json.Unmarshal(frame, &msg); err != nil || msg.Event == "" {
		// a bare frame holding only the hospital id
		if id := strings.Trim(strings.TrimSpace(string(frame)), `"`); id != "" {
			h.subscribe(r, sub, id)
		}
		return
	}

	switch msg.Event {
	case eventSubscribe:
		if id := hospitalIDFrom(msg.Data); id != "" {
			h.subscribe(r, sub, id)
		}
	case eventUnsubscribe:
		h.hub.Unsubscribe(sub)
	default:
		log.Debug().Str("client_id", sub.ID).Str("event", msg.Event).Msg("ignoring unknown realtime event")
	}
}

func (h *RealtimeHandler) subscribe(r *http.Request, sub *services.Subscriber, hospitalID string) {
	if err := h.hub.Subscribe(r.Context(), sub, hospitalID); err != nil {
		log.Warn().Err(err).Str("client_id", sub.ID).Str("hospital_id", hospitalID).Msg("subscribe failed")
	}
}

// hospitalIDFrom accepts either a JSON string or {"hospitalId": "..."}.
func hospitalIDFrom(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		HospitalID string `json:"hospitalId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.HospitalID)
	}
	return ""
}

// writePump owns every write on conn. It ends when the subscriber stream is
// closed or a write fails, and closes the connection either way.
func (h *RealtimeHandler) writePump(conn *websocket.Conn, sub *services.Subscriber, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	for {
		select {
		case msg, ok := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("client_id", sub.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StreamHospital handles GET /api/stream/hospitals/{id}
func (h *RealtimeHandler) StreamHospital(w http.ResponseWriter, r *http.Request) {
	hospitalID := r.PathValue("id")
	if _, err := h.hospitals.Get(r.Context(), hospitalID); err != nil {
		if apperrors.IsNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Hospital not found")
			return
		}
		respondWithAppError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	sub := h.hub.Connect()
	defer h.hub.Disconnect(sub)
	observability.TrackRealtimeClient(ctx, h.metrics, transportEventSrc, 1)
	defer observability.TrackRealtimeClient(ctx, h.metrics, transportEventSrc, -1)

	writeEvent(w, "connected", map[string]interface{}{
		"hospitalId": hospitalID,
		"timestamp":  time.Now(),
	})
	flusher.Flush()

	if err := h.hub.Subscribe(ctx, sub, hospitalID); err != nil {
		log.Warn().Err(err).Str("hospital_id", hospitalID).Msg("stream subscribe failed")
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("hospital_id", hospitalID).Msg("client disconnected from hospital stream")
			return
		case <-ticker.C:
			writeEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if update, isUpdate := msg.Data.(services.HospitalUpdate); isUpdate && !sub.Interested(update.HospitalID) {
				continue
			}
			writeEvent(w, msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event data")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

// ClientCount returns the number of connected realtime clients.
func (h *RealtimeHandler) ClientCount() int {
	return h.hub.ClientCount()
}
