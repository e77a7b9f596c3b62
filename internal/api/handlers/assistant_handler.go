package handlers

import (
	"net/http"
	"strings"

	"github.com/medqueue/backend/internal/application/services"
	"github.com/medqueue/backend/internal/domain/providers"
	"github.com/medqueue/backend/internal/infrastructure/observability"
)

// AssistantHandler serves the chat and prediction proxies
type AssistantHandler struct {
	service *services.AssistantService
	metrics *observability.Metrics
}

// NewAssistantHandler creates a new assistant handler. metrics may be nil.
func NewAssistantHandler(service *services.AssistantService, metrics *observability.Metrics) *AssistantHandler {
	return &AssistantHandler{service: service, metrics: metrics}
}

type chatRequest struct {
	Messages     []providers.ChatMessage `json:"messages"`
	SystemPrompt string                  `json:"systemPrompt"`
	Domain       providers.ChatDomain    `json:"domain"`
}

// Chat handles POST /api/chat. It always answers 200; upstream failures
// produce an offline reply.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	msg := h.service.Chat(r.Context(), providers.ChatRequest{
		Domain:       req.Domain,
		SystemPrompt: req.SystemPrompt,
		Messages:     req.Messages,
	})
	if strings.HasSuffix(msg.Content, services.OfflineSuffix) {
		observability.RecordFallback(r.Context(), h.metrics, "openai")
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": msg,
	})
}

// PredictWaitTime handles POST /api/predict-wait-time
func (h *AssistantHandler) PredictWaitTime(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	result, err := h.service.PredictWaitTime(r.Context(), body)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if _, ok := result.(services.WaitTimePrediction); ok {
		observability.RecordFallback(r.Context(), h.metrics, "ml-service")
	}
	respondWithJSON(w, http.StatusOK, result)
}

// PredictCareer handles POST /api/predict-career
func (h *AssistantHandler) PredictCareer(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	result, err := h.service.PredictCareerMatch(r.Context(), body)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
