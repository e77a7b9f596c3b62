package services

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/domain/providers"
	apperrors "github.com/medqueue/backend/pkg/errors"
)

const (
	// OfflineSuffix is appended to every canned chat reply.
	OfflineSuffix = " [Note: Response generated by Offline Backup Core]"

	defaultSystemPrompt = "You are a helpful assistant."
	offlineReply        = "I am currently operating in offline mode. How can I assist you?"

	fallbackMinutesPerPatient = 3
	fallbackConfidence        = 0.85
)

type keywordReply struct {
	keyword string
	reply   string
}

type fallbackPersona struct {
	marker    string
	reply     string
	overrides []keywordReply
}

// Personas are matched in order against the system prompt. Within a persona
// every matching keyword overrides the previous one, so later entries win.
var fallbackPersonas = []fallbackPersona{
	{
		marker: "medical",
		reply:  "Based on your description, this sounds like it might be a mild viral infection or seasonal flu. However, since I am an AI, I recommend visiting a General Physician if symptoms persist for more than 24 hours. Would you like me to book an appointment?",
		overrides: []keywordReply{
			{"fever", "A fever indicates your body is fighting an infection. Stay hydrated and rest. If it exceeds 102°F (39°C), please visit the Emergency ward immediately."},
			{"headache", "Headaches can be caused by stress, dehydration, or eye strain. Try drinking water and resting in a dark room. If it's severe or sudden, seek medical help."},
			{"chest pain", "⚠️ Chest pain can be serious. Please visit the Emergency Department immediately or call for an ambulance."},
		},
	},
	{
		marker: "Career Mentor",
		reply:  "That's a great question! Based on your logical aptitude, you might excel in fields like Data Science, Software Engineering, or Financial Analytics. Have you considered exploring Python or R programming?",
		overrides: []keywordReply{
			{"college", "For your profile, I'd recommend top technical institutes like IITs, NITs, or IIITs. Look for programs with strong placement records in tech sectors."},
			{"scholarship", "There are several scholarships available! Check out the 'Merit Scholarship 2026' and 'Tech Innovators Grant' in your dashboard."},
		},
	},
}

// WaitTimePrediction is the locally computed answer used when the ML service
// cannot be reached.
type WaitTimePrediction struct {
	PredictedWaitTime int     `json:"predictedWaitTime"`
	Confidence        float64 `json:"confidence"`
	Model             string  `json:"model"`
}

type waitTimeQuery struct {
	QueueLength float64 `json:"queueLength"`
	TimeOfDay   float64 `json:"timeOfDay"`
}

// AssistantService fronts the chat and prediction upstreams.
//
// Chat and wait-time prediction always answer, degrading to canned or
// locally computed replies. Career matching has no local model and reports
// the upstream as unavailable.
type AssistantService struct {
	chat      providers.ChatProvider
	predictor providers.PredictionProvider
}

// NewAssistantService creates an assistant service. Either provider may be nil.
func NewAssistantService(chat providers.ChatProvider, predictor providers.PredictionProvider) *AssistantService {
	return &AssistantService{chat: chat, predictor: predictor}
}

// Chat returns the assistant's next message.
func (s *AssistantService) Chat(ctx context.Context, req providers.ChatRequest) providers.ChatMessage {
	if req.Domain == "" {
		req.Domain = providers.ChatDomainHealth
	}
	prompt := req.SystemPrompt

	if s.chat != nil {
		upstream := req
		if upstream.SystemPrompt == "" {
			upstream.SystemPrompt = defaultSystemPrompt
		}
		msg, err := s.chat.Complete(ctx, upstream)
		if err == nil && msg != nil {
			return *msg
		}
		log.Warn().Err(err).Str("domain", string(req.Domain)).Msg("chat upstream failed, using offline reply")
	}

	return providers.ChatMessage{
		Role:    "assistant",
		Content: FallbackReply(prompt, req.Messages) + OfflineSuffix,
	}
}

// FallbackReply picks the canned reply for a conversation.
func FallbackReply(systemPrompt string, messages []providers.ChatMessage) string {
	for _, persona := range fallbackPersonas {
		if !strings.Contains(systemPrompt, persona.marker) {
			continue
		}
		last := ""
		if len(messages) > 0 {
			last = strings.ToLower(messages[len(messages)-1].Content)
		}
		reply := persona.reply
		for _, o := range persona.overrides {
			if strings.Contains(last, o.keyword) {
				reply = o.reply
			}
		}
		return reply
	}
	return offlineReply
}

// PredictWaitTime forwards the query to the ML service and falls back to a
// local estimate when it is unavailable.
func (s *AssistantService) PredictWaitTime(ctx context.Context, body json.RawMessage) (any, error) {
	if s.predictor != nil {
		resp, err := s.predictor.PredictWaitTime(ctx, body)
		if err == nil {
			return resp, nil
		}
		log.Warn().Err(err).Msg("ml wait-time prediction failed, using fallback")
	}

	if len(body) > 0 && !json.Valid(body) {
		return nil, apperrors.NewValidationError("invalid prediction request")
	}
	q := parseWaitTimeQuery(body)
	return FallbackWaitTime(q.QueueLength, q.TimeOfDay), nil
}

// parseWaitTimeQuery reads the two inputs field by field. Numeric strings are
// accepted; any other value counts as zero.
func parseWaitTimeQuery(body json.RawMessage) waitTimeQuery {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return waitTimeQuery{}
	}
	return waitTimeQuery{
		QueueLength: lenientNumber(fields["queueLength"]),
		TimeOfDay:   lenientNumber(fields["timeOfDay"]),
	}
}

func lenientNumber(raw json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}

// FallbackWaitTime estimates three minutes per queued patient, scaled by the
// rush-hour multiplier.
func FallbackWaitTime(queueLength, timeOfDay float64) WaitTimePrediction {
	mult := 1.0
	if (timeOfDay >= 9 && timeOfDay <= 12) || (timeOfDay >= 16 && timeOfDay <= 19) {
		mult = peakMultiplier
	}
	return WaitTimePrediction{
		PredictedWaitTime: int(math.Floor(queueLength*fallbackMinutesPerPatient*mult + 0.5)),
		Confidence:        fallbackConfidence,
		Model:             "fallback",
	}
}

// PredictCareerMatch forwards the profile to the ML service.
func (s *AssistantService) PredictCareerMatch(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	if s.predictor == nil {
		return nil, apperrors.NewUpstreamUnavailableError("ML service", nil)
	}
	resp, err := s.predictor.PredictCareerMatch(ctx, body)
	if err != nil {
		log.Error().Err(err).Msg("ml career prediction failed")
		return nil, apperrors.NewUpstreamUnavailableError("ML service", err)
	}
	return resp, nil
}
