package providers

import (
	"context"
	"encoding/json"
)

// ChatDomain selects which assistant persona (and API key) serves a conversation.
type ChatDomain string

const (
	ChatDomainHealth    ChatDomain = "health"
	ChatDomainEducation ChatDomain = "education"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a completion request.
type ChatRequest struct {
	Domain       ChatDomain
	SystemPrompt string
	Messages     []ChatMessage
}

// ChatProvider produces assistant replies.
type ChatProvider interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatMessage, error)
}

// PredictionProvider forwards prediction requests to the ML service and
// returns its JSON response unchanged.
type PredictionProvider interface {
	PredictWaitTime(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	PredictCareerMatch(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
}

// SMSSender delivers a text message and returns the gateway message id.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}
