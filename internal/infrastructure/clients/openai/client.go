package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/medqueue/backend/internal/domain/providers"
	"github.com/medqueue/backend/pkg/config"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
)

// ErrNoAPIKey is returned when the conversation's domain has no key configured.
var ErrNoAPIKey = errors.New("openai api key not configured for domain")

// Client implements providers.ChatProvider over the Chat Completions API.
// Health and education conversations are billed to separate keys.
type Client struct {
	keys       map[providers.ChatDomain]string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

var _ providers.ChatProvider = (*Client)(nil)

// NewClient creates a chat client. timeout bounds each upstream request.
func NewClient(cfg *config.OpenAIConfig, timeout time.Duration) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &Client{
		keys: map[providers.ChatDomain]string{
			providers.ChatDomainHealth:    cfg.HealthAPIKey,
			providers.ChatDomainEducation: cfg.EducationAPIKey,
		},
		model:      model,
		maxTokens:  maxTokens,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		// 60 requests per minute with a small burst
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openai",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

type chatCompletionRequest struct {
	Model     string                  `json:"model"`
	Messages  []providers.ChatMessage `json:"messages"`
	MaxTokens int                     `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message providers.ChatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the conversation, prefixed by the system prompt, and returns
// the first choice.
func (c *Client) Complete(ctx context.Context, req providers.ChatRequest) (*providers.ChatMessage, error) {
	domain := req.Domain
	if domain != providers.ChatDomainEducation {
		domain = providers.ChatDomainHealth
	}
	key := c.keys[domain]
	if key == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAPIKey, domain)
	}

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		recordMetric(ctx, c.model, 0, 0, err)
		return nil, err
	}
	recordRateLimitWait(ctx, c.model, time.Since(waitStart))

	messages := make([]providers.ChatMessage, 0, len(req.Messages)+1)
	messages = append(messages, providers.ChatMessage{Role: "system", Content: req.SystemPrompt})
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(chatCompletionRequest{Model: c.model, Messages: messages, MaxTokens: c.maxTokens})
	if err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doCompletion(ctx, key, body)
	})
	if err != nil {
		return nil, err
	}
	return result.(*providers.ChatMessage), nil
}

func (c *Client) doCompletion(ctx context.Context, key string, body []byte) (*providers.ChatMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		recordMetric(ctx, c.model, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("openai request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		recordMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	var envelope chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return nil, fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(envelope.Choices) == 0 {
		err := errors.New("openai response has no choices")
		recordMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	recordMetric(ctx, c.model, resp.StatusCode, time.Since(start), nil)
	msg := envelope.Choices[0].Message
	return &msg, nil
}

type openAIMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	metricsOnce sync.Once
	metrics     *openAIMetrics
)

func ensureMetrics() *openAIMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/medqueue/backend/openai")

		requestCount, err := meter.Int64Counter("ai.openai.request.count",
			metric.WithDescription("Number of OpenAI requests"))
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram("ai.openai.request.duration",
			metric.WithDescription("OpenAI request duration in milliseconds"),
			metric.WithUnit("ms"))
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter("ai.openai.request.errors",
			metric.WithDescription("Number of OpenAI request errors"))
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram("ai.openai.rate_limit.wait",
			metric.WithDescription("Time spent waiting for the OpenAI rate limiter in milliseconds"),
			metric.WithUnit("ms"))
		if err != nil {
			return
		}
		metrics = &openAIMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			rateLimitWait:   rateLimitWait,
		}
	})
	return metrics
}

func recordMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	m := ensureMetrics()
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	m.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	m := ensureMetrics()
	if m == nil {
		return
	}
	m.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	))
}
