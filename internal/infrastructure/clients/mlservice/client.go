// Package mlservice is the HTTP client for the prediction service.
package mlservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/medqueue/backend/internal/domain/providers"
)

const (
	waitTimePath    = "/predict/wait-time"
	careerMatchPath = "/predict/career-match"
)

// Client forwards prediction requests and returns the service's JSON
// unchanged. Transport failures, non-2xx statuses and non-JSON bodies are
// all reported as errors.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

var _ providers.PredictionProvider = (*Client)(nil)

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ml-service",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

// PredictWaitTime posts body to /predict/wait-time.
func (c *Client) PredictWaitTime(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.post(ctx, waitTimePath, body)
}

// PredictCareerMatch posts body to /predict/career-match.
func (c *Client) PredictCareerMatch(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.post(ctx, careerMatchPath, body)
}

func (c *Client) post(ctx context.Context, path string, body json.RawMessage) (json.RawMessage, error) {
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody([]byte(body)).
			Post(path)
		if err != nil {
			return nil, fmt.Errorf("ml service request to %s failed: %w", path, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("ml service %s returned status %d", path, resp.StatusCode())
		}
		raw := resp.Body()
		if !json.Valid(raw) {
			return nil, fmt.Errorf("ml service %s returned a non-JSON body", path)
		}
		return json.RawMessage(raw), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// Ping checks the service root.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("ml service returned status %d", resp.StatusCode())
	}
	return nil
}
