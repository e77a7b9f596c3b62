package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/medqueue/backend/internal/domain/providers"
	"github.com/medqueue/backend/pkg/config"
)

// TwilioSender sends SMS through the Twilio Messages API using an API key pair.
type TwilioSender struct {
	accountSID string
	keySID     string
	keySecret  string
	from       string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

var _ providers.SMSSender = (*TwilioSender)(nil)

// NewTwilioSender creates a sender from cfg. All credentials are required.
func NewTwilioSender(cfg *config.TwilioConfig, timeout time.Duration) (*TwilioSender, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_API_KEY_SID, TWILIO_API_KEY_SECRET and TWILIO_PHONE_NUMBER must be set")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}

	return &TwilioSender{
		accountSID: cfg.AccountSID,
		keySID:     cfg.APIKeySID,
		keySecret:  cfg.APIKeySecret,
		from:       cfg.FromNumber,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "twilio",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}, nil
}

// twilioMessage is the subset of the Messages API response we read.
type twilioMessage struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send delivers body to the recipient and returns the message SID.
func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("recipient is required")
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.sendMessage(ctx, to, body)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *TwilioSender) sendMessage(ctx context.Context, to, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.keySID, s.keySecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var msg twilioMessage
	_ = json.Unmarshal(raw, &msg)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg.Message != "" {
			return "", fmt.Errorf("twilio API error (status %d, code %d): %s", resp.StatusCode, msg.Code, msg.Message)
		}
		return "", fmt.Errorf("twilio API error (status %d): %s", resp.StatusCode, string(raw))
	}
	if msg.SID == "" {
		return "", fmt.Errorf("no message SID in response")
	}

	log.Debug().Str("sid", msg.SID).Str("status", msg.Status).Msg("sms queued")
	return msg.SID, nil
}
