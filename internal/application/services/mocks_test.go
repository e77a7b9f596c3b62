package services

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/medqueue/backend/internal/domain/providers"
)

type MockChatProvider struct {
	mock.Mock
}

func (m *MockChatProvider) Complete(ctx context.Context, req providers.ChatRequest) (*providers.ChatMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.ChatMessage), args.Error(1)
}

type MockPredictionProvider struct {
	mock.Mock
}

func (m *MockPredictionProvider) PredictWaitTime(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockPredictionProvider) PredictCareerMatch(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}
