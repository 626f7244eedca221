package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/egendata/operator/internal/models"
)

// MockEventSender is a mock implementation of EventSender
type MockEventSender struct {
	mock.Mock
}

func (m *MockEventSender) SendJWT(ctx context.Context, url, token string) error {
	args := m.Called(ctx, url, token)
	return args.Error(0)
}

func (m *MockEventSender) SendJSON(ctx context.Context, url string, event interface{}) error {
	args := m.Called(ctx, url, event)
	return args.Error(0)
}

// MockTokenVerifier is a mock implementation of TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, token string) (*models.Message, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// MockReadKeyFetcher is a mock implementation of ReadKeyFetcher
type MockReadKeyFetcher struct {
	mock.Mock
}

func (m *MockReadKeyFetcher) KeyJSON(ctx context.Context, kid string) (json.RawMessage, error) {
	args := m.Called(ctx, kid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
