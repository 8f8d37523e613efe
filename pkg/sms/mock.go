package sms

import (
	"context"

	"go.uber.org/zap"
)

// MockSender logs messages instead of delivering them. Used outside
// production so the flow can be exercised without a Twilio account.
type MockSender struct {
	log *zap.Logger
}

func NewMockSender(log *zap.Logger) *MockSender {
	return &MockSender{log: log}
}

func (m *MockSender) SendSMS(_ context.Context, to, message string) error {
	m.log.Info("mock sms", zap.String("to", to), zap.String("message", message))
	return nil
}
