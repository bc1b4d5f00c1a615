package mocks

import (
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/pubsub"
)

// MockNATSPubSub stands in for NATS JetStream with the in-process broker
type MockNATSPubSub struct {
	*pubsub.PubSub
}

// NewMockNATSPubSub creates the in-memory stand-in
func NewMockNATSPubSub() *MockNATSPubSub {
	logger.Info("Using MOCK NATS/JetStream (in-memory pub/sub) for local development")
	return &MockNATSPubSub{PubSub: pubsub.New()}
}

// Close is a no-op for the mock
func (m *MockNATSPubSub) Close() {}
