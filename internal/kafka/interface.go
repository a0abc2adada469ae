package kafka

import (
	"context"

	"github.com/mercaline/chat-service/internal/domain"
)

// MessageProducer publishes accepted chat messages onto the durable log.
// Records are keyed by conversation id so one conversation always lands
// on one partition and drains in publish order.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, msg *domain.ChatMessage) error
	Close() error
}
