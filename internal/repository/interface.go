package repository

import (
	"context"

	"github.com/mercaline/chat-service/internal/domain"
)

// MessageRepository is the write side of the relational message store.
// The pipeline only ever bulk-inserts; reads belong to the history
// service.
type MessageRepository interface {
	// SaveBatch inserts all messages in one bulk write, preserving the
	// slice order within the insert.
	SaveBatch(ctx context.Context, msgs []*domain.ChatMessage) error
}
