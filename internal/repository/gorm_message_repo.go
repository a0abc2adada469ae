package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mercaline/chat-service/internal/domain"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// SaveBatch bulk-inserts the messages. GORM generates a single
// multi-row INSERT per chunk, keeping slice order, so per-conversation
// chronological order survives the write.
func (r *GormMessageRepository) SaveBatch(ctx context.Context, msgs []*domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	rows := make([]domain.MessageModel, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, m.ToModel())
	}

	result := r.db.WithContext(ctx).CreateInBatches(rows, 500)
	if result.Error != nil {
		return fmt.Errorf("failed to bulk insert %d messages: %w", len(rows), result.Error)
	}

	return nil
}
