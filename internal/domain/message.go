package domain

import (
	"fmt"
	"time"
)

// ChatMessage is a single accepted chat message. CreatedAt is assigned at
// ingest by the dispatcher, never taken from the client. Messages are
// immutable once created; only the persist consumer writes them to the
// relational store.
type ChatMessage struct {
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderRole     Role      `json:"senderType"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Validate enforces the acceptance invariant: conversation, sender id,
// sender role and body must all be non-empty.
func (m *ChatMessage) Validate() error {
	switch {
	case m.ConversationID == "":
		return fmt.Errorf("empty conversation id")
	case m.SenderID == "":
		return fmt.Errorf("empty sender id")
	case !m.SenderRole.Valid():
		return fmt.Errorf("invalid sender role %q", m.SenderRole)
	case m.Content == "":
		return fmt.Errorf("empty message body")
	}
	return nil
}

// Sender returns the canonical identity of the message author.
func (m *ChatMessage) Sender() Identity {
	return Identity{Role: m.SenderRole, ID: m.SenderID}
}

// RecipientRole is the conversation side the message is addressed to.
func (m *ChatMessage) RecipientRole() Role {
	return m.SenderRole.Opposite()
}

// MessageModel is the GORM row shape for the chat_messages table. The
// persist consumer bulk-inserts these; nothing in this module reads them
// back (history pagination is served by a separate service).
type MessageModel struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	ConversationID string    `gorm:"size:64;index;not null"`
	SenderID       string    `gorm:"size:64;not null"`
	SenderRole     string    `gorm:"size:16;not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName overrides the GORM default.
func (MessageModel) TableName() string {
	return "chat_messages"
}

// ToModel converts a message to its storage row.
func (m *ChatMessage) ToModel() MessageModel {
	return MessageModel{
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     string(m.SenderRole),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
