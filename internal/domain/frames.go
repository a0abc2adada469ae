package domain

import "time"

// Structured frame types from clients. The registration frame is a bare
// identity token, not JSON, and has no type constant. Any JSON frame whose
// type is not one of these is treated as a new-message frame.
const (
	FrameTypeMarkAsSeen = "MARK_AS_SEEN"
	FrameTypePing       = "PING"
)

// Event types pushed to clients.
const (
	EventTypeNewMessage        = "NEW_MESSAGE"
	EventTypeUnseenCountUpdate = "UNSEEN_COUNT_UPDATE"
	EventTypePong              = "PONG"
)

// BaseFrame is decoded first to sniff the frame type.
type BaseFrame struct {
	Type string `json:"type"`
}

// MarkSeenFrame acknowledges a conversation as read by the sender of the
// frame.
type MarkSeenFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

// NewMessageFrame carries an outbound chat message from a client. The
// wire field names are fixed; SenderType is "user" or "seller".
type NewMessageFrame struct {
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	MessageBody    string `json:"messageBody"`
	ConversationID string `json:"conversationId"`
	SenderType     string `json:"senderType"`
}

// Event is the envelope for every server-to-client push.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewMessagePayload is the NEW_MESSAGE event body.
type NewMessagePayload struct {
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderType     Role      `json:"senderType"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UnseenCountPayload is the UNSEEN_COUNT_UPDATE event body.
type UnseenCountPayload struct {
	ConversationID string `json:"conversationId"`
	UnseenCount    int64  `json:"unseenCount"`
}

// NewMessageEvent builds the push event for an accepted message.
func NewMessageEvent(msg *ChatMessage) Event {
	return Event{
		Type: EventTypeNewMessage,
		Payload: NewMessagePayload{
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			SenderType:     msg.SenderRole,
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
		},
	}
}

// UnseenCountEvent builds the counter push that follows a delivery.
func UnseenCountEvent(conversationID string, count int64) Event {
	return Event{
		Type: EventTypeUnseenCountUpdate,
		Payload: UnseenCountPayload{
			ConversationID: conversationID,
			UnseenCount:    count,
		},
	}
}
