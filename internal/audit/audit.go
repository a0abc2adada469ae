package audit

import (
	"context"

	"github.com/mercaline/chat-service/pkg/log"
)

// Audit actions for the chat pipeline.
const (
	ActionRegister        = "chat.register"
	ActionDeregister      = "chat.deregister"
	ActionMessageAccepted = "chat.message_accepted"
)

const fieldAction = "action"

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, identity, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(fieldAction, action).
		Str(log.FieldIdentity, identity).
		Msg(msg)
}

// LogMessage emits an audit entry for an accepted chat message.
func LogMessage(ctx context.Context, identity, conversationID string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(fieldAction, ActionMessageAccepted).
		Str(log.FieldIdentity, identity).
		Str(log.FieldConversationID, conversationID).
		Msg("message accepted")
}
