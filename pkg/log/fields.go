package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Chat pipeline
	FieldIdentity       = "identity"
	FieldConnectionID   = "connection_id"
	FieldConversationID = "conversation_id"
	FieldSenderID       = "sender_id"
	FieldSenderRole     = "sender_role"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
