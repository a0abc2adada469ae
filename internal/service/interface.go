package service

import (
	"context"

	"github.com/mercaline/chat-service/internal/hub"
)

// Dispatcher drives the per-connection state machine: an unregistered
// connection's first frame is an identity token; registered connections
// send structured frames (mark-as-seen, ping, or new message).
type Dispatcher interface {
	// HandleFrame processes one inbound frame. Frames on a single
	// connection are handled in arrival order.
	HandleFrame(ctx context.Context, c *hub.Client, frame []byte)

	// HandleDisconnect runs when a socket closes or errors.
	HandleDisconnect(ctx context.Context, c *hub.Client)
}
