package store

import (
	"context"
	"time"

	"github.com/mercaline/chat-service/internal/domain"
)

// PresenceUnreadStore is the fast key-value store behind presence flags
// and unseen counters. Presence is a TTL-bounded liveness hint, not a
// delivery guarantee. No atomicity is assumed across two calls; the store
// only guarantees that a single increment is atomic.
type PresenceUnreadStore interface {
	// SetPresence marks an identity online with a sliding TTL.
	SetPresence(ctx context.Context, id domain.Identity, ttl time.Duration) error

	// ClearPresence removes the online flag on clean disconnect. TTL
	// expiry is the fallback for ungraceful disconnects.
	ClearPresence(ctx context.Context, id domain.Identity) error

	// IsOnline reports whether the presence flag exists.
	IsOnline(ctx context.Context, id domain.Identity) (bool, error)

	// IncrementUnseen bumps the unseen counter for the recipient side of
	// a conversation and returns the new count.
	IncrementUnseen(ctx context.Context, recipient domain.Role, conversationID string) (int64, error)

	// ResetUnseen zeroes the counter when the recipient marks the
	// conversation seen.
	ResetUnseen(ctx context.Context, recipient domain.Role, conversationID string) error

	// GetUnseen reads the current counter; missing keys read as zero.
	GetUnseen(ctx context.Context, recipient domain.Role, conversationID string) (int64, error)

	// Close closes the store connection.
	Close() error
}
