package service

import (
	"sync"

	"github.com/mercaline/chat-service/internal/domain"
)

type unseenKey struct {
	identity       domain.Identity
	conversationID string
}

// UnseenTracker holds the dispatcher-time unseen counts pushed to online
// recipients. It is the optimistic, in-memory view; the durable counter
// in the external store is incremented later, at flush time, and the two
// are reconciled only by the recipient marking the conversation seen.
// Counts here do not survive a restart.
type UnseenTracker struct {
	mu     sync.Mutex
	counts map[unseenKey]int64
}

// NewUnseenTracker creates an empty tracker.
func NewUnseenTracker() *UnseenTracker {
	return &UnseenTracker{counts: make(map[unseenKey]int64)}
}

// Increment bumps the count for a recipient and conversation, returning
// the new value.
func (t *UnseenTracker) Increment(id domain.Identity, conversationID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := unseenKey{identity: id, conversationID: conversationID}
	t.counts[k]++
	return t.counts[k]
}

// Reset zeroes the count immediately, regardless of any un-flushed
// durable increments still in flight.
func (t *UnseenTracker) Reset(id domain.Identity, conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, unseenKey{identity: id, conversationID: conversationID})
}

// Get reads the current count.
func (t *UnseenTracker) Get(id domain.Identity, conversationID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[unseenKey{identity: id, conversationID: conversationID}]
}
