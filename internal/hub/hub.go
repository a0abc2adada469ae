package hub

import (
	"encoding/json"
	"sync"

	"github.com/mercaline/chat-service/internal/domain"
	"github.com/mercaline/chat-service/pkg/log"
)

// Registry is the process-local mapping from identity to live socket.
// Registration is last-writer-wins: a user with two open tabs only keeps
// the most recent connection addressable here. Sockets are never queued
// for; delivery is attempt-once.
type Registry struct {
	clients map[domain.Identity]*Client
	mu      sync.RWMutex
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[domain.Identity]*Client),
	}
}

// Register maps the client's identity to it, overwriting any prior
// socket for the same identity.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	prev := r.clients[c.Identity]
	r.clients[c.Identity] = c
	r.mu.Unlock()

	l := log.L()
	if prev != nil && prev != c {
		l.Debug().
			Str(log.FieldIdentity, c.Identity.Token()).
			Str(log.FieldConnectionID, prev.ConnID).
			Msg("superseding previous connection")
	}
	l.Debug().
		Str(log.FieldIdentity, c.Identity.Token()).
		Str(log.FieldConnectionID, c.ConnID).
		Msg("client registered")
}

// Deregister removes the mapping, but only if c still owns it. A stale
// tab closing after being superseded must not evict the live connection.
// Returns whether the mapping was removed.
func (r *Registry) Deregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[c.Identity]
	if !ok || current != c {
		return false
	}
	delete(r.clients, c.Identity)
	return true
}

// Lookup returns the live client for an identity, if any.
func (r *Registry) Lookup(id domain.Identity) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Send writes an event to the identity's socket if one is registered.
// Returns whether a write was attempted. The channel send happens under
// the registry lock so it cannot race a concurrent close.
func (r *Registry) Send(id domain.Identity, event interface{}) bool {
	data, err := json.Marshal(event)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldIdentity, id.Token()).Msg("failed to marshal event")
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return false
	}

	select {
	case c.Send <- data:
	default:
		// Full buffer: the event is dropped, not queued.
	}
	return true
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
