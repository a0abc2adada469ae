package hub

import (
	"testing"

	"github.com/mercaline/chat-service/internal/config"
	"github.com/mercaline/chat-service/internal/domain"
)

func newTestClient(connID string, id domain.Identity) *Client {
	c := NewClient(connID, nil, config.WebSocketConfig{})
	c.Identity = id
	return c
}

func TestRegisterLastWriterWins(t *testing.T) {
	r := NewRegistry()
	id := domain.Identity{Role: domain.RoleCustomer, ID: "u1"}

	tab1 := newTestClient("conn-1", id)
	tab2 := newTestClient("conn-2", id)

	r.Register(tab1)
	r.Register(tab2)

	got, ok := r.Lookup(id)
	if !ok || got != tab2 {
		t.Fatal("most recent registration must own the identity mapping")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 mapping, got %d", r.Len())
	}
}

func TestDeregisterGuardsAgainstStaleTab(t *testing.T) {
	r := NewRegistry()
	id := domain.Identity{Role: domain.RoleMerchant, ID: "m1"}

	tab1 := newTestClient("conn-1", id)
	tab2 := newTestClient("conn-2", id)

	r.Register(tab1)
	r.Register(tab2)

	// The superseded tab closing must not evict the live connection.
	if removed := r.Deregister(tab1); removed {
		t.Fatal("stale tab deregistration must be a no-op")
	}
	if _, ok := r.Lookup(id); !ok {
		t.Fatal("live connection was evicted by a stale deregister")
	}

	if removed := r.Deregister(tab2); !removed {
		t.Fatal("owning connection must deregister successfully")
	}
	if _, ok := r.Lookup(id); ok {
		t.Fatal("mapping still present after deregister")
	}
}

func TestSendReportsDeliveryAttempt(t *testing.T) {
	r := NewRegistry()
	id := domain.Identity{Role: domain.RoleCustomer, ID: "u1"}

	if delivered := r.Send(id, domain.Event{Type: domain.EventTypePong}); delivered {
		t.Fatal("send to unregistered identity must report not delivered")
	}

	c := newTestClient("conn-1", id)
	r.Register(c)

	if delivered := r.Send(id, domain.Event{Type: domain.EventTypePong}); !delivered {
		t.Fatal("send to registered identity must report delivered")
	}

	select {
	case <-c.Send:
	default:
		t.Fatal("event was not queued on the client send channel")
	}
}

func TestDistinctRolesAddressDistinctSockets(t *testing.T) {
	r := NewRegistry()

	customer := newTestClient("conn-1", domain.Identity{Role: domain.RoleCustomer, ID: "7"})
	merchant := newTestClient("conn-2", domain.Identity{Role: domain.RoleMerchant, ID: "7"})

	r.Register(customer)
	r.Register(merchant)

	if r.Len() != 2 {
		t.Fatalf("expected 2 mappings for equal raw ids under different roles, got %d", r.Len())
	}
}
