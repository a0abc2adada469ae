package domain

import (
	"fmt"
	"strings"
)

// Role distinguishes the two sides of a marketplace conversation.
// Every conversation has exactly one customer side and one merchant side.
type Role string

const (
	RoleCustomer Role = "user"
	RoleMerchant Role = "seller"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleMerchant
}

// Opposite returns the other side of a conversation. A message sent by a
// merchant is addressed to a customer and vice versa.
func (r Role) Opposite() Role {
	if r == RoleMerchant {
		return RoleCustomer
	}
	return RoleMerchant
}

// Identity is the canonical key for a chat participant. The role is part
// of the key itself, so a customer and a merchant with the same raw id
// never collide in the connection registry or the presence store.
type Identity struct {
	Role Role
	ID   string
}

// NewIdentity builds an identity, validating both parts.
func NewIdentity(role Role, id string) (Identity, error) {
	if !role.Valid() {
		return Identity{}, fmt.Errorf("unknown role %q", role)
	}
	if id == "" {
		return Identity{}, fmt.Errorf("empty identity id")
	}
	return Identity{Role: role, ID: id}, nil
}

// Token renders the wire form of the identity: "user_<id>" or
// "seller_<id>". This is the only place the string concatenation scheme
// exists; everything inside the process uses the typed key.
func (i Identity) Token() string {
	return string(i.Role) + "_" + i.ID
}

func (i Identity) String() string {
	return i.Token()
}

// ParseIdentityToken parses the registration frame sent as the first
// message on a WebSocket connection. It is the inverse of Token.
func ParseIdentityToken(token string) (Identity, error) {
	role, id, ok := strings.Cut(token, "_")
	if !ok {
		return Identity{}, fmt.Errorf("malformed identity token %q", token)
	}
	return NewIdentity(Role(role), id)
}
