package tokens

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity is the part of a user that gets copied into a token at issuance.
type Identity struct {
	Username string
	Roles    []string
}

type Claims struct {
	Roles []string `json:"roles"`
	Kind  Kind     `json:"kind"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	return HasRole(c.Roles, role)
}

func HasRole(roles []string, role string) bool {
	return slices.Contains(roles, role)
}
