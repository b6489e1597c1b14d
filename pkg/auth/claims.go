// Package auth mints and verifies the storefront's HS256 access tokens.
//
// A token names its subject and carries the session's access id as jti. It
// never carries a role: roles are read from the profile store on each guarded
// request so a role change applies to live sessions.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks. The typed subject must
// agree with the sub claim.
func (c *Claims) Validate() error {
	if c.UserID == uuid.Nil || c.Subject != c.UserID.String() {
		return ErrTokenInvalid
	}
	if c.ID == "" {
		return ErrTokenInvalid
	}
	return nil
}
