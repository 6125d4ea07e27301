package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Identity is the verified caller resolved from a bearer token.
type Identity struct {
	UserID string
	Role   enums.Role
}

// AccessTokenClaims is the JWT shape issued by the identity provider.
type AccessTokenClaims struct {
	UserID string     `json:"uid"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the caller described by the claims.
func (c *AccessTokenClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role}
}
