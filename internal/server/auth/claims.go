package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity asserted by a token.
type Claims struct {
	ID        string // jti
	Subject   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Roles     []string
	Scopes    []string
}

// Validate checks the claims that must hold before a token is issued.
func (c *Claims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return autherr.New(autherr.TokenInvalid, "subject is required")
	}
	return nil
}

// HasRole reports whether role was granted.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// tokenClaims is the JWT payload. scope is space-delimited, as OAuth2
// providers emit it.
type tokenClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
	Scope string   `json:"scope,omitempty"`
}

func (tc *tokenClaims) claims() *Claims {
	c := &Claims{
		ID:       tc.ID,
		Subject:  tc.Subject,
		Issuer:   tc.Issuer,
		Audience: []string(tc.Audience),
		Roles:    tc.Roles,
		Scopes:   strings.Fields(tc.Scope),
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c
}

type claimsKey struct{}

// ContextWithClaims returns a copy of ctx carrying the authenticated identity.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the identity stored by ContextWithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
