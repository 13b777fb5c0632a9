// Package auth issues and verifies bearer tokens and guards requests with them.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultLeeway absorbs clock drift between issuer and verifier.
const DefaultLeeway = 5 * time.Second

// Issuer is a trusted token issuer. The iss claim selects it; its algorithm,
// audience and keys then apply to the token.
type Issuer struct {
	Name      string
	Audience  []string // token must name at least one
	Algorithm string
	Keys      KeySource
}

// Codec issues locally signed tokens and verifies tokens from every trusted
// issuer. It is safe for concurrent use once constructed.
type Codec struct {
	signer  *Signer
	issuers map[string]Issuer
	leeway  time.Duration
	now     func() time.Time
}

type Option func(*Codec)

// WithSigner enables Issue and trusts the signer's own tokens.
func WithSigner(s *Signer) Option {
	return func(c *Codec) {
		c.signer = s
		if s != nil {
			iss := s.LocalIssuer()
			c.issuers[iss.Name] = iss
		}
	}
}

// WithIssuer trusts an additional issuer, typically an external identity
// provider backed by a RemoteKeySet.
func WithIssuer(iss Issuer) Option {
	return func(c *Codec) {
		c.issuers[iss.Name] = iss
	}
}

func WithLeeway(d time.Duration) Option {
	return func(c *Codec) {
		c.leeway = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		issuers: make(map[string]Issuer),
		leeway:  DefaultLeeway,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs claims with the local signer. iat is set to now and exp to
// now+ttl. Issuer and audience default to the signer's.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if c.signer == nil {
		return "", autherr.New(autherr.ConfigurationError, "no signing key configured")
	}
	if ttl < 0 {
		return "", autherr.New(autherr.ConfigurationError, "token ttl must not be negative")
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}

	issuer := claims.Issuer
	if issuer == "" {
		issuer = c.signer.Issuer
	}
	audience := claims.Audience
	if len(audience) == 0 {
		audience = c.signer.Audience
	}
	id := claims.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := c.now()
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   claims.Subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: claims.Roles,
		Scope: strings.Join(claims.Scopes, " "),
	}

	token := jwt.NewWithClaims(c.signer.Method, tc)
	if c.signer.KeyID != "" {
		token.Header["kid"] = c.signer.KeyID
	}

	s, err := token.SignedString(c.signer.Key)
	if err != nil {
		return "", autherr.Wrap(autherr.ConfigurationError, "sign token", err)
	}
	return s, nil
}

// Verify checks token and returns its claims.
//
// Structure, algorithm and signature are checked first, then issuer and
// audience, and expiry last: TokenExpired is only reported for a token that
// is otherwise genuine. Any other failure is TokenInvalid, except key
// retrieval problems, which keep the kind reported by the KeySource.
func (c *Codec) Verify(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, autherr.New(autherr.TokenInvalid, "empty token")
	}

	// iss picks the verification policy; nothing read here is trusted.
	var unverified tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &unverified); err != nil {
		return nil, autherr.Wrap(autherr.TokenInvalid, "malformed token", err)
	}
	iss, ok := c.issuers[unverified.Issuer]
	if !ok {
		return nil, autherr.New(autherr.TokenInvalid, "untrusted issuer "+unverified.Issuer)
	}
	if iss.Name == "" || len(iss.Audience) == 0 {
		return nil, autherr.New(autherr.ConfigurationError, "issuer without name or audience is trusted")
	}
	if iss.Keys == nil {
		return nil, autherr.New(autherr.ConfigurationError, "no keys for issuer "+iss.Name)
	}

	var (
		parsed tokenClaims
		keyErr error
	)
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := iss.Keys.VerificationKey(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{iss.Algorithm}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if _, ok := autherr.KindOf(keyErr); ok {
			return nil, keyErr
		}
		return nil, mapJWTError(err)
	}

	if parsed.Issuer != iss.Name {
		return nil, autherr.New(autherr.TokenInvalid, "issuer mismatch")
	}
	if !audienceContains(parsed.Audience, iss.Audience) {
		return nil, autherr.New(autherr.TokenInvalid, "audience mismatch")
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return nil, autherr.New(autherr.TokenInvalid, "subject is required")
	}
	if parsed.ExpiresAt == nil {
		return nil, autherr.New(autherr.TokenInvalid, "exp is required")
	}

	now := c.now()
	if parsed.IssuedAt != nil && parsed.IssuedAt.Time.After(now.Add(c.leeway)) {
		return nil, autherr.New(autherr.TokenInvalid, "token issued in the future")
	}
	if parsed.NotBefore != nil && parsed.NotBefore.Time.After(now.Add(c.leeway)) {
		return nil, autherr.New(autherr.TokenInvalid, "token not valid yet")
	}
	if !now.Before(parsed.ExpiresAt.Time.Add(c.leeway)) {
		return nil, autherr.New(autherr.TokenExpired, "token expired")
	}

	return parsed.claims(), nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return autherr.Wrap(autherr.TokenInvalid, "malformed token", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification),
		errors.Is(err, jwt.ErrECDSAVerification):
		return autherr.Wrap(autherr.TokenInvalid, "signature or algorithm is invalid", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return autherr.Wrap(autherr.TokenInvalid, "token is unverifiable", err)
	default:
		return autherr.Wrap(autherr.TokenInvalid, "token is invalid", err)
	}
}

// audienceContains reports whether aud names any of the expected values.
func audienceContains(aud jwt.ClaimStrings, expected []string) bool {
	for _, got := range aud {
		for _, want := range expected {
			if got == want {
				return true
			}
		}
	}
	return false
}
