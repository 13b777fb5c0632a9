package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/golang-jwt/jwt/v5"
)

// KeySource resolves the key that verifies a token signed under kid.
//
// Implementations return a TokenInvalid error when kid is unknown and a
// ConfigurationError when keys cannot be obtained at all.
type KeySource interface {
	VerificationKey(ctx context.Context, kid string) (any, error)
}

// StaticKey is a KeySource holding a single key, used for locally issued
// tokens.
type StaticKey struct {
	Key   any
	KeyID string // when set, tokens carrying another kid are rejected
}

func (s StaticKey) VerificationKey(_ context.Context, kid string) (any, error) {
	if s.Key == nil {
		return nil, autherr.New(autherr.ConfigurationError, "verification key is not configured")
	}
	if s.KeyID != "" && kid != "" && kid != s.KeyID {
		return nil, autherr.New(autherr.TokenInvalid, fmt.Sprintf("unknown key id %q", kid))
	}
	return s.Key, nil
}

// Signer is the local signing configuration.
type Signer struct {
	Method   jwt.SigningMethod
	Key      any
	KeyID    string
	Issuer   string
	Audience []string
}

// NewSigner builds a Signer for alg. keyMaterial is the raw secret for HMAC
// algorithms and a PEM encoded private key otherwise.
func NewSigner(alg string, keyMaterial []byte, kid, issuer string, audience []string) (*Signer, error) {
	if len(keyMaterial) == 0 {
		return nil, autherr.New(autherr.ConfigurationError, "signing key is not configured")
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil || alg == jwt.SigningMethodNone.Alg() {
		return nil, autherr.New(autherr.ConfigurationError, fmt.Sprintf("unsupported signing algorithm %q", alg))
	}

	var (
		key any
		err error
	)
	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		key = append([]byte(nil), keyMaterial...)
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		key, err = jwt.ParseRSAPrivateKeyFromPEM(keyMaterial)
	case *jwt.SigningMethodECDSA:
		key, err = jwt.ParseECPrivateKeyFromPEM(keyMaterial)
	case *jwt.SigningMethodEd25519:
		key, err = jwt.ParseEdPrivateKeyFromPEM(keyMaterial)
	default:
		err = fmt.Errorf("no key parser for %s", alg)
	}
	if err != nil {
		return nil, autherr.Wrap(autherr.ConfigurationError, "parse signing key", err)
	}

	return &Signer{
		Method:   method,
		Key:      key,
		KeyID:    kid,
		Issuer:   issuer,
		Audience: audience,
	}, nil
}

// PublicKey returns the key that verifies tokens produced by s. For HMAC it is
// the secret itself.
func (s *Signer) PublicKey() any {
	switch k := s.Key.(type) {
	case *rsa.PrivateKey:
		return &k.PublicKey
	case *ecdsa.PrivateKey:
		return &k.PublicKey
	case ed25519.PrivateKey:
		return k.Public()
	case crypto.Signer:
		return k.Public()
	default:
		return s.Key
	}
}

// LocalIssuer is the trusted issuer entry for tokens produced by s.
func (s *Signer) LocalIssuer() Issuer {
	return Issuer{
		Name:      s.Issuer,
		Audience:  s.Audience,
		Algorithm: s.Method.Alg(),
		Keys:      StaticKey{Key: s.PublicKey(), KeyID: s.KeyID},
	}
}
