package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/netx"
	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultJWKSRefreshInterval = 15 * time.Minute
	// an unknown kid forces a refetch at most this often
	defaultMinRefreshInterval = 30 * time.Second
)

// RemoteKeySet is a KeySource backed by an issuer's published JSON Web Key
// Set. Keys are cached and refetched once RefreshInterval has passed.
// Concurrent refreshes share one request. When a refresh fails the previous
// keys stay in use.
type RemoteKeySet struct {
	url                string
	client             *http.Client
	refreshInterval    time.Duration
	minRefreshInterval time.Duration
	now                func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	keys        map[string]any
	fetchedAt   time.Time
	lastAttempt time.Time
}

type RemoteKeySetOption func(*RemoteKeySet)

func WithHTTPClient(c *http.Client) RemoteKeySetOption {
	return func(r *RemoteKeySet) { r.client = c }
}

func WithRefreshInterval(d time.Duration) RemoteKeySetOption {
	return func(r *RemoteKeySet) { r.refreshInterval = d }
}

func WithMinRefreshInterval(d time.Duration) RemoteKeySetOption {
	return func(r *RemoteKeySet) { r.minRefreshInterval = d }
}

func WithKeySetClock(now func() time.Time) RemoteKeySetOption {
	return func(r *RemoteKeySet) { r.now = now }
}

func NewRemoteKeySet(url string, opts ...RemoteKeySetOption) *RemoteKeySet {
	r := &RemoteKeySet{
		url:                url,
		client:             &http.Client{Timeout: 10 * time.Second},
		refreshInterval:    DefaultJWKSRefreshInterval,
		minRefreshInterval: defaultMinRefreshInterval,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VerificationKey implements KeySource.
func (r *RemoteKeySet) VerificationKey(ctx context.Context, kid string) (any, error) {
	keys, fetchedAt := r.snapshot()

	if keys == nil || r.now().Sub(fetchedAt) >= r.refreshInterval {
		fresh, err := r.refresh(ctx)
		switch {
		case err == nil:
			keys = fresh
		case keys == nil:
			return nil, autherr.Wrap(autherr.ConfigurationError, "fetch key set "+r.url, err)
		}
	}

	if key, ok := lookup(keys, kid); ok {
		return key, nil
	}

	// the issuer may have rotated keys since the last fetch
	if r.mayRefetch() {
		if fresh, err := r.refresh(ctx); err == nil {
			if key, ok := lookup(fresh, kid); ok {
				return key, nil
			}
		}
	}

	return nil, autherr.New(autherr.TokenInvalid, fmt.Sprintf("unknown key id %q", kid))
}

func lookup(keys map[string]any, kid string) (any, bool) {
	if kid == "" {
		// without a kid only an unambiguous set can be used
		if len(keys) != 1 {
			return nil, false
		}
		for _, k := range keys {
			return k, true
		}
	}
	k, ok := keys[kid]
	return k, ok
}

func (r *RemoteKeySet) snapshot() (map[string]any, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keys, r.fetchedAt
}

func (r *RemoteKeySet) mayRefetch() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now().Sub(r.lastAttempt) >= r.minRefreshInterval
}

func (r *RemoteKeySet) refresh(ctx context.Context) (map[string]any, error) {
	v, err, _ := r.group.Do(r.url, func() (any, error) {
		r.mu.Lock()
		r.lastAttempt = r.now()
		r.mu.Unlock()

		var set jwkSet
		if err := netx.GetJSON(ctx, r.client, r.url, &set); err != nil {
			return nil, err
		}
		keys, err := set.publicKeys()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.keys = keys
		r.fetchedAt = r.now()
		r.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// publicKeys converts the set to verification keys by kid. Encryption keys
// and key types we do not verify with are skipped; a set left empty is an
// error.
func (s jwkSet) publicKeys() (map[string]any, error) {
	keys := make(map[string]any, len(s.Keys))
	for _, k := range s.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			return nil, fmt.Errorf("jwk %q: %w", k.Kid, err)
		}
		if pub == nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("key set has no usable signing keys")
	}
	return keys, nil
}

func (k jwk) publicKey() (any, error) {
	switch k.Kty {
	case "RSA":
		n, err := decodeBigInt(k.N)
		if err != nil {
			return nil, fmt.Errorf("modulus: %w", err)
		}
		e, err := decodeBigInt(k.E)
		if err != nil {
			return nil, fmt.Errorf("exponent: %w", err)
		}
		if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
			return nil, fmt.Errorf("unsupported exponent")
		}
		return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil

	case "EC":
		var curve elliptic.Curve
		switch k.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		case "P-521":
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("unsupported curve %q", k.Crv)
		}
		x, err := decodeBigInt(k.X)
		if err != nil {
			return nil, fmt.Errorf("x: %w", err)
		}
		y, err := decodeBigInt(k.Y)
		if err != nil {
			return nil, fmt.Errorf("y: %w", err)
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil

	case "OKP":
		if k.Crv != "Ed25519" {
			return nil, fmt.Errorf("unsupported curve %q", k.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, fmt.Errorf("x: %w", err)
		}
		if len(x) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("bad ed25519 key size %d", len(x))
		}
		return ed25519.PublicKey(x), nil

	default:
		// symmetric and unknown key types are never published for verification
		return nil, nil
	}
}

func decodeBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing value")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
