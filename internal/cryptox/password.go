// Package cryptox implements password hashing for stored credentials.
//
// Passwords are keyed with an application secret (HMAC-SHA256) and then run
// through argon2id. The result is a self-describing PHC string, so
// verification needs nothing but the encoded hash and the same secret:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<digest>
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// maxMemoryKiB bounds the memory cost accepted from a stored hash, so a
// corrupted row cannot make Verify allocate without limit.
const maxMemoryKiB = 4 * 1024 * 1024

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the parameters used for new hashes.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Params) validate() error {
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 || p.SaltLength == 0 || p.KeyLength == 0 {
		return fmt.Errorf("invalid argon2 params %+v", p)
	}
	if p.Memory > maxMemoryKiB {
		return fmt.Errorf("argon2 memory %d KiB exceeds limit", p.Memory)
	}
	return nil
}

// Hasher hashes and verifies passwords. It holds no mutable state and is safe
// for concurrent use.
type Hasher struct {
	params Params
}

func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// Hash derives a new encoded hash for password. A fresh salt is drawn on
// every call, so hashing the same password twice yields different strings.
func (h *Hasher) Hash(password string, secret []byte) (string, error) {
	if password == "" {
		return "", autherr.New(autherr.HashingFailure, "empty password")
	}
	if len(secret) == 0 {
		return "", autherr.New(autherr.ConfigurationError, "password secret key is not configured")
	}
	if err := h.params.validate(); err != nil {
		return "", autherr.Wrap(autherr.HashingFailure, "hash password", err)
	}

	salt := common.GenerateRandByteArray(int(h.params.SaltLength))
	digest := derive(password, secret, salt, h.params)

	return encode(h.params, salt, digest), nil
}

// Verify reports whether password matches encoded. A wrong password is not an
// error: it returns false, nil. An error is returned only when encoded cannot
// be parsed or the secret is missing.
func (h *Hasher) Verify(password string, encoded string, secret []byte) (bool, error) {
	if len(secret) == 0 {
		return false, autherr.New(autherr.ConfigurationError, "password secret key is not configured")
	}

	params, salt, want, err := decode(encoded)
	if err != nil {
		return false, autherr.Wrap(autherr.HashingFailure, "malformed password hash", err)
	}

	got := derive(password, secret, salt, params)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters other than
// the hasher's current ones. Unparseable hashes always need a rehash.
func (h *Hasher) NeedsRehash(encoded string) bool {
	params, salt, digest, err := decode(encoded)
	if err != nil {
		return true
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(digest))
	return params != h.params
}

func derive(password string, secret, salt []byte, p Params) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(password))
	keyed := mac.Sum(nil)
	defer common.WipeByteArray(keyed)

	return argon2.IDKey(keyed, salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
}

func encode(p Params, salt, digest []byte) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, fmt.Errorf("expected 5 hash segments, got %d", len(parts)-1)
	}
	if parts[1] != algorithmID {
		return p, nil, nil, fmt.Errorf("unsupported algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("parse version: %w", err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("parse params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode digest: %w", err)
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(digest))
	if err := p.validate(); err != nil {
		return p, nil, nil, err
	}

	return p, salt, digest, nil
}
