package auth

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
)

// State is the progress of a single request through the guard.
type State int

const (
	StateNoToken State = iota
	StateParsed
	StateVerified
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateParsed:
		return "parsed"
	case StateVerified:
		return "verified"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Guard.Check. Claims is set when State is
// StateVerified, Err when it is StateRejected.
type Decision struct {
	State  State
	Claims *Claims
	Err    error
}

// TokenVerifier is implemented by *Codec.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Guard turns an Authorization value into an identity or a rejection. It
// knows nothing about transports; HTTP and gRPC adapters translate its
// errors with autherr.
type Guard struct {
	verifier TokenVerifier
}

func NewGuard(v TokenVerifier) *Guard {
	return &Guard{verifier: v}
}

// Check runs the guard state machine for one request.
func (g *Guard) Check(ctx context.Context, authorization string) Decision {
	d := Decision{State: StateNoToken}

	token, ok := BearerToken(authorization)
	if !ok {
		d.State = StateRejected
		d.Err = autherr.New(autherr.TokenMissing, "no bearer token")
		return d
	}
	d.State = StateParsed

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		if _, ok := autherr.KindOf(err); !ok {
			err = autherr.Wrap(autherr.TokenInvalid, "verify token", err)
		}
		d.State = StateRejected
		d.Err = err
		return d
	}

	d.State = StateVerified
	d.Claims = claims
	return d
}

// Authenticate is Check for callers that only need the result.
func (g *Guard) Authenticate(ctx context.Context, authorization string) (*Claims, error) {
	d := g.Check(ctx, authorization)
	if d.State != StateVerified {
		return nil, d.Err
	}
	return d.Claims, nil
}

// BearerToken extracts the token from an Authorization value. The scheme is
// matched case-insensitively.
func BearerToken(authorization string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
