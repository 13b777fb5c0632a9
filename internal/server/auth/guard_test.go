package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	claims *Claims
	err    error
	got    string
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	f.got = token
	return f.claims, f.err
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer    ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc.def.ghi", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, "header %q", tt.header)
		assert.Equal(t, tt.want, got, "header %q", tt.header)
	}
}

func TestGuard_Check_States(t *testing.T) {
	t.Parallel()

	t.Run("missing header is rejected as TokenMissing", func(t *testing.T) {
		v := &fakeVerifier{}
		d := NewGuard(v).Check(context.Background(), "")
		assert.Equal(t, StateRejected, d.State)
		assert.True(t, autherr.IsKind(d.Err, autherr.TokenMissing))
		assert.Empty(t, v.got, "verifier must not be called")
	})

	t.Run("verified", func(t *testing.T) {
		v := &fakeVerifier{claims: &Claims{Subject: "alice"}}
		d := NewGuard(v).Check(context.Background(), "Bearer tok")
		assert.Equal(t, StateVerified, d.State)
		require.NotNil(t, d.Claims)
		assert.Equal(t, "alice", d.Claims.Subject)
		assert.NoError(t, d.Err)
		assert.Equal(t, "tok", v.got)
	})

	t.Run("verifier error kind is kept", func(t *testing.T) {
		v := &fakeVerifier{err: autherr.New(autherr.TokenExpired, "exp")}
		d := NewGuard(v).Check(context.Background(), "Bearer tok")
		assert.Equal(t, StateRejected, d.State)
		assert.True(t, autherr.IsKind(d.Err, autherr.TokenExpired))
		assert.Nil(t, d.Claims)
	})

	t.Run("untyped verifier error becomes TokenInvalid", func(t *testing.T) {
		v := &fakeVerifier{err: errors.New("boom")}
		d := NewGuard(v).Check(context.Background(), "Bearer tok")
		assert.Equal(t, StateRejected, d.State)
		assert.True(t, autherr.IsKind(d.Err, autherr.TokenInvalid))
	})
}

func TestGuard_Authenticate_WithCodec(t *testing.T) {
	t.Parallel()

	codec := NewCodec(WithSigner(hsSigner(t, testSecret, "authkeeper")), WithClock(fixedClock(epoch)))
	tok, err := codec.Issue(Claims{Subject: "alice", Roles: []string{"user"}}, time.Hour)
	require.NoError(t, err)

	g := NewGuard(codec)

	claims, err := g.Authenticate(context.Background(), "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = g.Authenticate(context.Background(), "Bearer "+tok+"x")
	assert.True(t, autherr.IsKind(err, autherr.TokenInvalid), "got %v", err)

	_, err = g.Authenticate(context.Background(), tok)
	assert.True(t, autherr.IsKind(err, autherr.TokenMissing), "got %v", err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "no_token", StateNoToken.String())
	assert.Equal(t, "parsed", StateParsed.String())
	assert.Equal(t, "verified", StateVerified.String())
	assert.Equal(t, "rejected", StateRejected.String())
	assert.Equal(t, "unknown", State(42).String())
}
