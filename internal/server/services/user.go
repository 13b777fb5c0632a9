// Package services contains server-side business logic. This file implements
// UserService, which signs users up, checks their credentials on login and
// mints access tokens for verified identities.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

const (
	maxUserNameLength = 255
	// argon2 is fed an HMAC of the password, but bound the input anyway
	maxPasswordLength = 1024

	// hashed once and verified against when a user does not exist
	dummyPassword = "timing-equalizer"

	// DefaultRole is granted to every local account.
	DefaultRole = "user"
)

// PasswordHasher is implemented by *cryptox.Hasher.
type PasswordHasher interface {
	Hash(password string, secret []byte) (string, error)
	Verify(password, encoded string, secret []byte) (bool, error)
	NeedsRehash(encoded string) bool
}

// TokenIssuer is implemented by *auth.Codec.
type TokenIssuer interface {
	Issue(claims auth.Claims, ttl time.Duration) (string, error)
}

// AccessToken is what a successful login hands back to the client.
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresIn time.Duration
}

// UserService provides authentication-related operations:
// - SignUp: hash a password and store the new credential
// - LogIn: verify a password against the stored credential
// - IssueAccessToken: sign a bearer token for verified claims
//
// It holds no per-request state and is safe for concurrent use.
type UserService struct {
	users    users.Repository
	hasher   PasswordHasher
	secret   []byte
	tokens   TokenIssuer
	tokenTTL time.Duration
	log      logging.Logger

	// verified against when a user does not exist; empty without a secret
	dummyHash string
}

// NewUserService wires the service. secret is the password hashing key;
// tokens may be nil when the service only checks passwords. The dummy hash
// for unknown users is made here so that no login pays for it.
func NewUserService(repo users.Repository, hasher PasswordHasher, secret []byte, tokens TokenIssuer, tokenTTL time.Duration, log logging.Logger) *UserService {
	s := &UserService{
		users:    repo,
		hasher:   hasher,
		secret:   secret,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		log:      log.With("component", "user_service"),
	}
	if h, err := hasher.Hash(dummyPassword, secret); err == nil {
		s.dummyHash = h
	}
	return s
}

// SignUp creates a credential for userName. The password is hashed before the
// store is touched, so no connection is held while argon2 runs.
func (s *UserService) SignUp(ctx context.Context, userName, password string) (*models.Credential, error) {
	userName, err := validate(userName, password)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password, s.secret)
	if err != nil {
		return nil, asKind(err, autherr.HashingFailure, "hash password")
	}

	cred := models.NewCredential(userName, hash)
	if err := s.users.Insert(ctx, cred); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, autherr.Wrap(autherr.UserAlreadyExists, "user "+userName+" already exists", err)
		}
		return nil, autherr.Wrap(autherr.StorageFailure, "insert user", err)
	}

	s.log.Info(ctx, "user signed up", "user", userName, "id", cred.ID)
	return cred, nil
}

// LogIn checks password against the stored credential and returns the claims
// to put into a token. A missing user and a wrong password are different
// kinds here; autherr.Public makes them look the same to the client.
func (s *UserService) LogIn(ctx context.Context, userName, password string) (*auth.Claims, error) {
	userName, err := validate(userName, password)
	if err != nil {
		return nil, err
	}

	cred, err := s.users.Find(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerification(password)
			return nil, autherr.Wrap(autherr.UserNotFound, "user "+userName+" not found", err)
		}
		return nil, autherr.Wrap(autherr.StorageFailure, "find user", err)
	}

	ok, err := s.hasher.Verify(password, cred.PasswordHash, s.secret)
	if err != nil {
		return nil, asKind(err, autherr.HashingFailure, "verify password")
	}
	if !ok {
		return nil, autherr.New(autherr.InvalidCredentials, "wrong password for "+userName)
	}

	if s.hasher.NeedsRehash(cred.PasswordHash) {
		s.rehash(ctx, cred, password)
	}

	return &auth.Claims{Subject: cred.UserName, Roles: []string{DefaultRole}}, nil
}

// IssueAccessToken signs claims with the configured TTL.
func (s *UserService) IssueAccessToken(claims *auth.Claims) (*AccessToken, error) {
	if s.tokens == nil {
		return nil, autherr.New(autherr.ConfigurationError, "token issuer is not configured")
	}
	tok, err := s.tokens.Issue(*claims, s.tokenTTL)
	if err != nil {
		return nil, asKind(err, autherr.ConfigurationError, "issue token")
	}
	return &AccessToken{Token: tok, TokenType: common.BearerScheme, ExpiresIn: s.tokenTTL}, nil
}

// rehash upgrades a hash made with old parameters. Failure is logged and
// otherwise ignored: the login itself already succeeded.
func (s *UserService) rehash(ctx context.Context, cred *models.Credential, password string) {
	hash, err := s.hasher.Hash(password, s.secret)
	if err != nil {
		s.log.Warn(ctx, "rehash failed", "user", cred.UserName, "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, cred.ID, hash); err != nil {
		s.log.Warn(ctx, "storing rehashed password failed", "user", cred.UserName, "error", err)
		return
	}
	s.log.Debug(ctx, "password rehashed", "user", cred.UserName)
}

// burnVerification runs one verification against a throwaway hash so that an
// unknown user costs as much time as a wrong password.
func (s *UserService) burnVerification(password string) {
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash, s.secret)
	}
}

func validate(userName, password string) (string, error) {
	userName = strings.TrimSpace(userName)
	switch {
	case userName == "":
		return "", autherr.New(autherr.InvalidInput, "username is required")
	case password == "":
		return "", autherr.New(autherr.InvalidInput, "password is required")
	case utf8.RuneCountInString(userName) > maxUserNameLength:
		return "", autherr.New(autherr.InvalidInput, "username is too long")
	case len(password) > maxPasswordLength:
		return "", autherr.New(autherr.InvalidInput, "password is too long")
	}
	return userName, nil
}

// asKind keeps err's kind if it has one and tags it with fallback otherwise.
func asKind(err error, fallback autherr.Kind, msg string) error {
	if _, ok := autherr.KindOf(err); ok {
		return err
	}
	return autherr.Wrap(fallback, msg, err)
}
