// Package autherr defines the error taxonomy of the authentication core.
//
// Every failure raised by password hashing, token handling, credential
// verification or the request guard is an *Error tagged with a Kind. The kind
// travels unchanged through the call chain and is translated into a transport
// status and a safe public message only at the boundary, by Public or GRPCCode.
package autherr

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable category of an authentication failure.
type Kind string

const (
	InvalidCredentials Kind = "INVALID_CREDENTIALS"
	UserNotFound       Kind = "USER_NOT_FOUND"
	UserAlreadyExists  Kind = "USER_ALREADY_EXISTS"
	TokenExpired       Kind = "TOKEN_EXPIRED"
	TokenInvalid       Kind = "TOKEN_INVALID"
	TokenMissing       Kind = "TOKEN_MISSING"
	HashingFailure     Kind = "HASHING_FAILURE"
	StorageFailure     Kind = "STORAGE_FAILURE"
	ConfigurationError Kind = "CONFIGURATION_ERROR"
	// InvalidInput is raised when a request is rejected before any credential
	// work starts (blank username or password).
	InvalidInput Kind = "INVALID_INPUT"
)

// Error is a tagged authentication failure.
type Error struct {
	Kind    Kind   // category used for translation at the boundary
	Message string // internal message, for logs only
	Cause   error  // wrapped underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error found in err's chain.
// ok is false when err carries no authentication kind.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
