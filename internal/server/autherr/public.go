package autherr

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Public messages. Responses never carry anything else.
const (
	MsgInvalidLogin  = "invalid username or password"
	MsgUserExists    = "user already exists"
	MsgUnauthorized  = "unauthorized"
	MsgInvalidInput  = "invalid request"
	MsgInternalError = "internal server error"
)

// Public maps err to the HTTP status and message that may be shown to a client.
//
// Login failures collapse to one answer so that a caller cannot tell an
// unknown username from a wrong password. Token failures collapse likewise.
// UserAlreadyExists is revealed on purpose: sign-up has to tell the user the
// name is taken. Errors that carry no Kind are treated as internal.
func Public(err error) (status int, message string) {
	kind, _ := KindOf(err)
	switch kind {
	case InvalidCredentials, UserNotFound:
		return http.StatusUnauthorized, MsgInvalidLogin
	case UserAlreadyExists:
		return http.StatusConflict, MsgUserExists
	case TokenExpired, TokenInvalid, TokenMissing:
		return http.StatusUnauthorized, MsgUnauthorized
	case InvalidInput:
		return http.StatusBadRequest, MsgInvalidInput
	default:
		return http.StatusInternalServerError, MsgInternalError
	}
}

// GRPCCode is the gRPC counterpart of Public.
func GRPCCode(err error) (codes.Code, string) {
	kind, _ := KindOf(err)
	switch kind {
	case InvalidCredentials, UserNotFound:
		return codes.Unauthenticated, MsgInvalidLogin
	case UserAlreadyExists:
		return codes.AlreadyExists, MsgUserExists
	case TokenExpired, TokenInvalid, TokenMissing:
		return codes.Unauthenticated, MsgUnauthorized
	case InvalidInput:
		return codes.InvalidArgument, MsgInvalidInput
	default:
		return codes.Internal, MsgInternalError
	}
}
