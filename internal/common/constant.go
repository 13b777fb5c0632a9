// Package common contains shared constants, sentinel errors and small
// helpers used across the authkeeper server and tools.
package common

// AuthorizationHeaderName is the HTTP header and gRPC metadata key that
// carries the bearer token on inbound requests.
const AuthorizationHeaderName = "authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"
