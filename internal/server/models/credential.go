// Package models holds the records persisted by the server.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a stored login: a username and the self-describing hash of
// its password. The plaintext password never reaches this type.
type Credential struct {
	ID           string
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
}

// NewCredential prepares a credential for insertion.
func NewCredential(userName, passwordHash string) *Credential {
	return &Credential{
		ID:           uuid.NewString(),
		UserName:     userName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}
