// Package users stores credentials. Every backend reports a missing user as
// common.ErrorNotFound and a taken username as common.ErrorAlreadyExists;
// anything else is an infrastructure error wrapped as "db error".
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	Find(ctx context.Context, userName string) (*models.Credential, error)
	Insert(ctx context.Context, c *models.Credential) error
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}
