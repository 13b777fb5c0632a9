package users

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// MemoryRepository keeps credentials in process memory. It backs tests and
// the "memory" DSN.
type MemoryRepository struct {
	mu     sync.RWMutex
	byName map[string]models.Credential
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byName: make(map[string]models.Credential)}
}

func (r *MemoryRepository) Insert(ctx context.Context, c *models.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[c.UserName]; ok {
		return common.ErrorAlreadyExists
	}
	for _, existing := range r.byName {
		if existing.ID == c.ID {
			return common.ErrorAlreadyExists
		}
	}
	r.byName[c.UserName] = *c
	return nil
}

func (r *MemoryRepository) Find(ctx context.Context, userName string) (*models.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byName[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, c := range r.byName {
		if c.ID == id {
			c.PasswordHash = passwordHash
			r.byName[name] = c
			return nil
		}
	}
	return common.ErrorNotFound
}
