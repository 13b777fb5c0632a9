package users

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	c := models.NewCredential("alice", "h")
	require.NoError(t, repo.Insert(ctx, c))
	assert.ErrorIs(t, repo.Insert(ctx, models.NewCredential("alice", "h2")), common.ErrorAlreadyExists)

	got, err := repo.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	// returned values are copies
	got.PasswordHash = "tampered"
	again, _ := repo.Find(ctx, "alice")
	assert.Equal(t, "h", again.PasswordHash)

	require.NoError(t, repo.UpdatePasswordHash(ctx, c.ID, "h3"))
	again, _ = repo.Find(ctx, "alice")
	assert.Equal(t, "h3", again.PasswordHash)

	_, err = repo.Find(ctx, "bob")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, "nope", "x"), common.ErrorNotFound)
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.Insert(ctx, models.NewCredential("a", "h")), context.Canceled)
	_, err := repo.Find(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRepository_ConcurrentSignUpsOneWins(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Insert(ctx, models.NewCredential("alice", "h")); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}
