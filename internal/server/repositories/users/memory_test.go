package users

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/jobtrack/internal/common"
	"github.com/dmitrijs2005/jobtrack/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h", Role: models.RoleUser})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", byID.Name)

	byID.Name = "mutated"
	again, _ := repo.GetByID(ctx, created.ID)
	assert.Equal(t, "Ann", again.Name, "returned records must be copies")
}

func TestMemoryRepository_EmailIsCaseSensitive(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.User{Email: "Ann@example.com"})
	require.NoError(t, err)

	_, err = repo.GetByEmail(ctx, "ann@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_NotFound(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, "ghost", "h"), common.ErrorNotFound)
}

func TestMemoryRepository_UpdatePasswordRefreshesUpdatedAt(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	u, err := repo.Create(ctx, &models.User{Email: "ann@example.com", PasswordHash: "old"})
	require.NoError(t, err)

	repo.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new"))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Equal(t, base, got.CreatedAt)
	assert.Equal(t, base.Add(time.Hour), got.UpdatedAt)
}

func TestMemoryRepository_ConcurrentCreateSameEmail(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	const n = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		okCount int
		dups    int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, &models.User{Email: "race@example.com"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okCount++
			case errors.Is(err, common.ErrDuplicateEmail):
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, okCount)
	assert.Equal(t, n-1, dups)
}
