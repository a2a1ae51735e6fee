package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-enhancer/internal/domain"
	"image-enhancer/internal/repository"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, Migrate(context.Background(), db))

	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('users','image_history')`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	r := NewUserRepository(db)
	ctx := context.Background()

	u := &domain.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "hash"}
	id, err := r.Create(ctx, u)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := r.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, "Ada", byEmail.Name)
	assert.Equal(t, "hash", byEmail.PasswordHash)
}

func TestUserRepository_NotFound(t *testing.T) {
	r := NewUserRepository(setupDB(t))

	_, err := r.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	r := NewUserRepository(setupDB(t))
	ctx := context.Background()

	_, err := r.Create(ctx, &domain.User{Email: "dup@example.com", Name: "A", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = r.Create(ctx, &domain.User{Email: "dup@example.com", Name: "B", PasswordHash: "h"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserRepository_ConcurrentDuplicate(t *testing.T) {
	r := NewUserRepository(setupDB(t))
	ctx := context.Background()

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Create(ctx, &domain.User{Email: "race@example.com", Name: "R", PasswordHash: "h"})
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, repository.ErrDuplicate):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)
}

func TestHistoryRepository_ListNewestFirst(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	history := NewHistoryRepository(db)
	ctx := context.Background()

	owner := &domain.User{Email: "owner@example.com", Name: "Owner", PasswordHash: "h"}
	_, err := users.Create(ctx, owner)
	require.NoError(t, err)
	other := &domain.User{Email: "other@example.com", Name: "Other", PasswordHash: "h"}
	_, err = users.Create(ctx, other)
	require.NoError(t, err)

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		_, err := history.Create(ctx, &domain.HistoryRecord{
			UserID:           owner.ID,
			OriginalFilename: name,
			EnhancedFilename: "enhanced_" + name,
			FilterType:       "blur",
		})
		require.NoError(t, err)
	}
	_, err = history.Create(ctx, &domain.HistoryRecord{UserID: other.ID, OriginalFilename: "x.png", EnhancedFilename: "enhanced_x.png"})
	require.NoError(t, err)

	records, err := history.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "c.png", records[0].OriginalFilename)
	assert.Equal(t, "b.png", records[1].OriginalFilename)
	assert.Equal(t, "a.png", records[2].OriginalFilename)
	assert.Equal(t, "enhanced_c.png", records[0].EnhancedFilename)
	assert.Equal(t, "blur", records[0].FilterType)
	assert.False(t, records[0].Timestamp.IsZero())

	empty, err := history.ListByUser(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHistoryRepository_RequiresExistingUser(t *testing.T) {
	history := NewHistoryRepository(setupDB(t))

	_, err := history.Create(context.Background(), &domain.HistoryRecord{
		UserID:           12345,
		OriginalFilename: "a.png",
		EnhancedFilename: "enhanced_a.png",
	})
	assert.Error(t, err)
}
