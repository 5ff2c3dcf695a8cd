package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/seprediction/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryTestSession(id string, userID int, expiresAt time.Time) *models.Session {
	return &models.Session{
		ID:         id,
		UserID:     userID,
		Email:      "ann@x.com",
		Name:       "Ann",
		Role:       models.RoleUser,
		Durability: models.DurabilityEphemeral,
		ExpiresAt:  expiresAt,
	}
}

func TestSessionMemoryRepository_CreateGet(t *testing.T) {
	repo := NewSessionMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, memoryTestSession("s1", 2, now.Add(time.Hour))))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UserID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestSessionMemoryRepository_ExpiredHidden(t *testing.T) {
	repo := NewSessionMemoryRepository()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Create(ctx, memoryTestSession("s1", 2, now)))

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestSessionMemoryRepository_UpdateDoesNotResurrect(t *testing.T) {
	repo := NewSessionMemoryRepository()
	ctx := context.Background()
	session := memoryTestSession("s1", 2, time.Now().Add(time.Hour))

	err := repo.Update(ctx, session)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	require.NoError(t, repo.Create(ctx, session))
	session.Name = "Ann B"
	require.NoError(t, repo.Update(ctx, session))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Ann B", got.Name)

	require.NoError(t, repo.Delete(ctx, "s1"))
	assert.ErrorIs(t, repo.Update(ctx, session), models.ErrSessionNotFound)
}

func TestSessionMemoryRepository_DeleteByUser(t *testing.T) {
	repo := NewSessionMemoryRepository()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	require.NoError(t, repo.Create(ctx, memoryTestSession("a", 2, expires)))
	require.NoError(t, repo.Create(ctx, memoryTestSession("b", 2, expires)))
	require.NoError(t, repo.Create(ctx, memoryTestSession("c", 3, expires)))

	removed, err := repo.DeleteByUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	_, err = repo.Get(ctx, "c")
	assert.NoError(t, err)

	removed, err = repo.DeleteByUser(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSessionMemoryRepository_DeleteExpired(t *testing.T) {
	repo := NewSessionMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, memoryTestSession("old", 2, now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, memoryTestSession("live", 2, now.Add(time.Hour))))

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, repo.sessions, 1)
	assert.Len(t, repo.byUser[2], 1)
}
