package repositories

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/seprediction/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func persistentTestSession(id string, userID int, expiresAt time.Time) *models.Session {
	session := memoryTestSession(id, userID, expiresAt)
	session.Durability = models.DurabilityPersistent
	return session
}

func TestSessionFileRepository_PersistentSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()
	now := time.Now()

	repo, err := NewSessionFileRepository(path)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, persistentTestSession("remembered", 2, now.Add(24*time.Hour))))
	require.NoError(t, repo.Create(ctx, memoryTestSession("ephemeral", 2, now.Add(time.Hour))))

	touched := persistentTestSession("remembered", 2, now.Add(48*time.Hour))
	touched.LastActivity = now
	require.NoError(t, repo.Update(ctx, touched))

	restarted, err := NewSessionFileRepository(path)
	require.NoError(t, err)

	got, err := restarted.Get(ctx, "remembered")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UserID)
	assert.True(t, touched.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, models.DurabilityPersistent, got.Durability)

	_, err = restarted.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestSessionFileRepository_DeletesAreWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()
	now := time.Now()

	repo, err := NewSessionFileRepository(path)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, persistentTestSession("s1", 2, now.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, persistentTestSession("s2", 3, now.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, persistentTestSession("s3", 3, now.Add(time.Hour))))

	require.NoError(t, repo.Delete(ctx, "s1"))
	removed, err := repo.DeleteByUser(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	restarted, err := NewSessionFileRepository(path)
	require.NoError(t, err)

	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := restarted.Get(ctx, id)
		assert.ErrorIs(t, err, models.ErrSessionNotFound, id)
	}
}

func TestSessionFileRepository_ExpiredNotRestored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()
	now := time.Now()

	repo, err := NewSessionFileRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, persistentTestSession("old", 2, now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, persistentTestSession("live", 2, now.Add(time.Hour))))

	restarted, err := NewSessionFileRepository(path)
	require.NoError(t, err)

	restarted.mu.RLock()
	_, oldLoaded := restarted.sessions["old"]
	_, liveLoaded := restarted.sessions["live"]
	restarted.mu.RUnlock()

	assert.False(t, oldLoaded)
	assert.True(t, liveLoaded)

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestSessionFileRepository_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	repo, err := NewSessionFileRepository(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Create(ctx, persistentTestSession(string(rune('a'+i)), i, expires)))
		}(i)
	}
	wg.Wait()

	restarted, err := NewSessionFileRepository(path)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err := restarted.Get(ctx, string(rune('a'+i)))
		assert.NoError(t, err)
	}
}

func TestSessionFileRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewSessionFileRepository(path)
	assert.ErrorIs(t, err, models.ErrStore)
}
