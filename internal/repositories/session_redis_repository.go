package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/seprediction/backend/internal/models"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

// sessionRedisRepository keeps sessions in Redis so they survive restarts and are shared between instances.
//
// Each session is a JSON string under session:<id> whose TTL matches the session expiry.
// user_sessions:<user id> is a set of session ids used to drop every session of a deleted user.
type sessionRedisRepository struct {
	client *redis.Client
	// indexTTL bounds the lifetime of the per-user index; it must be at least the longest session lifetime
	indexTTL time.Duration
}

// NewSessionRedisRepository creates a Redis backed session store
func NewSessionRedisRepository(client *redis.Client, indexTTL time.Duration) *sessionRedisRepository {
	return &sessionRedisRepository{
		client:   client,
		indexTTL: indexTTL,
	}
}

// Create stores a new session with a TTL that ends at its expiry
func (r *sessionRedisRepository) Create(ctx context.Context, session *models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return models.ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: failed to encode session: %w", models.ErrStore, err)
	}

	userKey := userSessionKey(session.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, ttl)
		pipe.SAdd(ctx, userKey, session.ID)
		pipe.Expire(ctx, userKey, r.indexTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store session: %w", models.ErrStore, err)
	}

	return nil
}

// Get returns a live session by id
func (r *sessionRedisRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get session: %w", models.ErrStore, err)
	}

	session := &models.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("%w: failed to decode session: %w", models.ErrStore, err)
	}

	return session, nil
}

// Update overwrites an existing session. SET XX keeps a concurrently deleted session deleted.
func (r *sessionRedisRepository) Update(ctx context.Context, session *models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return models.ErrSessionNotFound
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: failed to encode session: %w", models.ErrStore, err)
	}

	updated, err := r.client.SetXX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: failed to update session: %w", models.ErrStore, err)
	}
	if !updated {
		return models.ErrSessionNotFound
	}

	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *sessionRedisRepository) Delete(ctx context.Context, id string) error {
	session, err := r.Get(ctx, id)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, userSessionKey(session.UserID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete session: %w", models.ErrStore, err)
	}

	return nil
}

// DeleteByUser removes every session of the user and returns how many were removed
func (r *sessionRedisRepository) DeleteByUser(ctx context.Context, userID int) (int, error) {
	userKey := userSessionKey(userID)

	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to list user sessions: %w", models.ErrStore, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}

	var removed *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete user sessions: %w", models.ErrStore, err)
	}

	if removed == nil {
		return 0, nil
	}
	return int(removed.Val()), nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userSessionKey(userID int) string {
	return userSessionKeyPrefix + strconv.Itoa(userID)
}
