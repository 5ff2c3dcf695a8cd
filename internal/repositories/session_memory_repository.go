package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/seprediction/backend/internal/models"
)

// sessionMemoryRepository keeps sessions in process memory.
//
// Sessions do not survive a restart. Expired entries are hidden from Get and removed by DeleteExpired.
type sessionMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	byUser   map[int]map[string]struct{}
	now      func() time.Time
}

// NewSessionMemoryRepository creates an empty in-memory session store
func NewSessionMemoryRepository() *sessionMemoryRepository {
	return &sessionMemoryRepository{
		sessions: make(map[string]models.Session),
		byUser:   make(map[int]map[string]struct{}),
		now:      time.Now,
	}
}

// Create stores a new session
func (r *sessionMemoryRepository) Create(ctx context.Context, session *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = *session
	ids, ok := r.byUser[session.UserID]
	if !ok {
		ids = make(map[string]struct{})
		r.byUser[session.UserID] = ids
	}
	ids[session.ID] = struct{}{}

	return nil
}

// Get returns a live session by id
func (r *sessionMemoryRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok || session.Expired(r.now()) {
		return nil, models.ErrSessionNotFound
	}

	return &session, nil
}

// Update overwrites an existing session. A session deleted in the meantime is not recreated.
func (r *sessionMemoryRepository) Update(ctx context.Context, session *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return models.ErrSessionNotFound
	}
	r.sessions[session.ID] = *session

	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *sessionMemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteLocked(id)
	return nil
}

// DeleteByUser removes every session of the user and returns how many were removed
func (r *sessionMemoryRepository) DeleteByUser(ctx context.Context, userID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byUser[userID]
	for id := range ids {
		delete(r.sessions, id)
	}
	delete(r.byUser, userID)

	return len(ids), nil
}

// DeleteExpired removes every session that expired before now
func (r *sessionMemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.Expired(now) {
			r.deleteLocked(id)
			removed++
		}
	}

	return removed, nil
}

func (r *sessionMemoryRepository) deleteLocked(id string) {
	session, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)

	if ids, ok := r.byUser[session.UserID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(r.byUser, session.UserID)
		}
	}
}
