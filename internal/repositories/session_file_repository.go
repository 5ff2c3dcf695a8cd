package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/seprediction/backend/internal/models"
)

// sessionFileDocument is the on-disk layout of the sessions file
type sessionFileDocument struct {
	Sessions []models.Session `json:"sessions"`
}

// sessionFileRepository serves sessions from memory and mirrors the persistent ones to a JSON file,
// so "remember me" logins survive a restart without Redis. Ephemeral sessions stay in memory only.
type sessionFileRepository struct {
	*sessionMemoryRepository
	path string
	// writeMu orders snapshots so an older one never replaces a newer one on disk
	writeMu sync.Mutex
}

// NewSessionFileRepository loads the live persistent sessions stored at path
func NewSessionFileRepository(path string) (*sessionFileRepository, error) {
	r := &sessionFileRepository{
		sessionMemoryRepository: NewSessionMemoryRepository(),
		path:                    path,
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

// Create stores a new session and persists it when it is persistent
func (r *sessionFileRepository) Create(ctx context.Context, session *models.Session) error {
	if err := r.sessionMemoryRepository.Create(ctx, session); err != nil {
		return err
	}
	if !session.IsPersistent() {
		return nil
	}
	return r.persist()
}

// Update overwrites an existing session and persists it when it is persistent
func (r *sessionFileRepository) Update(ctx context.Context, session *models.Session) error {
	if err := r.sessionMemoryRepository.Update(ctx, session); err != nil {
		return err
	}
	if !session.IsPersistent() {
		return nil
	}
	return r.persist()
}

// Delete removes a session from memory and from the file
func (r *sessionFileRepository) Delete(ctx context.Context, id string) error {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()

	if err := r.sessionMemoryRepository.Delete(ctx, id); err != nil {
		return err
	}
	if !ok || !session.IsPersistent() {
		return nil
	}
	return r.persist()
}

// DeleteByUser removes every session of the user and returns how many were removed
func (r *sessionFileRepository) DeleteByUser(ctx context.Context, userID int) (int, error) {
	removed, err := r.sessionMemoryRepository.DeleteByUser(ctx, userID)
	if err != nil || removed == 0 {
		return removed, err
	}
	return removed, r.persist()
}

// DeleteExpired removes every session that expired before now
func (r *sessionFileRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed, err := r.sessionMemoryRepository.DeleteExpired(ctx, now)
	if err != nil || removed == 0 {
		return removed, err
	}
	return removed, r.persist()
}

// persist writes a snapshot of the persistent sessions
func (r *sessionFileRepository) persist() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	doc := sessionFileDocument{Sessions: make([]models.Session, 0)}

	r.mu.RLock()
	for _, session := range r.sessions {
		if session.IsPersistent() {
			doc.Sessions = append(doc.Sessions, session)
		}
	}
	r.mu.RUnlock()

	sort.Slice(doc.Sessions, func(i, j int) bool {
		return doc.Sessions[i].ID < doc.Sessions[j].ID
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode sessions: %w", models.ErrStore, err)
	}

	return writeFileAtomic(r.path, data)
}

// load restores the sessions that have not expired yet
func (r *sessionFileRepository) load() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read sessions file: %w", models.ErrStore, err)
	}

	var doc sessionFileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: sessions file is corrupt: %w", models.ErrStore, err)
	}

	now := r.now()
	ctx := context.Background()
	for i := range doc.Sessions {
		session := doc.Sessions[i]
		if session.ID == "" || session.Expired(now) {
			continue
		}
		if err := r.sessionMemoryRepository.Create(ctx, &session); err != nil {
			return err
		}
	}

	return nil
}
