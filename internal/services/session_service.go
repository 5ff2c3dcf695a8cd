package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/seprediction/backend/internal/auth/service"
	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

// SessionRepository is the interface that wraps methods for session storage
type SessionRepository interface {
	// Method Create stores a new session.
	//
	// If some error occurs during storing, the error will be returned.
	Create(ctx context.Context, session *models.Session) error
	// Method Get retrieves a live session by id.
	//
	// If the session does not exist or has expired, models.ErrSessionNotFound will be returned.
	Get(ctx context.Context, id string) (*models.Session, error)
	// Method Update overwrites an existing session.
	//
	// If the session no longer exists, models.ErrSessionNotFound will be returned and nothing is written.
	Update(ctx context.Context, session *models.Session) error
	// Method Delete removes a session. Unknown ids are ignored.
	Delete(ctx context.Context, id string) error
	// Method DeleteByUser removes every session of the user and returns how many were removed.
	DeleteByUser(ctx context.Context, userID int) (int, error)
}

// SessionUserLookup resolves the user behind a session
type SessionUserLookup interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// sessionService issues and validates login sessions
type sessionService struct {
	sessions      SessionRepository
	users         SessionUserLookup
	tokens        *service.TokenGenerator
	persistentTTL time.Duration
	ephemeralTTL  time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	sessions SessionRepository,
	users SessionUserLookup,
	tokens *service.TokenGenerator,
	persistentTTL time.Duration,
	ephemeralTTL time.Duration,
	logger *zap.Logger,
) *sessionService {
	return &sessionService{
		sessions:      sessions,
		users:         users,
		tokens:        tokens,
		persistentTTL: persistentTTL,
		ephemeralTTL:  ephemeralTTL,
		logger:        logger,
		now:           time.Now,
	}
}

// Issue creates a session for an authenticated user and returns it with its signed token.
//
// A session carried by previousToken is dropped first, so a new login never keeps the old session id.
func (s *sessionService) Issue(ctx context.Context, user *models.User, remember bool, previousToken string) (*models.Session, string, error) {
	if previousToken != "" {
		if id, err := s.tokens.Validate(previousToken); err == nil {
			if err := s.sessions.Delete(ctx, id); err != nil {
				s.logger.Warn("failed to drop previous session", zap.Error(err))
			}
		}
	}

	now := s.now().UTC()
	durability := models.DurabilityEphemeral
	ttl := s.ephemeralTTL
	if remember {
		durability = models.DurabilityPersistent
		ttl = s.persistentTTL
	}

	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		LoginTime:    now,
		LastActivity: now,
		Durability:   durability,
		ExpiresAt:    now.Add(ttl),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.tokens.Generate(session.ID, session.ExpiresAt)
	if err != nil {
		if delErr := s.sessions.Delete(ctx, session.ID); delErr != nil {
			s.logger.Warn("failed to drop unsigned session", zap.Error(delErr))
		}
		return nil, "", err
	}

	return session, token, nil
}

// Validate resolves a token to its live session.
//
// The user behind the session must still exist; a session of a deleted user is removed
// and models.ErrStaleUser is returned.
func (s *sessionService) Validate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, models.ErrSessionInvalid
	}

	id, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, service.ErrTokenExpired) {
			return nil, models.ErrSessionExpired
		}
		return nil, models.ErrSessionInvalid
	}

	session, err := s.sessions.Get(ctx, id)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, models.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}

	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, models.ErrSessionExpired
	}

	if _, err := s.users.GetByID(ctx, session.UserID); err != nil {
		if !errors.Is(err, models.ErrUserNotFound) {
			return nil, err
		}
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete stale session", zap.Error(err))
		}
		s.logger.Info("session user no longer exists",
			zap.Int("user_id", session.UserID),
			zap.String("email", session.Email),
		)
		return nil, models.ErrStaleUser
	}

	return session, nil
}

// Touch records activity on the session.
//
// Persistent sessions slide their expiry forward and get a fresh token, which is returned.
// Ephemeral sessions keep their expiry and the returned token is empty.
func (s *sessionService) Touch(ctx context.Context, session *models.Session) (*models.Session, string, error) {
	now := s.now().UTC()

	touched := *session
	touched.LastActivity = now

	var token string
	if touched.IsPersistent() {
		touched.ExpiresAt = now.Add(s.persistentTTL)

		var err error
		token, err = s.tokens.Generate(touched.ID, touched.ExpiresAt)
		if err != nil {
			return nil, "", err
		}
	}

	if err := s.sessions.Update(ctx, &touched); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil, "", models.ErrSessionExpired
		}
		return nil, "", err
	}

	return &touched, token, nil
}

// Invalidate ends the session carried by the token. Tokens that no longer verify are ignored.
func (s *sessionService) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	id, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}

	return s.sessions.Delete(ctx, id)
}

// InvalidateUser ends every session of the user
func (s *sessionService) InvalidateUser(ctx context.Context, userID int) (int, error) {
	return s.sessions.DeleteByUser(ctx, userID)
}
