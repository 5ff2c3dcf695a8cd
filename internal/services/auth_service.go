package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/seprediction/backend/internal/auth/service"
	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

// AuthUserRepository is the interface that wraps the credential store methods used by registration and login
type AuthUserRepository interface {
	// Method Create inserts a new user.
	//
	// "user" parameter must carry a normalized email. Its ID is set on success.
	//
	// If the email is already registered, models.ErrUserExists will be returned.
	Create(ctx context.Context, user *models.User) error
	// Method GetByEmail retrieves a user by normalized email.
	//
	// If user with such email does not exist, models.ErrUserNotFound will be returned together with "nil" value.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Method UpdatePasswordHash replaces the digest of a user while it still equals "oldHash".
	//
	// If the user is gone or the digest has changed meanwhile, models.ErrUserNotFound will be returned.
	UpdatePasswordHash(ctx context.Context, email, oldHash, newHash string) error
}

// SessionIssuer creates and ends login sessions
type SessionIssuer interface {
	Issue(ctx context.Context, user *models.User, remember bool, previousToken string) (*models.Session, string, error)
	Invalidate(ctx context.Context, token string) error
}

// authService implements registration, login and logout
type authService struct {
	userRepo AuthUserRepository
	sessions SessionIssuer
	hasher   *service.PasswordHasher
	approval *ApprovalMachine
	logger   *zap.Logger
	now      func() time.Time
	// dummyHash is verified against when the email is unknown so both failures cost the same
	dummyHash string
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo AuthUserRepository,
	sessions SessionIssuer,
	hasher *service.PasswordHasher,
	approval *ApprovalMachine,
	logger *zap.Logger,
) *authService {
	dummyHash, err := hasher.Hash("not-a-real-password")
	if err != nil {
		logger.Warn("failed to prepare dummy password hash", zap.Error(err))
	}

	return &authService{
		userRepo:  userRepo,
		sessions:  sessions,
		hasher:    hasher,
		approval:  approval,
		logger:    logger,
		now:       time.Now,
		dummyHash: dummyHash,
	}
}

// maxPasswordBytes is the longest input bcrypt accepts
const maxPasswordBytes = 72

// Register creates a pending user account
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	email := models.NormalizeEmail(req.Email)

	if name == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, models.ErrMissingFields
	}
	if req.Password != req.ConfirmPassword {
		return nil, models.ErrPasswordMismatch
	}
	if !models.IsValidEmail(email) {
		return nil, models.ErrInvalidEmail
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, models.ErrPasswordTooLong
	}

	status, err := s.approval.InitialStatus(models.RoleUser)
	if err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		Status:       status,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, models.ErrUserExists) {
			s.logger.Error("failed to create user", zap.Error(err), zap.String("email", email))
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Int("user_id", user.ID), zap.String("email", email))
	return user, nil
}

// Login verifies credentials and approval status and issues a session.
//
// Unknown email and wrong password are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest, previousToken string) (*models.Session, string, error) {
	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, "", models.ErrMissingFields
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrUserNotFound) {
		s.hasher.Verify(req.Password, s.dummyHash)
		return nil, "", models.ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("failed to get user", zap.Error(err), zap.String("email", email))
		return nil, "", err
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, "", models.ErrInvalidCredentials
	}
	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradePasswordHash(ctx, user, req.Password)
	}

	if err := s.approval.CheckLogin(user); err != nil {
		return nil, "", err
	}

	session, token, err := s.sessions.Issue(ctx, user, req.Remember, previousToken)
	if err != nil {
		s.logger.Error("failed to issue session", zap.Error(err), zap.Int("user_id", user.ID))
		return nil, "", err
	}

	s.logger.Info("user logged in",
		zap.Int("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("durability", string(session.Durability)),
	)
	return session, token, nil
}

// upgradePasswordHash replaces an imported digest with bcrypt. Failures keep the old digest.
func (s *authService) upgradePasswordHash(ctx context.Context, user *models.User, password string) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("failed to rehash imported password", zap.Error(err), zap.Int("user_id", user.ID))
		return
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, user.Email, user.PasswordHash, digest); err != nil {
		s.logger.Warn("failed to store rehashed password", zap.Error(err), zap.Int("user_id", user.ID))
		return
	}

	user.PasswordHash = digest
	s.logger.Info("imported password upgraded to bcrypt", zap.Int("user_id", user.ID))
}

// Logout ends the session carried by the token
func (s *authService) Logout(ctx context.Context, token string) error {
	return s.sessions.Invalidate(ctx, token)
}
