package services

import (
	"context"
	"errors"

	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

const (
	// joinedLayout formats the registration date on the dashboard
	joinedLayout = "2006-01-02"
	// statusAttempts bounds how often a transition is re-evaluated after losing a race
	statusAttempts = 3
)

// AdminUserRepository is the interface that wraps the credential store methods used by admin operations
type AdminUserRepository interface {
	// Method GetByEmail retrieves a user by normalized email.
	//
	// If user with such email does not exist, models.ErrUserNotFound will be returned together with "nil" value.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Method UpdateStatus moves a non-admin user from status "from" to status "to".
	//
	// Returns models.ErrForbidden for admin accounts and models.ErrUserNotFound for unknown emails.
	// If the stored status is no longer "from", models.ErrInvalidTransition will be returned and nothing changes.
	UpdateStatus(ctx context.Context, email string, from, to models.Status) error
	// Method Delete removes a non-admin user and returns the removed record.
	//
	// Returns models.ErrForbidden for admin accounts and models.ErrUserNotFound for unknown emails.
	Delete(ctx context.Context, email string) (*models.User, error)
	// Method ListNonAdmin returns every non-admin user ordered by registration time.
	ListNonAdmin(ctx context.Context) ([]models.User, error)
}

// SessionInvalidator ends every session of a user
type SessionInvalidator interface {
	InvalidateUser(ctx context.Context, userID int) (int, error)
}

// adminService implements the admin user management operations
type adminService struct {
	userRepo AdminUserRepository
	sessions SessionInvalidator
	approval *ApprovalMachine
	logger   *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	userRepo AdminUserRepository,
	sessions SessionInvalidator,
	approval *ApprovalMachine,
	logger *zap.Logger,
) *adminService {
	return &adminService{
		userRepo: userRepo,
		sessions: sessions,
		approval: approval,
		logger:   logger,
	}
}

// AcceptUser moves a Pending or Rejected user to Active.
// It reports whether the stored status changed.
func (s *adminService) AcceptUser(ctx context.Context, actor *models.Session, email string) (bool, error) {
	return s.transition(ctx, actor, email, models.StatusActive)
}

// RejectUser moves a Pending user to Rejected.
// It reports whether the stored status changed.
func (s *adminService) RejectUser(ctx context.Context, actor *models.Session, email string) (bool, error) {
	return s.transition(ctx, actor, email, models.StatusRejected)
}

func (s *adminService) transition(ctx context.Context, actor *models.Session, email string, target models.Status) (bool, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return false, err
	}

	email = models.NormalizeEmail(email)
	if email == "" {
		return false, models.ErrMissingFields
	}

	for attempt := 1; ; attempt++ {
		user, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return false, err
		}

		changed, err := s.approval.Transition(user, target)
		if err != nil || !changed {
			return false, err
		}

		from := user.EffectiveStatus()
		err = s.userRepo.UpdateStatus(ctx, email, from, target)
		if errors.Is(err, models.ErrInvalidTransition) && attempt < statusAttempts {
			// Another admin moved the user first; decide again on the fresh record
			continue
		}
		if err != nil {
			if errors.Is(err, models.ErrStore) {
				s.logger.Error("failed to update user status", zap.Error(err), zap.String("email", email))
			}
			return false, err
		}

		s.logger.Info("user status changed",
			zap.String("email", email),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
			zap.Int("admin_id", actor.UserID),
		)
		return true, nil
	}
}

// DeleteUser removes a non-admin account and ends its sessions
func (s *adminService) DeleteUser(ctx context.Context, actor *models.Session, email string) error {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return err
	}

	email = models.NormalizeEmail(email)
	if email == "" {
		return models.ErrMissingFields
	}

	deleted, err := s.userRepo.Delete(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrStore) {
			s.logger.Error("failed to delete user", zap.Error(err), zap.String("email", email))
		}
		return err
	}

	// Sessions left behind are rejected on their next request as stale
	removed, err := s.sessions.InvalidateUser(ctx, deleted.ID)
	if err != nil {
		s.logger.Warn("failed to end sessions of deleted user", zap.Error(err), zap.Int("user_id", deleted.ID))
	}

	s.logger.Info("user deleted",
		zap.String("email", email),
		zap.Int("user_id", deleted.ID),
		zap.Int("sessions_ended", removed),
		zap.Int("admin_id", actor.UserID),
	)
	return nil
}

// Dashboard lists every non-admin user with status counters
func (s *adminService) Dashboard(ctx context.Context, actor *models.Session) (*models.AdminDashboard, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	users, err := s.userRepo.ListNonAdmin(ctx)
	if err != nil {
		s.logger.Error("failed to list users", zap.Error(err))
		return nil, err
	}

	dashboard := &models.AdminDashboard{
		Users: make([]models.UserListItem, 0, len(users)),
	}
	for i := range users {
		user := &users[i]
		status := user.EffectiveStatus()

		dashboard.Users = append(dashboard.Users, models.UserListItem{
			ID:       user.ID,
			Username: user.Name,
			Email:    user.Email,
			Status:   status,
			Joined:   user.CreatedAt.Format(joinedLayout),
			Initials: user.Initials(),
		})

		switch status {
		case models.StatusPending:
			dashboard.Stats.PendingUsers++
		case models.StatusActive:
			dashboard.Stats.ActiveUsers++
		case models.StatusRejected:
			dashboard.Stats.RejectedUsers++
		}
	}
	dashboard.Stats.TotalUsers = len(users)

	return dashboard, nil
}
