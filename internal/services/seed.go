package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seprediction/backend/internal/auth/service"
	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

// AdminSeedRepository is what admin seeding needs from the credential store
type AdminSeedRepository interface {
	CountAdmins(ctx context.Context) (int, error)
	Create(ctx context.Context, user *models.User) error
}

// AdminCredentials are the bootstrap admin account details
type AdminCredentials struct {
	Name     string
	Email    string
	Password string
}

// SeedAdmin creates the bootstrap admin account when the store has none.
// Returns true when an account was created.
func SeedAdmin(
	ctx context.Context,
	repo AdminSeedRepository,
	hasher *service.PasswordHasher,
	creds AdminCredentials,
	logger *zap.Logger,
) (bool, error) {
	count, err := repo.CountAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("checking admin count: %w", err)
	}

	if count > 0 {
		if count > 1 {
			logger.Warn("more than one admin account exists", zap.Int("count", count))
		}
		logger.Info("admin exists, skipping admin seed")
		return false, nil
	}

	hash, err := hasher.Hash(creds.Password)
	if err != nil {
		return false, fmt.Errorf("hashing admin password: %w", err)
	}

	admin := &models.User{
		Name:         creds.Name,
		Email:        models.NormalizeEmail(creds.Email),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	if err := repo.Create(ctx, admin); err != nil {
		if errors.Is(err, models.ErrUserExists) {
			// Another instance may have seeded concurrently
			if count, countErr := repo.CountAdmins(ctx); countErr == nil && count > 0 {
				logger.Info("admin seeded by another instance")
				return false, nil
			}
			return false, fmt.Errorf("admin email %s is taken by a non-admin account: %w", admin.Email, err)
		}
		return false, fmt.Errorf("creating admin: %w", err)
	}

	logger.Warn("bootstrap admin account created",
		zap.String("email", admin.Email),
		zap.String("action_required", "change the admin password with the changeadmin tool"),
	)

	return true, nil
}
