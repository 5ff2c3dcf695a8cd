package services

import (
	"fmt"

	"github.com/seprediction/backend/internal/models"
)

// ApprovalMachine holds the account approval rules.
//
// Allowed moves:
//
//	Pending  -> Active    (accept)
//	Pending  -> Rejected  (reject)
//	Rejected -> Active    (accept after reconsideration)
//
// Requesting the status a user already has is a no-op. Admin accounts never move.
type ApprovalMachine struct {
	transitions map[models.Status]map[models.Status]struct{}
}

// NewApprovalMachine creates the approval machine with the default transition table
func NewApprovalMachine() *ApprovalMachine {
	return &ApprovalMachine{
		transitions: map[models.Status]map[models.Status]struct{}{
			models.StatusPending: {
				models.StatusActive:   {},
				models.StatusRejected: {},
			},
			models.StatusRejected: {
				models.StatusActive: {},
			},
		},
	}
}

// InitialStatus returns the status a freshly registered account starts in
func (m *ApprovalMachine) InitialStatus(role models.Role) (models.Status, error) {
	switch role {
	case models.RoleAdmin:
		return models.StatusActive, nil
	case models.RoleUser:
		return models.StatusPending, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", models.ErrValidation, role)
}

// CheckLogin decides whether a user with verified credentials may get a session
func (m *ApprovalMachine) CheckLogin(user *models.User) error {
	switch status := user.EffectiveStatus(); status {
	case models.StatusActive:
		return nil
	case models.StatusPending:
		return models.ErrPendingApproval
	case models.StatusRejected:
		return models.ErrAccountRejected
	default:
		return fmt.Errorf("%w: unknown status %q", models.ErrStore, status)
	}
}

// Transition validates moving the user to target.
//
// It reports whether the stored status has to change; false with a nil error means
// the user is already in the target status.
func (m *ApprovalMachine) Transition(user *models.User, target models.Status) (bool, error) {
	if user.IsAdmin() {
		return false, models.ErrForbidden
	}

	from := user.EffectiveStatus()
	if from == target {
		return false, nil
	}

	if _, ok := m.transitions[from][target]; !ok {
		return false, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, target)
	}

	return true, nil
}
