package services

import (
	"github.com/seprediction/backend/internal/models"
)

// Authorize checks that the session belongs to the required role.
// Every protected operation calls it before any side effect.
func Authorize(session *models.Session, required models.Role) error {
	if session == nil {
		return models.ErrNoSession
	}

	switch required {
	case models.RoleAdmin, models.RoleUser:
		if session.Role != required {
			return models.ErrWrongRole
		}
		return nil
	default:
		return models.ErrWrongRole
	}
}
