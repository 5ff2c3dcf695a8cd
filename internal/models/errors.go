package models

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers match on these with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrAuthorization  = errors.New("authorization error")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrStore          = errors.New("store error")
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrAuthentication)
	ErrPendingApproval    = fmt.Errorf("%w: account is pending admin approval", ErrAuthentication)
	ErrAccountRejected    = fmt.Errorf("%w: account has been rejected", ErrAuthentication)

	ErrNoSession      = fmt.Errorf("%w: no session", ErrAuthorization)
	ErrWrongRole      = fmt.Errorf("%w: wrong role", ErrAuthorization)
	ErrStaleUser      = fmt.Errorf("%w: session user no longer exists", ErrAuthorization)
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrAuthorization)
	ErrSessionInvalid = fmt.Errorf("%w: invalid session token", ErrAuthorization)

	ErrUserExists        = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUserNotFound      = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrSessionNotFound   = fmt.Errorf("%w: session not found", ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)

	ErrMissingFields    = fmt.Errorf("%w: please fill in all fields", ErrValidation)
	ErrPasswordMismatch = fmt.Errorf("%w: passwords do not match", ErrValidation)
	ErrInvalidEmail     = fmt.Errorf("%w: invalid email format", ErrValidation)
	ErrPasswordTooLong  = fmt.Errorf("%w: password must be at most 72 bytes", ErrValidation)
)
