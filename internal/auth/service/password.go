package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when hashing an empty password
var ErrEmptyPassword = errors.New("password cannot be empty")

// PasswordHasher hashes passwords with bcrypt.
// It also verifies werkzeug digests imported from older user files.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a new password hasher with the given bcrypt cost
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted bcrypt digest of the password
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(digest), nil
}

// Verify reports whether the password matches the digest.
// A malformed digest never matches.
func (h *PasswordHasher) Verify(password, digest string) bool {
	if isWerkzeugDigest(digest) {
		return verifyWerkzeug(password, digest)
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// NeedsRehash reports whether a verified digest should be replaced with a fresh bcrypt digest
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	return isWerkzeugDigest(digest)
}
