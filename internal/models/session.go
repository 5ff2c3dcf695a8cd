package models

import "time"

// Durability decides how a session expires
type Durability string

const (
	// DurabilityEphemeral sessions end with the browser and are never extended
	DurabilityEphemeral Durability = "ephemeral"
	// DurabilityPersistent sessions survive browser restarts and slide forward on activity
	DurabilityPersistent Durability = "persistent"
)

// Session is a server-side login session.
//
// Identity fields are copied from the user at login time and are not refreshed afterwards.
type Session struct {
	ID           string     `json:"id"`
	UserID       int        `json:"userId"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	LoginTime    time.Time  `json:"loginTime"`
	LastActivity time.Time  `json:"lastActivity"`
	Durability   Durability `json:"durability"`
	ExpiresAt    time.Time  `json:"expiresAt"`
}

// IsPersistent reports whether the session was created with "remember me"
func (s *Session) IsPersistent() bool {
	return s.Durability == DurabilityPersistent
}

// Expired reports whether the session is past its expiry at the given moment
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
