package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Role is the closed set of account roles
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole converts a stored role string into a Role.
//
// Unknown values are rejected instead of silently defaulting.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Status is the approval state of an account
type Status string

const (
	StatusActive   Status = "Active"
	StatusPending  Status = "Pending"
	StatusRejected Status = "Rejected"
)

// ParseStatus converts a stored status string into a Status.
//
// Legacy records written before the approval workflow existed have no status and count as Active.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "", StatusActive:
		return StatusActive, nil
	case StatusPending:
		return StatusPending, nil
	case StatusRejected:
		return StatusRejected, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// User represents a user in the system
type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// EffectiveStatus returns the status used for access decisions. Admins are always Active.
func (u *User) EffectiveStatus() Status {
	if u.IsAdmin() || u.Status == "" {
		return StatusActive
	}
	return u.Status
}

// Initials builds up to two upper-case initials from the display name
func (u *User) Initials() string {
	var b strings.Builder
	for _, part := range strings.Fields(u.Name) {
		if b.Len() >= 2 {
			break
		}
		b.WriteString(strings.ToUpper(string([]rune(part)[0])))
	}
	return b.String()
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Every lookup and insert goes through it, so matching afterwards is exact.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail reports whether a normalized address looks deliverable
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// UserListItem represents a user row on the admin dashboard
type UserListItem struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Status   Status `json:"status"`
	Joined   string `json:"joined"`
	Initials string `json:"initials"`
}

// DashboardStats holds the counters shown on the admin dashboard
type DashboardStats struct {
	TotalUsers    int `json:"totalUsers"`
	PendingUsers  int `json:"pendingUsers"`
	ActiveUsers   int `json:"activeUsers"`
	RejectedUsers int `json:"rejectedUsers"`
}

// AdminDashboard is the admin dashboard payload
type AdminDashboard struct {
	Users []UserListItem `json:"users"`
	Stats DashboardStats `json:"stats"`
}
