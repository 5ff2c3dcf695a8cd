package models

// RegisterRequest represents the registration form
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest represents the login form
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// UserEmailRequest is the body of the admin user operations
type UserEmailRequest struct {
	Email string `json:"email"`
}

// ResultResponse is the envelope returned by admin JSON endpoints
type ResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UserProfile is the user dashboard payload built from the session snapshot
type UserProfile struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         Role       `json:"role"`
	LoginTime    string     `json:"loginTime"`
	LastActivity string     `json:"lastActivity"`
	Durability   Durability `json:"durability"`
}

// AdminUpdate holds new admin credentials. Empty fields keep the current value.
type AdminUpdate struct {
	Name         string
	Email        string
	PasswordHash string
}

// IsEmpty reports whether the update would change nothing
func (u AdminUpdate) IsEmpty() bool {
	return u.Name == "" && u.Email == "" && u.PasswordHash == ""
}
