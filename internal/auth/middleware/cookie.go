package middleware

import (
	"net/http"
	"time"

	"github.com/seprediction/backend/internal/models"
)

// CookieConfig describes the session cookie
type CookieConfig struct {
	Name   string
	Secure bool
}

// SetSessionCookie writes the session token cookie.
//
// Persistent sessions get Max-Age matching the server-side expiry. Ephemeral sessions get a
// browser-session cookie with no Max-Age, so closing the browser drops it.
func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, token string, session *models.Session) {
	cookie := &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	if session.IsPersistent() {
		maxAge := int(time.Until(session.ExpiresAt).Seconds())
		if maxAge < 1 {
			maxAge = 1
		}
		cookie.MaxAge = maxAge
		cookie.Expires = session.ExpiresAt
	}

	http.SetCookie(w, cookie)
}

// ClearSessionCookie tells the browser to drop the session cookie
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the raw session cookie value or an empty string
func SessionToken(r *http.Request, cfg CookieConfig) string {
	cookie, err := r.Cookie(cfg.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
