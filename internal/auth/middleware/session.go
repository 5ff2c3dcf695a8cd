package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

type contextKey string

const sessionStateKey contextKey = "sessionState"

// sessionState is what SessionMiddleware learned about the request
type sessionState struct {
	session *models.Session
	// reason is why a presented cookie did not resolve to a session
	reason error
}

// SessionValidator resolves and refreshes sessions
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.Session, error)
	Touch(ctx context.Context, session *models.Session) (*models.Session, string, error)
}

// SessionMiddleware resolves the session cookie into a session on the request context.
//
// Requests without a valid session continue anonymously; route guards decide what to do with them.
// A cookie that no longer resolves is cleared. Persistent sessions get their cookie reissued on
// every request so the expiry slides forward.
func SessionMiddleware(validator SessionValidator, cookies CookieConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r, cookies)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			session, err := validator.Validate(ctx, token)
			if err != nil {
				if errors.Is(err, models.ErrAuthorization) {
					ClearSessionCookie(w, cookies)
					next.ServeHTTP(w, r.WithContext(withState(ctx, sessionState{reason: err})))
					return
				}

				logger.Error("failed to validate session", zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"success":false,"message":"Internal server error"}`))
				return
			}

			touched, refreshed, err := validator.Touch(ctx, session)
			switch {
			case errors.Is(err, models.ErrSessionExpired):
				// Logged out by a concurrent request
				ClearSessionCookie(w, cookies)
				next.ServeHTTP(w, r.WithContext(withState(ctx, sessionState{reason: err})))
				return
			case err != nil:
				logger.Warn("failed to record session activity", zap.Error(err), zap.String("session_id", session.ID))
				touched = session
			case refreshed != "":
				SetSessionCookie(w, cookies, refreshed, touched)
			}

			next.ServeHTTP(w, r.WithContext(withState(ctx, sessionState{session: touched})))
		})
	}
}

func withState(ctx context.Context, state sessionState) context.Context {
	return context.WithValue(ctx, sessionStateKey, state)
}

// WithSession returns a context carrying the session
func WithSession(ctx context.Context, session *models.Session) context.Context {
	return withState(ctx, sessionState{session: session})
}

// GetSession retrieves the session from context; nil when the request is anonymous
func GetSession(ctx context.Context) *models.Session {
	state, ok := ctx.Value(sessionStateKey).(sessionState)
	if !ok {
		return nil
	}
	return state.session
}

// SessionRejection returns why the presented session cookie was rejected, or nil
func SessionRejection(ctx context.Context) error {
	state, ok := ctx.Value(sessionStateKey).(sessionState)
	if !ok {
		return nil
	}
	return state.reason
}
