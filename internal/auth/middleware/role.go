package middleware

import (
	"net/http"

	"github.com/seprediction/backend/internal/models"
	"github.com/seprediction/backend/internal/services"
)

// DenyFunc writes the response for a request that failed authorization.
// err wraps models.ErrNoSession or models.ErrWrongRole.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

// RoleMiddleware lets the request through only when its session holds the required role
func RoleMiddleware(required models.Role, deny DenyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := services.Authorize(GetSession(r.Context()), required); err != nil {
				deny(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
