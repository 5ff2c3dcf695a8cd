package middlewares

import (
	"net/http"
)

const msgBodyTooLarge = "Request body is too large"

// RequestSizeLimitMiddleware rejects bodies larger than maxRequestSize bytes.
// Declared lengths are refused up front; chunked bodies are cut off while the handler reads them.
// A non-positive limit disables the check.
func RequestSizeLimitMiddleware(maxRequestSize int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxRequestSize <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxRequestSize {
				w.Header().Set("Connection", "close")
				writeResult(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
				return
			}

			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
