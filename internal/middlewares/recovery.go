package middlewares

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

const msgInternalError = "Internal server error"

// RecoveryMiddleware turns a handler panic into the generic 500 envelope.
// The panic value goes to the log only. http.ErrAbortHandler is re-raised so net/http can drop the connection.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				logger.Error("panic recovered",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				writeResult(w, http.StatusInternalServerError, msgInternalError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
