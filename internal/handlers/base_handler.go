package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	authmw "github.com/seprediction/backend/internal/auth/middleware"
	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

// Messages shown when a guard rejects a request
const (
	msgLoginRequired  = "Please login to access this page"
	msgSessionExpired = "Session expired. Please login again."
	msgAccessDenied   = "Access denied"
	msgInternalError  = "Internal server error"
)

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends a failed result envelope
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, models.ResultResponse{Success: false, Message: message})
}

// RespondSuccess sends a successful result envelope
func (h *BaseHandler) RespondSuccess(w http.ResponseWriter, message string) {
	h.RespondJSON(w, http.StatusOK, models.ResultResponse{Success: true, Message: message})
}

// Redirect answers with 303 so the browser follows up with GET
func (h *BaseHandler) Redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// DenyPage handles a failed guard on a page route: login redirect when there is no session,
// access-denied redirect for the wrong role.
func (h *BaseHandler) DenyPage(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, models.ErrWrongRole) {
		SetFlash(w, r, FlashError, msgAccessDenied)
		h.Redirect(w, r, "/access-denied")
		return
	}

	message := msgLoginRequired
	if authmw.SessionRejection(r.Context()) != nil {
		message = msgSessionExpired
	}
	SetFlash(w, r, FlashWarning, message)
	h.Redirect(w, r, "/login")
}

// DenyJSON handles a failed guard on a JSON route
func (h *BaseHandler) DenyJSON(w http.ResponseWriter, r *http.Request, err error) {
	message := msgAccessDenied
	if errors.Is(err, models.ErrNoSession) && authmw.SessionRejection(r.Context()) != nil {
		message = msgSessionExpired
	}
	h.RespondError(w, http.StatusForbidden, message)
}
