package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	authmw "github.com/seprediction/backend/internal/auth/middleware"
	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

// AdminService is the interface that wraps methods for user administration.
//
// Every method takes the acting session and fails with models.ErrAuthorization unless it belongs to an admin.
type AdminService interface {
	// Method AcceptUser moves a Pending or Rejected user to Active.
	//
	// Reports false without error when the user is already Active.
	// Returns models.ErrUserNotFound for unknown emails and models.ErrForbidden for admin accounts.
	AcceptUser(ctx context.Context, actor *models.Session, email string) (bool, error)
	// Method RejectUser moves a Pending user to Rejected.
	//
	// Reports false without error when the user is already Rejected.
	// Returns models.ErrInvalidTransition for Active users.
	RejectUser(ctx context.Context, actor *models.Session, email string) (bool, error)
	// Method DeleteUser removes a non-admin account and ends all of its sessions.
	DeleteUser(ctx context.Context, actor *models.Session, email string) error
	// Method Dashboard lists all non-admin users together with status counters.
	Dashboard(ctx context.Context, actor *models.Session) (*models.AdminDashboard, error)
}

// AdminHandler handles HTTP requests for user administration
type AdminHandler struct {
	BaseHandler
	service AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(svc AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     svc,
	}
}

// RegisterRoutes registers all admin handler routes
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.With(authmw.RoleMiddleware(models.RoleAdmin, h.DenyPage)).Get("/dashboard", h.Dashboard)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RoleMiddleware(models.RoleAdmin, h.DenyJSON))
			r.Post("/accept-user", h.AcceptUser)
			r.Post("/reject-user", h.RejectUser)
			r.Post("/delete-user", h.DeleteUser)
		})
	})
}

// Dashboard handles GET /admin/dashboard
// @Summary Admin dashboard
// @Description List every non-admin user with status counters
// @Tags admin
// @Produce json
// @Success 200 {object} models.AdminDashboard
// @Failure 303 {string} string "Redirect to /login or /access-denied"
// @Failure 500 {object} models.ResultResponse
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context(), authmw.GetSession(r.Context()))
	if err != nil {
		if errors.Is(err, models.ErrAuthorization) {
			h.DenyPage(w, r, err)
			return
		}
		h.Logger.Error("failed to build admin dashboard", zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.RespondJSON(w, http.StatusOK, dashboard)
}

// AcceptUser handles POST /admin/accept-user
// @Summary Accept user
// @Description Approve a Pending or Rejected user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.UserEmailRequest true "Target user"
// @Success 200 {object} models.ResultResponse
// @Failure 400 {object} models.ResultResponse
// @Failure 403 {object} models.ResultResponse
// @Failure 404 {object} models.ResultResponse
// @Failure 500 {object} models.ResultResponse
// @Router /admin/accept-user [post]
func (h *AdminHandler) AcceptUser(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}

	changed, err := h.service.AcceptUser(r.Context(), authmw.GetSession(r.Context()), email)
	if err != nil {
		h.respondAdminError(w, r, "accept user", err)
		return
	}

	if !changed {
		h.RespondSuccess(w, "User is already active")
		return
	}
	h.RespondSuccess(w, "User accepted successfully")
}

// RejectUser handles POST /admin/reject-user
// @Summary Reject user
// @Description Reject a Pending user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.UserEmailRequest true "Target user"
// @Success 200 {object} models.ResultResponse
// @Failure 400 {object} models.ResultResponse
// @Failure 403 {object} models.ResultResponse
// @Failure 404 {object} models.ResultResponse
// @Failure 500 {object} models.ResultResponse
// @Router /admin/reject-user [post]
func (h *AdminHandler) RejectUser(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}

	changed, err := h.service.RejectUser(r.Context(), authmw.GetSession(r.Context()), email)
	if err != nil {
		h.respondAdminError(w, r, "reject user", err)
		return
	}

	if !changed {
		h.RespondSuccess(w, "User is already rejected")
		return
	}
	h.RespondSuccess(w, "User rejected successfully")
}

// DeleteUser handles POST /admin/delete-user
// @Summary Delete user
// @Description Delete a non-admin user and end their sessions
// @Tags admin
// @Accept json
// @Produce json
// @Param request body models.UserEmailRequest true "Target user"
// @Success 200 {object} models.ResultResponse
// @Failure 400 {object} models.ResultResponse
// @Failure 403 {object} models.ResultResponse
// @Failure 404 {object} models.ResultResponse
// @Failure 500 {object} models.ResultResponse
// @Router /admin/delete-user [post]
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	email, ok := h.decodeEmail(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), authmw.GetSession(r.Context()), email); err != nil {
		h.respondAdminError(w, r, "delete user", err)
		return
	}

	h.RespondSuccess(w, "User deleted successfully")
}

func (h *AdminHandler) decodeEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req models.UserEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	if models.NormalizeEmail(req.Email) == "" {
		h.RespondError(w, http.StatusBadRequest, "Email is required")
		return "", false
	}
	return req.Email, true
}

// respondAdminError maps service errors to the result envelope
func (h *AdminHandler) respondAdminError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, models.ErrAuthorization):
		h.DenyJSON(w, r, err)
	case errors.Is(err, models.ErrUserNotFound):
		h.RespondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, models.ErrForbidden):
		h.RespondError(w, http.StatusBadRequest, "Admin accounts cannot be modified")
	case errors.Is(err, models.ErrInvalidTransition):
		h.RespondError(w, http.StatusBadRequest, "Only pending users can be rejected")
	case errors.Is(err, models.ErrValidation):
		h.RespondError(w, http.StatusBadRequest, "Email is required")
	default:
		h.Logger.Error("failed to "+op, zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, msgInternalError)
	}
}
