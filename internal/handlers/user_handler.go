package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	authmw "github.com/seprediction/backend/internal/auth/middleware"
	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

// UserHandler serves the regular user pages
type UserHandler struct {
	BaseHandler
}

// NewUserHandler creates a new user handler
func NewUserHandler(logger *zap.Logger) *UserHandler {
	return &UserHandler{BaseHandler: BaseHandler{Logger: logger}}
}

// RegisterRoutes registers all user handler routes
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Use(authmw.RoleMiddleware(models.RoleUser, h.DenyPage))
		r.Get("/dashboard", h.Dashboard)
	})
}

// Dashboard handles GET /user/dashboard
// @Summary User dashboard
// @Description Profile of the logged-in user taken from the session
// @Tags user
// @Produce json
// @Success 200 {object} models.UserProfile
// @Failure 303 {string} string "Redirect to /login or /access-denied"
// @Router /user/dashboard [get]
func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session := authmw.GetSession(r.Context())

	h.RespondJSON(w, http.StatusOK, models.UserProfile{
		ID:           session.UserID,
		Name:         session.Name,
		Email:        session.Email,
		Role:         session.Role,
		LoginTime:    session.LoginTime.Format(time.DateTime),
		LastActivity: session.LastActivity.Format(time.DateTime),
		Durability:   session.Durability,
	})
}
