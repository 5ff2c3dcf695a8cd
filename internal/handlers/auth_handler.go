package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	authmw "github.com/seprediction/backend/internal/auth/middleware"
	"github.com/seprediction/backend/internal/models"
	"go.uber.org/zap"
)

// AuthService is the interface that wraps methods for registration and login business logic.
type AuthService interface {
	// Method Register creates a new account in Pending status.
	//
	// Returns a models.ErrValidation error for bad input and models.ErrUserExists when the email is taken.
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	// Method Login verifies credentials and approval status and issues a session.
	//
	// "previousToken" is the session token the client already holds, if any. That session is ended.
	// Returns the new session together with its signed token.
	Login(ctx context.Context, req *models.LoginRequest, previousToken string) (*models.Session, string, error)
	// Method Logout ends the session identified by the token.
	Logout(ctx context.Context, token string) error
}

const msgGenericFailure = "Something went wrong. Please try again."

// AuthHandler handles HTTP requests for login, registration and logout
type AuthHandler struct {
	BaseHandler
	service      AuthService
	cookies      authmw.CookieConfig
	loginLimiter func(http.Handler) http.Handler
}

// NewAuthHandler creates a new auth handler.
// "loginLimiter" wraps POST /login only and may be nil.
func NewAuthHandler(svc AuthService, cookies authmw.CookieConfig, loginLimiter func(http.Handler) http.Handler, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler:  BaseHandler{Logger: logger},
		service:      svc,
		cookies:      cookies,
		loginLimiter: loginLimiter,
	}
}

// RegisterRoutes registers all auth handler routes
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.loginLimiter != nil {
			r.Use(h.loginLimiter)
		}
		r.Post("/login", h.Login)
	})
	r.Get("/", h.Index)
	r.Post("/register", h.Register)
	r.Get("/logout", h.Logout)
	r.Get("/flash", h.Flash)
	r.Get("/access-denied", h.AccessDenied)
}

// Login handles POST /login
// @Summary Log in
// @Description Verify credentials and start a session. Always answers with a redirect; the outcome is carried by a flash message.
// @Tags auth
// @Accept x-www-form-urlencoded
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param remember formData bool false "Keep the session for 30 days"
// @Success 303 {string} string "Redirect to the role dashboard"
// @Failure 303 {string} string "Redirect back to /login"
// @Failure 429 {string} string "Too many login attempts"
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeRequest(r, &req, func(form func(string) string) {
		req.Email = form("email")
		req.Password = form("password")
		req.Remember = parseCheckbox(form("remember"))
	}); err != nil {
		SetFlash(w, r, FlashError, "Please fill in all fields")
		h.Redirect(w, r, "/login")
		return
	}

	session, token, err := h.service.Login(r.Context(), &req, authmw.SessionToken(r, h.cookies))
	if err != nil {
		category, message := loginFailureMessage(err)
		if category == FlashError && message == msgGenericFailure {
			h.Logger.Error("login failed", zap.Error(err))
		}
		SetFlash(w, r, category, message)
		h.Redirect(w, r, "/login")
		return
	}

	authmw.SetSessionCookie(w, h.cookies, token, session)
	SetFlash(w, r, FlashSuccess, fmt.Sprintf("Welcome back, %s!", session.Name))
	h.Redirect(w, r, dashboardPath(session.Role))
}

// Register handles POST /register
// @Summary Register
// @Description Create an account awaiting admin approval
// @Tags auth
// @Accept x-www-form-urlencoded
// @Param name formData string true "Display name"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param confirm_password formData string true "Password confirmation"
// @Success 303 {string} string "Redirect to /login"
// @Failure 303 {string} string "Redirect back to /register"
// @Router /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeRequest(r, &req, func(form func(string) string) {
		req.Name = form("name")
		req.Email = form("email")
		req.Password = form("password")
		req.ConfirmPassword = form("confirm_password")
	}); err != nil {
		SetFlash(w, r, FlashError, "Please fill in all fields")
		h.Redirect(w, r, "/register")
		return
	}

	if _, err := h.service.Register(r.Context(), &req); err != nil {
		message := registerFailureMessage(err)
		if message == msgGenericFailure {
			h.Logger.Error("registration failed", zap.Error(err))
		}
		SetFlash(w, r, FlashError, message)
		h.Redirect(w, r, "/register")
		return
	}

	SetFlash(w, r, FlashSuccess, "Registration successful! Please wait for admin approval.")
	h.Redirect(w, r, "/login")
}

// Logout handles GET /logout
// @Summary Log out
// @Description End the current session and clear the session cookie
// @Tags auth
// @Success 303 {string} string "Redirect to /"
// @Router /logout [get]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := authmw.SessionToken(r, h.cookies); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.Logger.Warn("failed to end session on logout", zap.Error(err))
		}
	}

	authmw.ClearSessionCookie(w, h.cookies)
	SetFlash(w, r, FlashInfo, "You have been logged out")
	h.Redirect(w, r, "/")
}

// IndexResponse describes who is browsing the landing page
type IndexResponse struct {
	Authenticated bool        `json:"authenticated"`
	Name          string      `json:"name,omitempty"`
	Role          models.Role `json:"role,omitempty"`
	Dashboard     string      `json:"dashboard,omitempty"`
}

// Index handles GET /
// @Summary Landing page
// @Description Report whether the visitor is logged in and where their dashboard is
// @Tags auth
// @Produce json
// @Success 200 {object} handlers.IndexResponse
// @Router / [get]
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	session := authmw.GetSession(r.Context())
	if session == nil {
		h.RespondJSON(w, http.StatusOK, IndexResponse{})
		return
	}

	h.RespondJSON(w, http.StatusOK, IndexResponse{
		Authenticated: true,
		Name:          session.Name,
		Role:          session.Role,
		Dashboard:     dashboardPath(session.Role),
	})
}

// Flash handles GET /flash
// @Summary Pending flash messages
// @Description Return and clear the messages queued by the previous request
// @Tags auth
// @Produce json
// @Success 200 {object} handlers.FlashResponse
// @Router /flash [get]
func (h *AuthHandler) Flash(w http.ResponseWriter, r *http.Request) {
	messages := PopFlashes(w, r)
	if messages == nil {
		messages = []FlashMessage{}
	}
	h.RespondJSON(w, http.StatusOK, FlashResponse{Messages: messages})
}

// AccessDenied handles GET /access-denied
// @Summary Access denied page
// @Tags auth
// @Produce json
// @Success 403 {object} models.ResultResponse
// @Router /access-denied [get]
func (h *AuthHandler) AccessDenied(w http.ResponseWriter, r *http.Request) {
	h.RespondError(w, http.StatusForbidden, msgAccessDenied)
}

func loginFailureMessage(err error) (string, string) {
	switch {
	case errors.Is(err, models.ErrPendingApproval):
		return FlashWarning, "Your account is pending admin approval. Please wait."
	case errors.Is(err, models.ErrAccountRejected):
		return FlashError, "Your account has been rejected. Please contact the administrator."
	case errors.Is(err, models.ErrInvalidCredentials):
		return FlashError, "Invalid email or password"
	case errors.Is(err, models.ErrValidation):
		return FlashError, "Please fill in all fields"
	default:
		return FlashError, msgGenericFailure
	}
}

func registerFailureMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrMissingFields):
		return "Please fill in all fields"
	case errors.Is(err, models.ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, models.ErrInvalidEmail):
		return "Please enter a valid email address"
	case errors.Is(err, models.ErrPasswordTooLong):
		return "Password must be at most 72 bytes"
	case errors.Is(err, models.ErrUserExists):
		return "Email already registered"
	default:
		return msgGenericFailure
	}
}

// dashboardPath returns the landing page of a role
func dashboardPath(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "/admin/dashboard"
	case models.RoleUser:
		return "/user/dashboard"
	default:
		return "/"
	}
}

// decodeRequest reads a JSON body into dst, or a form body through fromForm
func decodeRequest(r *http.Request, dst any, fromForm func(form func(string) string)) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return json.NewDecoder(r.Body).Decode(dst)
	}

	if err := r.ParseForm(); err != nil {
		return err
	}
	fromForm(r.PostForm.Get)
	return nil
}

func parseCheckbox(value string) bool {
	if strings.EqualFold(value, "on") {
		return true
	}
	checked, err := strconv.ParseBool(value)
	return err == nil && checked
}
