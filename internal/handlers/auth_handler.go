package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/learnsy/backend/internal/models"
	"go.uber.org/zap"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// AuthService is the interface that wraps methods for authentication business logic.
type AuthService interface {
	// Method Register validates the credentials, creates a user with "role" and signs them in.
	//
	// If the credentials are invalid or the email is taken, the error will be returned together with "nil" value.
	Register(ctx context.Context, req *models.RegisterRequest, role models.Role) (*models.AuthResponse, error)
	// Method Login checks the credentials and returns a token pair with the user.
	//
	// A wrong password, an unknown email or a role mismatch all return the same unauthorized error.
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
	// Method Refresh rotates "refreshToken" and returns a new token pair.
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	// Method Logout revokes "refreshToken".
	Logout(ctx context.Context, refreshToken string) error
	// Method Me returns the user with "userID".
	Me(ctx context.Context, userID int) (*models.User, error)
}

// AuthHandler handles signup and authentication HTTP requests
type AuthHandler struct {
	BaseHandler
	authService   AuthService
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewAuthHandler creates a new auth handler. The expiries set the lifetime of the token cookies.
func NewAuthHandler(authService AuthService, logger *zap.Logger, accessExpiry, refreshExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		BaseHandler:   newBaseHandler(logger),
		authService:   authService,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

// RegisterRoutes registers all auth handler routes
// Note: This assumes the router is already scoped to /api
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Route("/signup", func(r chi.Router) {
		r.Post("/student", h.SignupStudent)
		r.Post("/faculty", h.SignupFaculty)
	})
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.With(authMw).Get("/me", h.Me)
	})
}

// SignupStudent handles POST /signup/student
// @Summary Sign up as a student
// @Description Create a student account on the free tier. Returns tokens and the user, and sets them as HTTP-only cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Signup request"
// @Success 201 {object} models.AuthResponse
// @Failure 400 {object} map[string]string "Invalid email or weak password"
// @Failure 409 {object} map[string]string "Email already exists"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /signup/student [post]
func (h *AuthHandler) SignupStudent(w http.ResponseWriter, r *http.Request) {
	h.signup(w, r, models.RoleStudent)
}

// SignupFaculty handles POST /signup/faculty
// @Summary Sign up as faculty
// @Description Create a faculty account. Returns tokens and the user, and sets them as HTTP-only cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Signup request"
// @Success 201 {object} models.AuthResponse
// @Failure 400 {object} map[string]string "Invalid email or weak password"
// @Failure 409 {object} map[string]string "Email already exists"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /signup/faculty [post]
func (h *AuthHandler) SignupFaculty(w http.ResponseWriter, r *http.Request) {
	h.signup(w, r, models.RoleFaculty)
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request, role models.Role) {
	var req models.RegisterRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Register(r.Context(), &req, role)
	if err != nil {
		h.respondServiceError(w, err, "failed to register user")
		return
	}

	h.setTokenCookies(w, resp.AccessToken, resp.RefreshToken)
	h.RespondJSON(w, http.StatusCreated, resp)
}

// Login handles POST /auth/login
// @Summary Login user
// @Description Authenticate with email and password. When role is given it must match the account. Tokens are also set as HTTP-only cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login request"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, err, "failed to login user")
		return
	}

	h.setTokenCookies(w, resp.AccessToken, resp.RefreshToken)
	h.RespondJSON(w, http.StatusOK, resp)
}

// RefreshRequest represents a token refresh or logout request
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /auth/refresh
// @Summary Refresh access token
// @Description Rotate the refresh token. The token can be provided in the request body or as a cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh token request (optional if using cookie)"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} map[string]string "Invalid or expired refresh token"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	resp, err := h.authService.Refresh(r.Context(), refreshTokenFrom(r))
	if err != nil {
		h.respondServiceError(w, err, "failed to refresh tokens")
		return
	}

	h.setTokenCookies(w, resp.AccessToken, resp.RefreshToken)
	h.RespondJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout
// @Summary Logout user
// @Description Revoke the refresh token from the body or cookie and clear the token cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh token request (optional if using cookie)"
// @Success 200 {object} map[string]string "Logged out"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), refreshTokenFrom(r)); err != nil {
		h.respondServiceError(w, err, "failed to logout")
		return
	}

	h.clearTokenCookies(w)
	h.RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /auth/me
// @Summary Current user
// @Description Get the profile of the authenticated user
// @Tags auth
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.User
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 404 {object} map[string]string "User not found"
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	user, err := h.authService.Me(r.Context(), actor.UserID)
	if err != nil {
		h.respondServiceError(w, err, "failed to get user")
		return
	}

	h.RespondJSON(w, http.StatusOK, user)
}

// refreshTokenFrom reads the refresh token from the request body, falling back to the cookie
func refreshTokenFrom(r *http.Request) string {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// setTokenCookies sets access and refresh tokens as HTTP-only cookies
func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, tokenCookie(accessTokenCookie, accessToken, int(h.accessExpiry.Seconds())))
	http.SetCookie(w, tokenCookie(refreshTokenCookie, refreshToken, int(h.refreshExpiry.Seconds())))
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, tokenCookie(accessTokenCookie, "", -1))
	http.SetCookie(w, tokenCookie(refreshTokenCookie, "", -1))
}

func tokenCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
