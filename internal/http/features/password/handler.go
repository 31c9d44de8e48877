package password

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vidlink/identity/internal/auth"
	"github.com/vidlink/identity/internal/domain"
	"github.com/vidlink/identity/internal/httputil"
	"github.com/vidlink/identity/internal/notification"
)

// Handler handles password authentication endpoints.
type Handler struct {
	logger       *slog.Logger
	identity     *auth.IdentityService
	sessions     *auth.SessionService
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, identity *auth.IdentityService, sessions *auth.SessionService, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		identity:     identity,
		sessions:     sessions,
		cookieConfig: cookieConfig,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the account payload returned on successful login.
type UserResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
	AuthProvider   string  `json:"authProvider"`
}

// Register handles password registration.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		httputil.Error(w, http.StatusBadRequest, "all fields are required")
		return
	}

	account, err := h.identity.RegisterPassword(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEmail) {
			httputil.Error(w, http.StatusBadRequest, "invalid email format")
			return
		}
		if errors.Is(err, domain.ErrAccountExists) {
			httputil.Error(w, http.StatusConflict, "user already exists")
			return
		}
		h.logger.Error("registration failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"message":  "user registered successfully",
		"provider": notification.DetectProvider(account.Email),
	})
}

// Login handles password login.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	identity, err := h.identity.LoginPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrFederatedAccount) {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, domain.ErrInvalidCredentials) {
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.sessions.IssueSession(identity)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	httputil.SetSessionCookie(w, token, h.sessions.TTL(), h.cookieConfig)

	account, err := h.identity.GetAccount(r.Context(), identity.AccountID)
	if err != nil {
		h.logger.Error("failed to load account", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message": "login successful",
		"user": UserResponse{
			ID:             account.ID.String(),
			Name:           account.DisplayName(),
			Email:          account.Email,
			ProfilePicture: account.ProfileImageURL,
			AuthProvider:   string(account.LastUsedMethod),
		},
	})
}
