package me

import (
	"log/slog"
	"net/http"

	"github.com/vidlink/identity/internal/auth"
	"github.com/vidlink/identity/internal/http/middleware"
	"github.com/vidlink/identity/internal/httputil"
)

// Handler exposes the current account.
type Handler struct {
	logger       *slog.Logger
	identity     *auth.IdentityService
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, identity *auth.IdentityService, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{logger: logger, identity: identity, cookieConfig: cookieConfig}
}

// GetMe returns the authenticated account.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	account, err := h.identity.GetAccount(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to load account", "error", err, "account_id", accountID)
		httputil.Error(w, http.StatusInternalServerError, "failed to get user data")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":             account.ID.String(),
			"name":           account.DisplayName(),
			"email":          account.Email,
			"profilePicture": account.ProfileImageURL,
			"authProvider":   account.LastUsedMethod,
			"isVerified":     account.IsVerified,
		},
	})
}

// Logout clears the session cookie.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.ClearSessionCookie(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}
