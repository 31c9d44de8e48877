package google

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidlink/identity/internal/auth"
	"github.com/vidlink/identity/internal/httputil"
)

const stateCookieName = "oauth_state"

// Handler handles Google OAuth endpoints. The OAuth handshake is glue; the
// account resolution happens in the identity service.
type Handler struct {
	logger       *slog.Logger
	google       *auth.GoogleService
	identity     *auth.IdentityService
	sessions     *auth.SessionService
	cookieConfig httputil.CookieConfig
	appBaseURL   string
}

// NewHandler creates a new Google handler.
func NewHandler(logger *slog.Logger, google *auth.GoogleService, identity *auth.IdentityService, sessions *auth.SessionService, cookieConfig httputil.CookieConfig, appBaseURL string) *Handler {
	return &Handler{
		logger:       logger,
		google:       google,
		identity:     identity,
		sessions:     sessions,
		cookieConfig: cookieConfig,
		appBaseURL:   appBaseURL,
	}
}

// Start redirects to the Google consent screen.
// GET /v1/auth/google
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	state := randomState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieConfig.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.GenerateAuthURL(state), http.StatusFound)
}

// Callback handles the OAuth redirect, exchanges the code for claims, and
// logs the user in through the federated flow.
// GET /v1/auth/google/callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.logger.Warn("oauth state mismatch", "remote", r.RemoteAddr)
		http.Redirect(w, r, h.appBaseURL+"/login", http.StatusFound)
		return
	}
	// State is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, h.appBaseURL+"/login", http.StatusFound)
		return
	}

	claims, err := h.google.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("google code exchange failed", "error", err)
		http.Redirect(w, r, h.appBaseURL+"/login", http.StatusFound)
		return
	}

	identity, err := h.identity.LoginFederated(r.Context(), *claims)
	if err != nil {
		h.logger.Error("federated login failed", "error", err)
		http.Redirect(w, r, h.appBaseURL+"/login", http.StatusFound)
		return
	}

	token, err := h.sessions.IssueSession(identity)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err)
		http.Redirect(w, r, h.appBaseURL+"/login", http.StatusFound)
		return
	}
	httputil.SetSessionCookie(w, token, h.sessions.TTL(), h.cookieConfig)

	http.Redirect(w, r, h.appBaseURL+"/", http.StatusFound)
}

func randomState() string {
	b := make([]byte, 24)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
