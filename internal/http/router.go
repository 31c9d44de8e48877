package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidlink/identity/internal/auth"
	"github.com/vidlink/identity/internal/http/features/code"
	"github.com/vidlink/identity/internal/http/features/google"
	"github.com/vidlink/identity/internal/http/features/me"
	"github.com/vidlink/identity/internal/http/features/password"
	"github.com/vidlink/identity/internal/http/middleware"
	"github.com/vidlink/identity/internal/httputil"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	IdentityService *auth.IdentityService
	SessionService  *auth.SessionService
	GoogleService   *auth.GoogleService // nil disables the federated routes
	AppBaseURL      string
	Production      bool
	MockDelivery    bool
	CookieSecure    bool
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure

	authLimiter := middleware.RateLimit(middleware.RateLimitConfig{
		Requests: 10, Window: time.Minute, Logger: cfg.Logger,
	})
	codeLimiter := middleware.RateLimit(middleware.RateLimitConfig{
		Requests: 5, Window: time.Minute, Logger: cfg.Logger,
	})

	passwordHandler := password.NewHandler(cfg.Logger, cfg.IdentityService, cfg.SessionService, cookieConfig)
	r.Group(func(r chi.Router) {
		r.Use(authLimiter)
		r.Post("/v1/auth/register", passwordHandler.Register)
		r.Post("/v1/auth/login", passwordHandler.Login)
	})

	codeHandler := code.NewHandler(cfg.Logger, cfg.IdentityService, cfg.SessionService, cookieConfig, cfg.Production, cfg.MockDelivery)
	r.Group(func(r chi.Router) {
		r.Use(codeLimiter)
		r.Post("/v1/auth/login/send-code", codeHandler.SendCode)
		r.Post("/v1/auth/login/verify-code", codeHandler.VerifyCode)
		r.Post("/v1/auth/complete-registration", codeHandler.CompleteRegistration)
		r.Post("/v1/auth/test-email", codeHandler.TestEmail)
	})

	if cfg.GoogleService != nil {
		googleHandler := google.NewHandler(cfg.Logger, cfg.GoogleService, cfg.IdentityService, cfg.SessionService, cookieConfig, cfg.AppBaseURL)
		r.Get("/v1/auth/google", googleHandler.Start)
		r.Get("/v1/auth/google/callback", googleHandler.Callback)
	}

	meHandler := me.NewHandler(cfg.Logger, cfg.IdentityService, cookieConfig)
	r.Post("/v1/auth/logout", meHandler.Logout)
	r.With(middleware.Auth(cfg.SessionService)).Get("/v1/me", meHandler.GetMe)

	return r
}
