package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vidlink/identity/internal/auth"
	"github.com/vidlink/identity/internal/config"
	httpserver "github.com/vidlink/identity/internal/http"
	"github.com/vidlink/identity/internal/notification"
	"github.com/vidlink/identity/internal/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	accounts := repository.NewAccountsRepository(db)
	challenges := auth.NewChallengeService(accounts)

	// Pick the mailer. The mock stands in only outside production when no
	// sender credentials are configured.
	var mailer auth.Mailer
	var emailService *notification.EmailService
	mockDelivery := !cfg.IsProduction() && !cfg.HasEmailCredentials()
	if mockDelivery {
		mailer = notification.NewMockSender(logger)
		logger.Info("mock email delivery enabled")
	} else {
		emailService = notification.NewEmailService(notification.EmailConfig{
			User:     cfg.EmailUser,
			Password: cfg.EmailPassword,
			FromName: cfg.EmailFromName,
			Generic: notification.TransportConfig{
				Host:   cfg.SMTPHost,
				Port:   cfg.SMTPPort,
				Secure: cfg.SMTPSecure,
			},
		}, logger)
		mailer = emailService
		logger.Info("email delivery enabled", "user", cfg.EmailUser)
	}

	identityService := auth.NewIdentityService(accounts, challenges, mailer, logger)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		Secret: []byte(cfg.SessionSecret),
		Issuer: cfg.SessionIssuer,
		TTL:    cfg.SessionTTL,
	})

	var googleService *auth.GoogleService
	if cfg.HasGoogleOAuth() {
		googleService = auth.NewGoogleService(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURI:  cfg.GoogleRedirectURI,
		})
		logger.Info("Google OAuth enabled")
	}

	// Background email config self-test, off the login path
	selfTestCtx, cancelSelfTest := context.WithCancel(context.Background())
	defer cancelSelfTest()
	if emailService != nil {
		emailService.StartSelfTest(selfTestCtx, 15*time.Minute)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		IdentityService: identityService,
		SessionService:  sessionService,
		GoogleService:   googleService,
		AppBaseURL:      cfg.AppBaseURL,
		Production:      cfg.IsProduction(),
		MockDelivery:    mockDelivery,
		CookieSecure:    cfg.IsProduction(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
