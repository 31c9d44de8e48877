package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// maxRetries is the number of additional delivery rounds after the first
// failed attempt.
const maxRetries = 2

// EmailConfig holds fixed sender credentials and the generic SMTP fallback
// profile. Credentials are per-sender, never per-recipient.
type EmailConfig struct {
	User     string // sender address, also used for SMTP auth
	Password string // app password preferred over account password
	FromName string
	Generic  TransportConfig
}

// EmailService turns "send verification code X to email Y" into a
// best-effort delivered message, tolerant of provider-specific SMTP quirks.
type EmailService struct {
	config    EmailConfig
	transport Transport
	logger    *slog.Logger
}

// NewEmailService creates an email service using the real SMTP transport.
func NewEmailService(config EmailConfig, logger *slog.Logger) *EmailService {
	return &EmailService{
		config:    config,
		transport: &smtpTransport{},
		logger:    logger,
	}
}

// NewEmailServiceWithTransport creates an email service with a custom
// transport. Used by tests.
func NewEmailServiceWithTransport(config EmailConfig, transport Transport, logger *slog.Logger) *EmailService {
	return &EmailService{config: config, transport: transport, logger: logger}
}

// Send delivers a verification code to the recipient. Each round first tries
// the transport profile detected from the recipient's domain; on failure,
// while retry budget remains, it falls back to the generic SMTP profile
// before starting the next round. Exhausting the budget fails with an error
// wrapping the last transport error; the caller decides how to recover, the
// failure is never swallowed here.
func (s *EmailService) Send(ctx context.Context, email, code, firstName string) (string, error) {
	provider := DetectProvider(email)
	detected := s.BuildTransport(provider)
	generic := s.BuildTransport(ProviderGeneric)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		s.logger.Info("sending verification email",
			"to", email, "provider", provider, "attempt", attempt+1)

		id, err := s.attempt(ctx, detected, email, code, firstName)
		if err == nil {
			s.logger.Info("verification email sent", "to", email, "message_id", id)
			return id, nil
		}
		lastErr = err
		s.logger.Warn("email send attempt failed",
			"to", email, "provider", provider, "attempt", attempt+1, "error", err)

		if attempt < maxRetries {
			id, gerr := s.attempt(ctx, generic, email, code, firstName)
			if gerr == nil {
				s.logger.Info("verification email sent via generic transport",
					"to", email, "message_id", id)
				return id, nil
			}
			s.logger.Warn("generic transport retry failed", "to", email, "error", gerr)
		}
	}

	return "", fmt.Errorf("email delivery failed after %d attempts: %w", maxRetries+1, lastErr)
}

// attempt verifies the transport can authenticate, then performs one
// delivery. Verification failures and send failures are both retriable.
func (s *EmailService) attempt(ctx context.Context, cfg TransportConfig, email, code, firstName string) (string, error) {
	creds := Credentials{User: s.config.User, Password: s.config.Password}

	if err := s.transport.Verify(ctx, cfg, creds); err != nil {
		return "", fmt.Errorf("transport verification: %w", err)
	}

	messageID := fmt.Sprintf("<%s@vidlink>", uuid.New())
	msg := s.buildMessage(email, code, firstName, messageID)
	if err := s.transport.Send(ctx, cfg, creds, s.config.User, email, msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// MockSender is the development-mode substitute for EmailService. It writes
// the code to the operational log instead of performing network I/O and
// always succeeds.
type MockSender struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewMockSender creates a mock sender.
func NewMockSender(logger *slog.Logger) *MockSender {
	return &MockSender{logger: logger, now: time.Now}
}

// Send logs the verification code and returns a synthetic message id.
func (s *MockSender) Send(ctx context.Context, email, code, firstName string) (string, error) {
	s.logger.Info("mock email service: verification code",
		"to", email,
		"provider", DetectProvider(email),
		"first_name", firstName,
		"code", code,
	)
	return fmt.Sprintf("mock-%d", s.now().UnixMilli()), nil
}
