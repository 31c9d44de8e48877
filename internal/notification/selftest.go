package notification

import (
	"context"
	"time"
)

// SelfTest verifies that the detected-provider and generic transport
// configurations can authenticate. It runs off the login path and only
// reports; delivery still retries independently.
func (s *EmailService) SelfTest(ctx context.Context) bool {
	creds := Credentials{User: s.config.User, Password: s.config.Password}

	gmail := s.BuildTransport(ProviderGmail)
	if err := s.transport.Verify(ctx, gmail, creds); err != nil {
		s.logSelfTestFailure("gmail", err)
		return false
	}

	generic := s.BuildTransport(ProviderGeneric)
	if err := s.transport.Verify(ctx, generic, creds); err != nil {
		s.logSelfTestFailure("generic", err)
		return false
	}

	s.logger.Info("email configuration self-test passed")
	return true
}

func (s *EmailService) logSelfTestFailure(profile string, err error) {
	s.logger.Error("email configuration self-test failed",
		"profile", profile, "error", err)
	s.logger.Info("email setup tips",
		"gmail", "enable 2FA and use an App Password",
		"yahoo", "enable 2FA and use an App Password",
		"outlook", "use regular password or App Password",
		"env", "set EMAIL_USER and EMAIL_APP_PASSWORD")
}

// StartSelfTest runs SelfTest once immediately and then periodically until
// the context is cancelled.
func (s *EmailService) StartSelfTest(ctx context.Context, interval time.Duration) {
	go func() {
		s.SelfTest(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SelfTest(ctx)
			}
		}
	}()
}
