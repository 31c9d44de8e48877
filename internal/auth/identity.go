package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vidlink/identity/internal/domain"
	"github.com/vidlink/identity/internal/notification"
	"github.com/vidlink/identity/internal/repository"
)

// Mailer dispatches a verification code to a recipient. Satisfied by
// notification.EmailService and notification.MockSender; which one is wired
// in is a deployment-mode decision made at startup.
type Mailer interface {
	Send(ctx context.Context, email, code, firstName string) (string, error)
}

// FederatedClaims are the identity claims yielded by a completed external
// OAuth handshake. The handshake itself happens elsewhere; by the time
// claims reach the orchestrator the provider has already verified the email.
type FederatedClaims struct {
	ProviderID string
	Email      string
	GivenName  string
	FamilyName string
	PhotoURL   string
}

// IdentityService runs the three login flows and the account-linking policy
// that unifies them: one email, one account, regardless of which method
// proves it.
type IdentityService struct {
	store      repository.AccountStore
	challenges *ChallengeService
	mailer     Mailer
	logger     *slog.Logger
}

// NewIdentityService creates a new identity service.
func NewIdentityService(store repository.AccountStore, challenges *ChallengeService, mailer Mailer, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		store:      store,
		challenges: challenges,
		mailer:     mailer,
		logger:     logger,
	}
}

// RegisterPassword registers a local account with a password. A verified
// account with the same email rejects the attempt; an unverified one is
// overwritten in place, so the last registration attempt wins instead of
// forking a duplicate.
func (s *IdentityService) RegisterPassword(ctx context.Context, email, password, firstName, lastName string) (*domain.Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.IsVerified {
			return nil, domain.ErrAccountExists
		}
		existing.FirstName = firstName
		existing.LastName = lastName
		existing.PasswordHash = &hash
		existing.LastUsedMethod = domain.MethodLocal
		if err := s.store.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	account := &domain.Account{
		ID:             uuid.New(),
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		PasswordHash:   &hash,
		LastUsedMethod: domain.MethodLocal,
		IsVerified:     false,
		CreatedAt:      time.Now(),
	}
	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrAccountExists
		}
		return nil, err
	}
	return account, nil
}

// LoginPassword authenticates with email and password. Failures collapse to
// ErrInvalidCredentials, except a federated-only account, which gets a
// dedicated error so the client can point the user at the right button.
func (s *IdentityService) LoginPassword(ctx context.Context, email, password string) (*domain.SessionIdentity, error) {
	account, err := s.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !account.IsVerified {
		return nil, domain.ErrInvalidCredentials
	}
	if !account.HasPassword() {
		if account.FederatedID != nil {
			return nil, domain.ErrFederatedAccount
		}
		return nil, domain.ErrInvalidCredentials
	}
	if !VerifyPassword(password, *account.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	account.LastUsedMethod = domain.MethodLocal
	if err := s.store.Save(ctx, account); err != nil {
		return nil, err
	}
	return sessionIdentity(account), nil
}

// CodeDelivery describes the outcome of a code request: provider metadata
// for UI display plus the raw code. Whether the code is ever echoed to the
// client is the transport layer's call, gated on the operational mode.
type CodeDelivery struct {
	Email         string
	Provider      notification.ProviderKey
	KnownProvider bool
	Code          string
	MessageID     string
}

// RequestCode starts the code-login flow: find or create the account, issue
// a fresh challenge and dispatch it. When dispatch fails the challenge stays
// persisted and valid; the returned CodeDelivery is non-nil alongside the
// error so the caller can apply its recovery policy instead of rolling back.
func (s *IdentityService) RequestCode(ctx context.Context, email string) (*CodeDelivery, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	account, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		account = &domain.Account{
			ID:             uuid.New(),
			Email:          email,
			FirstName:      domain.PlaceholderFirstName,
			LastName:       domain.PlaceholderLastName,
			LastUsedMethod: domain.MethodLocal,
			IsVerified:     false,
			CreatedAt:      time.Now(),
		}
		if cerr := s.store.Create(ctx, account); cerr != nil {
			if !errors.Is(cerr, domain.ErrDuplicateEmail) {
				return nil, cerr
			}
			// Lost a race with a concurrent request for the same email;
			// reuse the account that won.
			account, err = s.store.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
		}
	} else if err != nil {
		return nil, err
	}

	challenge, err := s.challenges.Issue(ctx, account)
	if err != nil {
		return nil, err
	}

	delivery := &CodeDelivery{
		Email:         email,
		Provider:      notification.DetectProvider(email),
		KnownProvider: IsKnownProviderDomain(email),
		Code:          challenge.Code,
	}

	messageID, err := s.mailer.Send(ctx, email, challenge.Code, account.FirstName)
	if err != nil {
		s.logger.Error("verification email dispatch failed",
			"email", email, "provider", delivery.Provider, "error", err)
		return delivery, fmt.Errorf("%w: %s", domain.ErrEmailDeliveryFailed, err)
	}
	delivery.MessageID = messageID
	return delivery, nil
}

// SubmitResult is the outcome of SubmitCode. Either Session is set, or
// NeedsRegistration is true and AccountID identifies the account awaiting
// its real name.
type SubmitResult struct {
	NeedsRegistration bool
	AccountID         uuid.UUID
	Session           *domain.SessionIdentity
}

// SubmitCode completes the code-login flow. A correct, unexpired code on an
// account still carrying the placeholder name yields a NeedsRegistration
// signal rather than a session; the challenge is left in place until
// CompleteRegistration consumes it.
func (s *IdentityService) SubmitCode(ctx context.Context, email, code string) (*SubmitResult, error) {
	account, err := s.store.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidOrExpiredCode
		}
		return nil, err
	}

	if !s.challenges.Validate(account, code) {
		return nil, domain.ErrInvalidOrExpiredCode
	}

	if account.HasPlaceholderName() {
		return &SubmitResult{NeedsRegistration: true, AccountID: account.ID}, nil
	}

	account.Challenge = nil
	account.IsVerified = true
	account.LastUsedMethod = domain.MethodLocal
	if err := s.store.Save(ctx, account); err != nil {
		return nil, err
	}
	return &SubmitResult{AccountID: account.ID, Session: sessionIdentity(account)}, nil
}

// CompleteRegistration finishes the deferred registration step after a
// NeedsRegistration signal: set the real name, optionally a password, mark
// verified and clear the residual challenge.
func (s *IdentityService) CompleteRegistration(ctx context.Context, accountID uuid.UUID, firstName, lastName string, password *string) (*domain.SessionIdentity, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrRegistrationNotPending
		}
		return nil, err
	}
	if !account.HasPlaceholderName() {
		return nil, domain.ErrRegistrationNotPending
	}

	account.FirstName = firstName
	account.LastName = lastName
	account.IsVerified = true
	account.Challenge = nil
	if password != nil && *password != "" {
		hash, err := HashPassword(*password)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = &hash
	}

	if err := s.store.Save(ctx, account); err != nil {
		return nil, err
	}
	return sessionIdentity(account), nil
}

// LoginFederated signs in with claims from an external identity provider.
// Resolution order, first match wins: an account already linked to this
// provider id; an account with the claimed email, which gets linked; a new
// pre-verified account. Display name is adopted only at link or creation,
// never refreshed on repeat logins.
func (s *IdentityService) LoginFederated(ctx context.Context, claims FederatedClaims) (*domain.SessionIdentity, error) {
	if err := ValidateEmail(claims.Email); err != nil {
		return nil, err
	}
	email := NormalizeEmail(claims.Email)

	account, err := s.store.FindByFederatedID(ctx, claims.ProviderID)
	if err == nil {
		account.LastUsedMethod = domain.MethodFederated
		if err := s.store.Save(ctx, account); err != nil {
			return nil, err
		}
		return sessionIdentity(account), nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	account, err = s.store.FindByEmail(ctx, email)
	if err == nil {
		// Merge into the existing account rather than forking a duplicate
		// identity. The provider vouches for email ownership.
		providerID := claims.ProviderID
		account.FederatedID = &providerID
		account.LastUsedMethod = domain.MethodFederated
		account.IsVerified = true
		if claims.PhotoURL != "" {
			photo := claims.PhotoURL
			account.ProfileImageURL = &photo
		}
		if err := s.store.Save(ctx, account); err != nil {
			return nil, err
		}
		s.logger.Info("linked federated identity to existing account",
			"account_id", account.ID, "email", email)
		return sessionIdentity(account), nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	providerID := claims.ProviderID
	account = &domain.Account{
		ID:             uuid.New(),
		Email:          email,
		FirstName:      claims.GivenName,
		LastName:       claims.FamilyName,
		FederatedID:    &providerID,
		LastUsedMethod: domain.MethodFederated,
		IsVerified:     true,
		CreatedAt:      time.Now(),
	}
	if claims.PhotoURL != "" {
		photo := claims.PhotoURL
		account.ProfileImageURL = &photo
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}
	return sessionIdentity(account), nil
}

// SendTestEmail pushes a fixed code through the delivery pipeline without
// touching any account. Used by the test-email endpoint.
func (s *IdentityService) SendTestEmail(ctx context.Context, email string) (string, error) {
	return s.mailer.Send(ctx, NormalizeEmail(email), "123456", "Test User")
}

// GetAccount retrieves an account by id.
func (s *IdentityService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.store.FindByID(ctx, id)
}

func sessionIdentity(account *domain.Account) *domain.SessionIdentity {
	return &domain.SessionIdentity{
		AccountID:   account.ID,
		DisplayName: account.DisplayName(),
	}
}
