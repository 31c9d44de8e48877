package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/vidlink/identity/internal/domain"
	"github.com/vidlink/identity/internal/repository"
)

// DefaultChallengeTTL is how long an issued verification code stays valid.
const DefaultChallengeTTL = 10 * time.Minute

// ChallengeService issues and validates the short-lived numeric codes used
// by the code-login flow.
type ChallengeService struct {
	store repository.AccountStore
	ttl   time.Duration
	now   func() time.Time
}

// NewChallengeService creates a new challenge service.
func NewChallengeService(store repository.AccountStore) *ChallengeService {
	return &ChallengeService{
		store: store,
		ttl:   DefaultChallengeTTL,
		now:   time.Now,
	}
}

// Issue generates a fresh six-digit code for the account and persists it,
// replacing any outstanding challenge. Requesting a new code silently
// invalidates an earlier one, so an intercepted old code cannot be replayed
// after the user asks for a fresh one.
func (s *ChallengeService) Issue(ctx context.Context, account *domain.Account) (*domain.Challenge, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	challenge := &domain.Challenge{
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
	}
	account.Challenge = challenge

	if err := s.store.Save(ctx, account); err != nil {
		return nil, err
	}
	return challenge, nil
}

// Validate reports whether the submitted code matches the account's live
// challenge. Codes are compared as strings; numeric coercion would lose
// leading zeros. Validate never mutates the account: clearing the challenge
// and marking the account verified is the caller's decision.
func (s *ChallengeService) Validate(account *domain.Account, submittedCode string) bool {
	if account.Challenge == nil || submittedCode == "" {
		return false
	}
	if account.Challenge.Code != submittedCode {
		return false
	}
	return s.now().Before(account.Challenge.ExpiresAt)
}

// GenerateCode returns a uniformly random six-digit verification code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
