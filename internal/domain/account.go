package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthMethod records the most recently used login method. It is history,
// not capability: whether an account can log in with a password or a
// federated identity is determined by PasswordHash and FederatedID.
type AuthMethod string

const (
	MethodLocal     AuthMethod = "local"
	MethodFederated AuthMethod = "federated"
)

// Placeholder name given to accounts created implicitly by the code-login
// flow. An account still carrying it has not completed registration.
const (
	PlaceholderFirstName = "New"
	PlaceholderLastName  = "User"
)

// Account is the unified identity record, keyed by email. A single account
// may be reachable through password login, emailed verification codes, and
// federated sign-in.
type Account struct {
	ID              uuid.UUID
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    *string
	FederatedID     *string
	ProfileImageURL *string
	LastUsedMethod  AuthMethod
	IsVerified      bool
	Challenge       *Challenge
	CreatedAt       time.Time
}

// HasPassword reports whether the account has ever completed password
// registration.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// HasPlaceholderName reports whether the account still carries the
// placeholder identity assigned on implicit creation.
func (a *Account) HasPlaceholderName() bool {
	return a.FirstName == PlaceholderFirstName && a.LastName == PlaceholderLastName
}

// DisplayName returns the account's display name.
func (a *Account) DisplayName() string {
	return a.FirstName + " " + a.LastName
}

// Challenge is a short-lived numeric code proving email ownership. At most
// one live challenge exists per account; issuing a new one replaces it.
type Challenge struct {
	Code      string
	ExpiresAt time.Time
}

// SessionIdentity is the minimal account reference handed to the session
// layer after a successful login flow. It is not persisted here.
type SessionIdentity struct {
	AccountID   uuid.UUID
	DisplayName string
}
