package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vidlink/identity/internal/domain"
)

// MemoryAccountStore is an in-memory AccountStore used in tests and in
// development setups without a database. It enforces the same email
// uniqueness guarantee as the Postgres store.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	byEmail  map[string]*domain.Account
	accounts map[uuid.UUID]*domain.Account
}

// NewMemoryAccountStore creates an empty in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		byEmail:  make(map[string]*domain.Account),
		accounts: make(map[uuid.UUID]*domain.Account),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new account, failing with domain.ErrDuplicateEmail if the
// email is already taken. The check and insert happen under one lock.
func (s *MemoryAccountStore) Create(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(account.Email)
	if _, exists := s.byEmail[key]; exists {
		return domain.ErrDuplicateEmail
	}
	cp := cloneAccount(account)
	s.byEmail[key] = cp
	s.accounts[cp.ID] = cp
	return nil
}

// FindByEmail retrieves an account by email, case-insensitively.
func (s *MemoryAccountStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

// FindByID retrieves an account by ID.
func (s *MemoryAccountStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

// FindByFederatedID retrieves an account by its federated provider id.
func (s *MemoryAccountStore) FindByFederatedID(ctx context.Context, federatedID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.FederatedID != nil && *account.FederatedID == federatedID {
			return cloneAccount(account), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

// Save replaces a stored account.
func (s *MemoryAccountStore) Save(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	cp := cloneAccount(account)
	cp.Email = existing.Email // email is immutable after creation
	s.accounts[cp.ID] = cp
	s.byEmail[emailKey(cp.Email)] = cp
	return nil
}

// Count returns the number of stored accounts.
func (s *MemoryAccountStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	if a.PasswordHash != nil {
		v := *a.PasswordHash
		cp.PasswordHash = &v
	}
	if a.FederatedID != nil {
		v := *a.FederatedID
		cp.FederatedID = &v
	}
	if a.ProfileImageURL != nil {
		v := *a.ProfileImageURL
		cp.ProfileImageURL = &v
	}
	if a.Challenge != nil {
		ch := *a.Challenge
		cp.Challenge = &ch
	}
	return &cp
}
