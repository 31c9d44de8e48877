package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vidlink/identity/internal/domain"
)

// AccountStore is the persistence contract for accounts. Email uniqueness is
// enforced at this boundary: Create has create-if-absent semantics and
// reports domain.ErrDuplicateEmail on collision, so concurrent registrations
// for the same address cannot fork duplicate accounts.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindByFederatedID(ctx context.Context, federatedID string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	Save(ctx context.Context, account *domain.Account) error
}

const uniqueViolation = "23505"

// AccountsRepository is the Postgres-backed AccountStore.
type AccountsRepository struct {
	db *sql.DB
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db *sql.DB) *AccountsRepository {
	return &AccountsRepository{db: db}
}

const accountColumns = `id, email, first_name, last_name, password_hash, federated_id,
	       profile_image_url, last_used_method, is_verified, challenge_code,
	       challenge_expires_at, created_at`

// Create inserts a new account. A unique index on lower(email) makes this an
// atomic create-if-absent; collisions surface as domain.ErrDuplicateEmail.
func (r *AccountsRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, email, first_name, last_name, password_hash, federated_id,
		                      profile_image_url, last_used_method, is_verified, challenge_code,
		                      challenge_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	code, expiresAt := challengeColumns(account)
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.FirstName, account.LastName,
		account.PasswordHash, account.FederatedID, account.ProfileImageURL,
		account.LastUsedMethod, account.IsVerified, code, expiresAt, account.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return domain.ErrDuplicateEmail
	}
	return err
}

// FindByEmail retrieves an account by email. Lookup is case-insensitive.
func (r *AccountsRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE lower(email) = lower($1)
	`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, email))
}

// FindByID retrieves an account by ID.
func (r *AccountsRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// FindByFederatedID retrieves an account by its federated provider id.
func (r *AccountsRepository) FindByFederatedID(ctx context.Context, federatedID string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE federated_id = $1
	`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, federatedID))
}

// Save replaces all mutable fields of an account.
func (r *AccountsRepository) Save(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET first_name = $2, last_name = $3, password_hash = $4, federated_id = $5,
		    profile_image_url = $6, last_used_method = $7, is_verified = $8,
		    challenge_code = $9, challenge_expires_at = $10
		WHERE id = $1
	`
	code, expiresAt := challengeColumns(account)
	result, err := r.db.ExecContext(ctx, query,
		account.ID, account.FirstName, account.LastName, account.PasswordHash,
		account.FederatedID, account.ProfileImageURL, account.LastUsedMethod,
		account.IsVerified, code, expiresAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountsRepository) scanAccount(row *sql.Row) (*domain.Account, error) {
	account := &domain.Account{}
	var code sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(
		&account.ID, &account.Email, &account.FirstName, &account.LastName,
		&account.PasswordHash, &account.FederatedID, &account.ProfileImageURL,
		&account.LastUsedMethod, &account.IsVerified, &code, &expiresAt,
		&account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if code.Valid && expiresAt.Valid {
		account.Challenge = &domain.Challenge{Code: code.String, ExpiresAt: expiresAt.Time}
	}
	return account, nil
}

func challengeColumns(account *domain.Account) (code sql.NullString, expiresAt sql.NullTime) {
	if account.Challenge != nil {
		code = sql.NullString{String: account.Challenge.Code, Valid: true}
		expiresAt = sql.NullTime{Time: account.Challenge.ExpiresAt, Valid: true}
	}
	return code, expiresAt
}
