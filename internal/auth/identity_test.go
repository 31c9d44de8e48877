package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/vidlink/identity/internal/domain"
	"github.com/vidlink/identity/internal/repository"
)

type sentMail struct {
	email     string
	code      string
	firstName string
}

// fakeMailer records dispatched codes and can be scripted to fail.
type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, email, code, firstName string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentMail{email: email, code: code, firstName: firstName})
	return "test-message-id", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIdentityService(store *repository.MemoryAccountStore, mailer Mailer) *IdentityService {
	return NewIdentityService(store, NewChallengeService(store), mailer, discardLogger())
}

func TestRegisterPassword(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	account, err := svc.RegisterPassword(ctx, "Ada@Example.com", "s3cret-pw", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("RegisterPassword() error = %v", err)
	}
	if account.Email != "ada@example.com" {
		t.Errorf("email = %q, want normalized", account.Email)
	}
	if account.IsVerified {
		t.Error("new password account must start unverified")
	}
	if !account.HasPassword() {
		t.Error("account should carry a password hash")
	}
	if *account.PasswordHash == "s3cret-pw" {
		t.Error("password stored in clear text")
	}
	if !VerifyPassword("s3cret-pw", *account.PasswordHash) {
		t.Error("stored hash does not verify")
	}
}

func TestRegisterPasswordInvalidEmail(t *testing.T) {
	svc := newTestIdentityService(repository.NewMemoryAccountStore(), &fakeMailer{})

	if _, err := svc.RegisterPassword(context.Background(), "not-an-email", "pw", "A", "B"); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Errorf("error = %v, want ErrInvalidEmail", err)
	}
}

func TestRegisterPasswordOverwritesUnverified(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	first, err := svc.RegisterPassword(ctx, "ada@example.com", "first-pw", "Wrong", "Name")
	if err != nil {
		t.Fatalf("first RegisterPassword() error = %v", err)
	}

	second, err := svc.RegisterPassword(ctx, "ada@example.com", "second-pw", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("second RegisterPassword() error = %v", err)
	}

	// Last registration attempt wins instead of creating a duplicate.
	if store.Count() != 1 {
		t.Fatalf("account count = %d, want 1", store.Count())
	}
	if second.ID != first.ID {
		t.Error("overwrite created a new account id")
	}
	if second.FirstName != "Ada" || second.LastName != "Lovelace" {
		t.Errorf("name = %s %s, want overwritten", second.FirstName, second.LastName)
	}
	if !VerifyPassword("second-pw", *second.PasswordHash) {
		t.Error("hash not replaced by second registration")
	}
}

func TestRegisterPasswordVerifiedAccountRejected(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	account, err := svc.RegisterPassword(ctx, "ada@example.com", "pw", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("RegisterPassword() error = %v", err)
	}
	account.IsVerified = true
	if err := store.Save(ctx, account); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := svc.RegisterPassword(ctx, "ada@example.com", "pw2", "A", "B"); !errors.Is(err, domain.ErrAccountExists) {
		t.Errorf("error = %v, want ErrAccountExists", err)
	}
}

func TestLoginPassword(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	account, err := svc.RegisterPassword(ctx, "ada@example.com", "s3cret-pw", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("RegisterPassword() error = %v", err)
	}

	// Unverified accounts cannot log in.
	if _, err := svc.LoginPassword(ctx, "ada@example.com", "s3cret-pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unverified login error = %v, want ErrInvalidCredentials", err)
	}

	account.IsVerified = true
	if err := store.Save(ctx, account); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	identity, err := svc.LoginPassword(ctx, "Ada@Example.COM", "s3cret-pw")
	if err != nil {
		t.Fatalf("LoginPassword() error = %v", err)
	}
	if identity.AccountID != account.ID {
		t.Error("session identity for wrong account")
	}
	if identity.DisplayName != "Ada Lovelace" {
		t.Errorf("display name = %q", identity.DisplayName)
	}

	if _, err := svc.LoginPassword(ctx, "ada@example.com", "wrong-pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.LoginPassword(ctx, "nobody@example.com", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown account error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginPasswordFederatedOnlyAccount(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	// Account created purely via federated sign-in: no password hash.
	if _, err := svc.LoginFederated(ctx, FederatedClaims{
		ProviderID: "google-123",
		Email:      "ada@example.com",
		GivenName:  "Ada",
		FamilyName: "Lovelace",
	}); err != nil {
		t.Fatalf("LoginFederated() error = %v", err)
	}

	_, err := svc.LoginPassword(ctx, "ada@example.com", "whatever")
	if !errors.Is(err, domain.ErrFederatedAccount) {
		t.Errorf("error = %v, want the federated-account-specific error", err)
	}
}

func TestRequestCodeCreatesPlaceholderAccount(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	mailer := &fakeMailer{}
	svc := newTestIdentityService(store, mailer)
	ctx := context.Background()

	delivery, err := svc.RequestCode(ctx, "new.user@example.com")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}

	account, err := store.FindByEmail(ctx, "new.user@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if !account.HasPlaceholderName() {
		t.Errorf("name = %s %s, want placeholder", account.FirstName, account.LastName)
	}
	if account.IsVerified {
		t.Error("implicitly created account must start unverified")
	}
	if account.Challenge == nil || account.Challenge.Code != delivery.Code {
		t.Error("challenge not persisted with the delivered code")
	}
	if len(mailer.sent) != 1 || mailer.sent[0].code != delivery.Code {
		t.Errorf("mailer sent = %+v", mailer.sent)
	}
	if delivery.MessageID != "test-message-id" {
		t.Errorf("message id = %q", delivery.MessageID)
	}
}

func TestRequestCodeDeliveryFailure(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{err: errors.New("535 auth failed")})
	ctx := context.Background()

	delivery, err := svc.RequestCode(ctx, "new.user@example.com")
	if !errors.Is(err, domain.ErrEmailDeliveryFailed) {
		t.Fatalf("error = %v, want ErrEmailDeliveryFailed", err)
	}
	if delivery == nil {
		t.Fatal("delivery must be returned alongside the failure")
	}

	// Partial failure is tolerated: the challenge stays persisted and valid.
	account, err := store.FindByEmail(ctx, "new.user@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if account.Challenge == nil || account.Challenge.Code != delivery.Code {
		t.Error("challenge rolled back on delivery failure")
	}
}

func TestSubmitCodeNeedsRegistration(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	delivery, err := svc.RequestCode(ctx, "new.user@example.com")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}

	result, err := svc.SubmitCode(ctx, "new.user@example.com", delivery.Code)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if !result.NeedsRegistration {
		t.Fatal("placeholder account must yield NeedsRegistration")
	}
	if result.Session != nil {
		t.Error("NeedsRegistration must not carry a session identity")
	}
}

func TestCodeLoginFullScenario(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	delivery, err := svc.RequestCode(ctx, "new.user@example.com")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}

	result, err := svc.SubmitCode(ctx, "new.user@example.com", delivery.Code)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if !result.NeedsRegistration {
		t.Fatal("expected NeedsRegistration")
	}

	identity, err := svc.CompleteRegistration(ctx, result.AccountID, "Ada", "Lovelace", nil)
	if err != nil {
		t.Fatalf("CompleteRegistration() error = %v", err)
	}
	if identity.DisplayName != "Ada Lovelace" {
		t.Errorf("display name = %q", identity.DisplayName)
	}

	account, err := store.FindByID(ctx, result.AccountID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !account.IsVerified {
		t.Error("account not verified after completed registration")
	}
	if account.Challenge != nil {
		t.Error("residual challenge not cleared")
	}
	if account.FirstName != "Ada" || account.LastName != "Lovelace" {
		t.Errorf("name = %s %s", account.FirstName, account.LastName)
	}
}

func TestCompleteRegistrationWithPassword(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	delivery, err := svc.RequestCode(ctx, "new.user@example.com")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	result, err := svc.SubmitCode(ctx, "new.user@example.com", delivery.Code)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	password := "chosen-pw"
	if _, err := svc.CompleteRegistration(ctx, result.AccountID, "Ada", "Lovelace", &password); err != nil {
		t.Fatalf("CompleteRegistration() error = %v", err)
	}

	account, _ := store.FindByID(ctx, result.AccountID)
	if !account.HasPassword() || !VerifyPassword("chosen-pw", *account.PasswordHash) {
		t.Error("optional password not set")
	}
}

func TestCompleteRegistrationNotPending(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	account, err := svc.RegisterPassword(ctx, "ada@example.com", "pw", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("RegisterPassword() error = %v", err)
	}

	if _, err := svc.CompleteRegistration(ctx, account.ID, "Eve", "Intruder", nil); !errors.Is(err, domain.ErrRegistrationNotPending) {
		t.Errorf("error = %v, want ErrRegistrationNotPending", err)
	}
}

func TestSubmitCodeReturningUser(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	// A returning user with a real name logs straight in.
	account, err := svc.RegisterPassword(ctx, "ada@example.com", "pw", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("RegisterPassword() error = %v", err)
	}

	delivery, err := svc.RequestCode(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	result, err := svc.SubmitCode(ctx, "ada@example.com", delivery.Code)
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if result.NeedsRegistration {
		t.Fatal("named account must not need registration")
	}
	if result.Session == nil || result.Session.AccountID != account.ID {
		t.Fatalf("session = %+v", result.Session)
	}

	updated, _ := store.FindByID(ctx, account.ID)
	if !updated.IsVerified {
		t.Error("account not marked verified after code login")
	}
	if updated.Challenge != nil {
		t.Error("challenge not cleared after successful validation")
	}

	// The consumed code cannot be replayed.
	if _, err := svc.SubmitCode(ctx, "ada@example.com", delivery.Code); !errors.Is(err, domain.ErrInvalidOrExpiredCode) {
		t.Errorf("replay error = %v, want ErrInvalidOrExpiredCode", err)
	}
}

func TestSubmitCodeInvalid(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	if _, err := svc.SubmitCode(ctx, "nobody@example.com", "123456"); !errors.Is(err, domain.ErrInvalidOrExpiredCode) {
		t.Errorf("unknown email error = %v, want ErrInvalidOrExpiredCode", err)
	}

	if _, err := svc.RequestCode(ctx, "new.user@example.com"); err != nil {
		t.Fatalf("RequestCode() error = %v", err)
	}
	if _, err := svc.SubmitCode(ctx, "new.user@example.com", "000000"); !errors.Is(err, domain.ErrInvalidOrExpiredCode) {
		t.Errorf("wrong code error = %v, want ErrInvalidOrExpiredCode", err)
	}
}

func TestLoginFederatedLinksExistingAccount(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	// Local unverified account with a password.
	local, err := svc.RegisterPassword(ctx, "ada@example.com", "local-pw", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("RegisterPassword() error = %v", err)
	}

	identity, err := svc.LoginFederated(ctx, FederatedClaims{
		ProviderID: "google-123",
		Email:      "Ada@Example.com",
		GivenName:  "Augusta",
		FamilyName: "King",
		PhotoURL:   "https://example.com/photo.jpg",
	})
	if err != nil {
		t.Fatalf("LoginFederated() error = %v", err)
	}

	// One email, one account: merged, not forked.
	if store.Count() != 1 {
		t.Fatalf("account count = %d, want 1", store.Count())
	}
	if identity.AccountID != local.ID {
		t.Error("federated login resolved to a different account")
	}

	merged, _ := store.FindByID(ctx, local.ID)
	if !merged.IsVerified {
		t.Error("linking must trust the provider's verification")
	}
	if merged.FederatedID == nil || *merged.FederatedID != "google-123" {
		t.Error("federated id not attached")
	}
	if !merged.HasPassword() {
		t.Error("linking dropped the existing password hash")
	}
	if merged.LastUsedMethod != domain.MethodFederated {
		t.Errorf("last used method = %q", merged.LastUsedMethod)
	}
	// Link once: the existing display name is kept.
	if merged.FirstName != "Ada" || merged.LastName != "Lovelace" {
		t.Errorf("name = %s %s, want original kept", merged.FirstName, merged.LastName)
	}
	if merged.ProfileImageURL == nil || *merged.ProfileImageURL != "https://example.com/photo.jpg" {
		t.Error("provider photo not adopted on link")
	}
}

func TestLoginFederatedRepeatLogin(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	claims := FederatedClaims{
		ProviderID: "google-123",
		Email:      "ada@example.com",
		GivenName:  "Ada",
		FamilyName: "Lovelace",
	}
	first, err := svc.LoginFederated(ctx, claims)
	if err != nil {
		t.Fatalf("first LoginFederated() error = %v", err)
	}

	// Repeat login with changed claims resolves by provider id and does not
	// refresh the display name.
	claims.GivenName = "Changed"
	second, err := svc.LoginFederated(ctx, claims)
	if err != nil {
		t.Fatalf("second LoginFederated() error = %v", err)
	}
	if second.AccountID != first.AccountID {
		t.Error("repeat federated login forked an account")
	}
	if store.Count() != 1 {
		t.Fatalf("account count = %d, want 1", store.Count())
	}

	account, _ := store.FindByID(ctx, first.AccountID)
	if account.FirstName != "Ada" {
		t.Errorf("first name = %q, want unchanged on repeat login", account.FirstName)
	}
}

func TestLoginFederatedCreatesVerifiedAccount(t *testing.T) {
	store := repository.NewMemoryAccountStore()
	svc := newTestIdentityService(store, &fakeMailer{})
	ctx := context.Background()

	identity, err := svc.LoginFederated(ctx, FederatedClaims{
		ProviderID: "google-456",
		Email:      "grace@example.com",
		GivenName:  "Grace",
		FamilyName: "Hopper",
	})
	if err != nil {
		t.Fatalf("LoginFederated() error = %v", err)
	}

	account, err := store.FindByID(ctx, identity.AccountID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !account.IsVerified {
		t.Error("federated account must be created pre-verified")
	}
	if account.HasPassword() {
		t.Error("federated account must not carry a password hash")
	}
	if identity.DisplayName != "Grace Hopper" {
		t.Errorf("display name = %q", identity.DisplayName)
	}
}
