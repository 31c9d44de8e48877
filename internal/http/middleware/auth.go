package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/vidlink/identity/internal/auth"
	"github.com/vidlink/identity/internal/httputil"
)

type contextKey string

const (
	// AccountIDKey is the context key for the authenticated account ID.
	AccountIDKey contextKey = "account_id"
	// ClaimsKey is the context key for the session claims.
	ClaimsKey contextKey = "claims"
)

// Auth validates the session cookie and puts the account id on the context.
func Auth(sessions *auth.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := httputil.GetSessionFromCookie(r)
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			claims, err := sessions.ValidateSession(token)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			accountID, err := uuid.Parse(claims.Subject)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid session subject")
				return
			}

			ctx := context.WithValue(r.Context(), AccountIDKey, accountID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountID extracts the authenticated account ID from the context.
func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(AccountIDKey).(uuid.UUID)
	return id, ok
}
