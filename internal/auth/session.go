package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vidlink/identity/internal/domain"
)

// DefaultSessionTTL matches the original deployment's 24-hour cookie.
const DefaultSessionTTL = 24 * time.Hour

// SessionConfig holds session token configuration.
type SessionConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// SessionService is the session issuance sink: it turns a validated
// SessionIdentity into a signed token for the cookie layer. It only ever
// receives identities the orchestrator already validated.
type SessionService struct {
	config SessionConfig
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig) *SessionService {
	if config.TTL == 0 {
		config.TTL = DefaultSessionTTL
	}
	return &SessionService{config: config}
}

// TTL returns the session token lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.config.TTL
}

// IssueSession signs a session token for the identity.
func (s *SessionService) IssueSession(identity *domain.SessionIdentity) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.AccountID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
			ID:        uuid.NewString(),
		},
		Name: identity.DisplayName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.Secret)
}

// ValidateSession parses and verifies a session token.
func (s *SessionService) ValidateSession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.config.Secret, nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
