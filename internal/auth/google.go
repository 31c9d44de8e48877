package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	googleAuthURL   = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
	googleIssuer    = "https://accounts.google.com"
	googleIssuerAlt = "accounts.google.com"
)

// GoogleConfig holds Google OAuth configuration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// GoogleClaims represents the claims from a Google ID token.
type GoogleClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// GoogleService performs the "exchange profile for identity claims" step of
// federated sign-in. The resulting FederatedClaims feed LoginFederated; this
// service never touches the account store.
type GoogleService struct {
	config     GoogleConfig
	httpClient *http.Client
}

// NewGoogleService creates a new Google service.
func NewGoogleService(config GoogleConfig) *GoogleService {
	return &GoogleService{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GenerateAuthURL generates the Google OAuth authorization URL.
func (s *GoogleService) GenerateAuthURL(state string) string {
	params := url.Values{
		"client_id":     {s.config.ClientID},
		"redirect_uri":  {s.config.RedirectURI},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return googleAuthURL + "?" + params.Encode()
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// ExchangeCode exchanges an authorization code for identity claims.
func (s *GoogleService) ExchangeCode(ctx context.Context, code string) (*FederatedClaims, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
		"redirect_uri":  {s.config.RedirectURI},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", googleTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token exchange failed: %s", string(body))
	}

	var tokenResp googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}

	claims, err := s.parseIDToken(tokenResp.IDToken)
	if err != nil {
		return nil, err
	}
	return &FederatedClaims{
		ProviderID: claims.Subject,
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		PhotoURL:   claims.Picture,
	}, nil
}

// parseIDToken extracts and validates claims from a Google ID token.
// The token arrives over the TLS-protected token endpoint response, so
// issuer/audience/expiry checks are applied without JWKS signature
// verification.
func (s *GoogleService) parseIDToken(idToken string) (*GoogleClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(idToken, &GoogleClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse ID token: %w", err)
	}

	claims, ok := token.Claims.(*GoogleClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	if claims.Issuer != googleIssuer && claims.Issuer != googleIssuerAlt {
		return nil, fmt.Errorf("invalid issuer: %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != s.config.ClientID {
		return nil, errors.New("invalid audience")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	return claims, nil
}
