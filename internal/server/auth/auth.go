package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService validates bearer access tokens. Logging in and issuing tokens happens elsewhere.
type AuthService struct {
	config *Config
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{config: config}
}

func (s *AuthService) IsEnabled() bool {
	return s != nil && s.config != nil && s.config.Enabled
}

// ValidateAccessToken checks signature, expiry, issuer and token type, and returns the claims.
// The subject is the username permissions are evaluated for.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrInvalidAccessToken
	}

	claims, err := ParseClaims(accessToken, s.config.AccessTokenSecret, jwt.WithIssuer(s.config.TokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}

	if claims.Type != AccessToken {
		return nil, fmt.Errorf("%w: wrong token type got %q", ErrInvalidAccessToken, claims.Type)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, ErrMissingSubject)
	}

	return claims, nil
}

// IssueAccessToken signs an access token with the configured issuer and secret.
func (s *AuthService) IssueAccessToken(subject string) (string, error) {
	return NewAccessToken(subject, s.config.TokenIssuer, s.config.AccessTokenSecret, s.config.AccessTokenExpiry)
}
