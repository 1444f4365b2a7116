// Package session turns auth-provider access tokens into domain sessions.
package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

// providerClaims mirrors the access tokens issued by the hosted auth provider.
type providerClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 access tokens signed with the provider's JWT secret.
type TokenVerifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
}

// NewTokenVerifier returns a verifier. An empty audience disables the audience check.
func NewTokenVerifier(secret, audience string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), audience: audience, leeway: 30 * time.Second}
}

// Verify parses raw and returns the session it describes.
func (v *TokenVerifier) Verify(raw string) (*domain.Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims providerClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, v.key, opts...)
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSessionToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrInvalidSessionToken)
	}

	s := &domain.Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccessToken: raw,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.UTC()
		s.RefreshedAt = s.IssuedAt
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return s, nil
}

// Identify returns the subject of a correctly signed token, even one that has
// expired. It backs sign-out and refresh-failure reports, which typically
// arrive once the token is no longer usable.
func (v *TokenVerifier) Identify(raw string) (string, error) {
	var claims providerClaims
	_, err := jwt.ParseWithClaims(raw, &claims, v.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSessionToken, err)
	}
	if v.audience != "" && !slices.Contains(claims.Audience, v.audience) {
		return "", fmt.Errorf("%w: unexpected audience", domain.ErrInvalidSessionToken)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", domain.ErrInvalidSessionToken)
	}
	return claims.Subject, nil
}

func (v *TokenVerifier) key(*jwt.Token) (interface{}, error) {
	return v.secret, nil
}
