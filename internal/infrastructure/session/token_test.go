package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims providerClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func validClaims() providerClaims {
	now := time.Now()
	return providerClaims{
		Email: "alice@school.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestTokenVerifier_Valid(t *testing.T) {
	v := NewTokenVerifier(testSecret, "authenticated")
	raw := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	s, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.UserID != "user-1" || s.Email != "alice@school.test" || s.AccessToken != raw {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.ExpiresAt.IsZero() || s.IssuedAt.IsZero() {
		t.Fatalf("expected timestamps, got %+v", s)
	}
}

func TestTokenVerifier_Rejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"anon"}

	noSubject := validClaims()
	noSubject.Subject = ""

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-another"), validClaims())},
		{"wrong method", sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"wrong audience", sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAud)},
		{"missing subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{"missing expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
	}

	v := NewTokenVerifier(testSecret, "authenticated")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.raw)
			if !errors.Is(err, domain.ErrInvalidSessionToken) {
				t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
			}
		})
	}
}

func TestTokenVerifier_NoAudienceCheck(t *testing.T) {
	claims := validClaims()
	claims.Audience = nil
	raw := sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims)

	if _, err := NewTokenVerifier(testSecret, "").Verify(raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTokenVerifier_IdentifyAcceptsExpired(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	raw := sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)

	sub, err := NewTokenVerifier(testSecret, "authenticated").Identify(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("expected user-1, got %q", sub)
	}
}

func TestTokenVerifier_IdentifyRejects(t *testing.T) {
	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"anon"}

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-another"), validClaims())},
		{"wrong method", sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())},
		{"wrong audience", sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAud)},
		{"missing subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
	}

	v := NewTokenVerifier(testSecret, "authenticated")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Identify(tt.raw)
			if !errors.Is(err, domain.ErrInvalidSessionToken) {
				t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
			}
		})
	}
}
