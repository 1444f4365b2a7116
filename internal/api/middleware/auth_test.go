package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

type stubVerifier struct {
	sessions map[string]*domain.Session
	expired  map[string]string
}

func (v *stubVerifier) Verify(raw string) (*domain.Session, error) {
	if s, ok := v.sessions[raw]; ok {
		return s, nil
	}
	return nil, errors.New("bad token")
}

func (v *stubVerifier) Identify(raw string) (string, error) {
	if s, ok := v.sessions[raw]; ok {
		return s.UserID, nil
	}
	if sub, ok := v.expired[raw]; ok {
		return sub, nil
	}
	return "", errors.New("bad token")
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{
		sessions: map[string]*domain.Session{
			"good-token": {UserID: "user-1", Email: "alice@example.com"},
		},
		expired: map[string]string{"stale-token": "user-2"},
	}
}

func TestSessionToken_ValidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := SessionToken(newStubVerifier())(func(c echo.Context) error {
		called = true
		s := SessionFrom(c)
		if s == nil || s.UserID != "user-1" {
			t.Fatalf("session not injected: %+v", s)
		}
		if SubjectFrom(c) != "user-1" {
			t.Fatalf("expected subject user-1, got %q", SubjectFrom(c))
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSessionToken_MissingHeaderPassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SessionToken(newStubVerifier())(func(c echo.Context) error {
		if SessionFrom(c) != nil {
			t.Fatalf("expected no session")
		}
		return c.NoContent(http.StatusNoContent)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestSessionToken_ExpiredTokenNamesSubjectOnly(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SessionToken(newStubVerifier())(func(c echo.Context) error {
		if SessionFrom(c) != nil {
			t.Fatalf("an expired token must not yield a session")
		}
		if SubjectFrom(c) != "user-2" {
			t.Fatalf("expected subject user-2, got %q", SubjectFrom(c))
		}
		return c.NoContent(http.StatusNoContent)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestSessionToken_InvalidHeaderFormat(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SessionToken(newStubVerifier())(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionToken_InvalidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SessionToken(newStubVerifier())(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClientID_TrimsHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderClientID, "  tab-1 ")
	c := e.NewContext(req, httptest.NewRecorder())

	if got := ClientID(c); got != "tab-1" {
		t.Fatalf("expected tab-1, got %q", got)
	}
}
