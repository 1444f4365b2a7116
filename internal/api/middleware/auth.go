package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

// HeaderClientID identifies the browser client (one per tab or page load).
const HeaderClientID = "X-Client-ID"

const (
	ctxSession = "session"
	ctxSubject = "subject"
)

// TokenVerifier turns an auth-provider access token into a session.
// Identify only checks the signature, so it also names expired tokens.
type TokenVerifier interface {
	Verify(raw string) (*domain.Session, error)
	Identify(raw string) (string, error)
}

// SessionToken validates an optional bearer token and injects the session
// into context. Requests without an Authorization header pass through with no
// session. An expired but correctly signed token passes with its subject only;
// anything else is rejected.
func SessionToken(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			sess, err := verifier.Verify(parts[1])
			if err != nil {
				subject, idErr := verifier.Identify(parts[1])
				if idErr != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid session token")
				}
				c.Set(ctxSubject, subject)
				return next(c)
			}

			c.Set(ctxSession, sess)
			c.Set(ctxSubject, sess.UserID)
			return next(c)
		}
	}
}

// SessionFrom returns the session injected by SessionToken, if any.
func SessionFrom(c echo.Context) *domain.Session {
	s, _ := c.Get(ctxSession).(*domain.Session)
	return s
}

// SubjectFrom returns the user the bearer token names, valid or expired, or "".
func SubjectFrom(c echo.Context) string {
	s, _ := c.Get(ctxSubject).(string)
	return s
}

// ClientID reads the client id header.
func ClientID(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(HeaderClientID))
}
