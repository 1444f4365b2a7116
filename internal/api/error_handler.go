package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/service"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, domain.ErrClientNotFound):
		return http.StatusNotFound, "guard client not found"
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusConflict, "no active session"
	case errors.Is(err, domain.ErrForeignClient):
		return http.StatusForbidden, "client belongs to another user"
	case errors.Is(err, domain.ErrInvalidSessionToken):
		return http.StatusUnauthorized, "invalid session token"
	case errors.Is(err, domain.ErrInvalidSessionEvent):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrReconcilerStopped):
		return http.StatusGone, "guard client stopped"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
