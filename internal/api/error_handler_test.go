package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/service"
)

func TestHTTPErrorHandler_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("reverify: %w", domain.ErrClientNotFound), http.StatusNotFound},
		{fmt.Errorf("reverify: %w", domain.ErrNoSession), http.StatusConflict},
		{domain.ErrInvalidSessionToken, http.StatusUnauthorized},
		{fmt.Errorf("process: %w", domain.ErrForeignClient), http.StatusForbidden},
		{fmt.Errorf("process: %w", domain.ErrInvalidSessionEvent), http.StatusUnprocessableEntity},
		{service.ErrReconcilerStopped, http.StatusGone},
		{echo.NewHTTPError(http.StatusBadRequest, "invalid payload"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	h := NewHTTPErrorHandler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			h(tt.err, c)

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}
}
