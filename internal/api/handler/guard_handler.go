package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutorlab/session-guard/internal/api/middleware"
	"github.com/tutorlab/session-guard/internal/core/ports"
)

// GuardHandler exposes the guard state of the calling client.
type GuardHandler struct {
	guard ports.GuardService
}

func NewGuardHandler(guard ports.GuardService) *GuardHandler {
	return &GuardHandler{guard: guard}
}

// ClientOwners reports which user a browser client belongs to.
type ClientOwners interface {
	Owner(ctx context.Context, clientID string) string
}

// authorizeClient lets the caller act on clientID. A client without a session
// is open to anyone; one holding a session answers only to a bearer token
// naming the same user.
func authorizeClient(c echo.Context, owners ClientOwners, clientID string) error {
	owner := owners.Owner(c.Request().Context(), clientID)
	if owner == "" {
		return nil
	}
	switch middleware.SubjectFrom(c) {
	case owner:
		return nil
	case "":
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return echo.NewHTTPError(http.StatusForbidden, "client belongs to another user")
}

// clientFor reads the client id header and checks the caller may act on it.
func (h *GuardHandler) clientFor(c echo.Context) (string, error) {
	id, err := requireClientID(c)
	if err != nil {
		return "", err
	}
	if err := authorizeClient(c, h.guard, id); err != nil {
		return "", err
	}
	return id, nil
}

func requireClientID(c echo.Context) (string, error) {
	id := middleware.ClientID(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "missing "+middleware.HeaderClientID+" header")
	}
	return id, nil
}

// State handles GET /v1/guard/state.
//
// @Summary      Current guard state of a client
// @Tags         guard
// @Produce      json
// @Security     BearerAuth
// @Param        X-Client-ID  header    string  true  "Browser client id"
// @Success      200          {object}  stateResponse
// @Failure      400          {object}  errorResponse
// @Failure      401          {object}  errorResponse
// @Failure      403          {object}  errorResponse
// @Router       /v1/guard/state [get]
func (h *GuardHandler) State(c echo.Context) error {
	id, err := h.clientFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toStateResponse(h.guard.Snapshot(c.Request().Context(), id)))
}

// Connectivity handles POST /v1/connectivity.
//
// @Summary      Report browser online/offline signal
// @Tags         guard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      connectivityRequest  true  "Connectivity signal"
// @Success      200   {object}  stateResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/connectivity [post]
func (h *GuardHandler) Connectivity(c echo.Context) error {
	var req connectivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := authorizeClient(c, h.guard, req.ClientID); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.guard.ReportConnectivity(ctx, req.ClientID, *req.Online); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toStateResponse(h.guard.Snapshot(ctx, req.ClientID)))
}

// Reverify handles POST /v1/guard/reverify: the retry action of the revoked
// and offline screens.
//
// @Summary      Re-run profile verification
// @Tags         guard
// @Produce      json
// @Security     BearerAuth
// @Param        X-Client-ID  header    string  true  "Browser client id"
// @Success      202          {object}  stateResponse
// @Failure      401          {object}  errorResponse
// @Failure      403          {object}  errorResponse
// @Failure      404          {object}  errorResponse
// @Failure      409          {object}  errorResponse
// @Router       /v1/guard/reverify [post]
func (h *GuardHandler) Reverify(c echo.Context) error {
	id, err := h.clientFor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.guard.Reverify(ctx, id); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, toStateResponse(h.guard.Snapshot(ctx, id)))
}

// SignOut handles POST /v1/guard/signout.
//
// @Summary      Sign the client out
// @Tags         guard
// @Produce      json
// @Security     BearerAuth
// @Param        X-Client-ID  header    string  true  "Browser client id"
// @Success      200          {object}  stateResponse
// @Failure      401          {object}  errorResponse
// @Failure      403          {object}  errorResponse
// @Failure      404          {object}  errorResponse
// @Router       /v1/guard/signout [post]
func (h *GuardHandler) SignOut(c echo.Context) error {
	id, err := h.clientFor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.guard.SignOut(ctx, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toStateResponse(h.guard.Snapshot(ctx, id)))
}

// Clients handles GET /v1/admin/clients.
//
// @Summary      List live guard clients
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        X-Client-ID  header    string  true  "Browser client id of an admin"
// @Success      200          {object}  clientsResponse
// @Failure      401          {object}  errorResponse
// @Failure      403          {object}  errorResponse
// @Router       /v1/admin/clients [get]
func (h *GuardHandler) Clients(c echo.Context) error {
	snaps := h.guard.Clients(c.Request().Context())
	out := make([]stateResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toStateResponse(s))
	}
	return c.JSON(http.StatusOK, clientsResponse{Count: len(out), Clients: out})
}
