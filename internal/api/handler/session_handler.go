package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tutorlab/session-guard/internal/api/middleware"
	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/ports"
)

// EventDispatcher is the interface the handler uses to enqueue session events.
type EventDispatcher interface {
	Enqueue(event ports.SessionEventInput)
}

// SessionHandler handles session events forwarded by the browser.
type SessionHandler struct {
	dispatcher EventDispatcher
	owners     ClientOwners
}

// NewSessionHandler creates a SessionHandler backed by the given dispatcher.
func NewSessionHandler(dispatcher EventDispatcher, owners ClientOwners) *SessionHandler {
	return &SessionHandler{dispatcher: dispatcher, owners: owners}
}

// Receive handles POST /v1/sessions/events: enqueues one auth-provider event, returns 202.
//
// SIGNED_IN needs the provider's access token as bearer. A TOKEN_REFRESHED
// without a valid token reports a failed refresh. A missing client id is
// assigned and echoed back so the browser can reuse it. Events for a client
// that holds a session must come from that session's user; an expired token
// is enough to sign out.
//
// @Summary      Forward a session change event
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      sessionEventRequest  true  "Session event"
// @Success      202   {object}  acceptedResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/sessions/events [post]
func (h *SessionHandler) Receive(c echo.Context) error {
	var req sessionEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	event := domain.SessionEvent(req.Event)
	sess := middleware.SessionFrom(c)
	if event == domain.EventSignedIn && sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "SIGNED_IN requires a session token")
	}
	if event == domain.EventSignedOut {
		sess = nil
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = middleware.ClientID(c)
	}
	if clientID == "" {
		clientID = uuid.NewString()
	} else if err := authorizeClient(c, h.owners, clientID); err != nil {
		return err
	}

	h.dispatcher.Enqueue(ports.SessionEventInput{
		ClientID: clientID,
		Event:    event,
		Session:  sess,
		Actor:    middleware.SubjectFrom(c),
	})
	c.Response().Header().Set(middleware.HeaderClientID, clientID)
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "event accepted", ClientID: clientID})
}
