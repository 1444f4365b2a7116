package handler

import (
	"time"

	"github.com/tutorlab/session-guard/internal/core/ports"
)

type sessionEventRequest struct {
	ClientID string `json:"client_id" validate:"omitempty,max=128"`
	Event    string `json:"event"     validate:"required,oneof=SIGNED_IN SIGNED_OUT TOKEN_REFRESHED"`
}

type connectivityRequest struct {
	ClientID string `json:"client_id" validate:"required,max=128"`
	Online   *bool  `json:"online"    validate:"required"`
}

type acceptedResponse struct {
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

type stateResponse struct {
	ClientID         string    `json:"client_id"`
	State            string    `json:"state"`
	Role             string    `json:"role,omitempty"`
	CachedRole       string    `json:"cached_role,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Generation       uint64    `json:"generation"`
	Since            time.Time `json:"since,omitempty"`
	Online           bool      `json:"online"`
	Offline          bool      `json:"offline_indicator"`
	SignOutRequested bool      `json:"sign_out_requested"`
}

type dashboardResponse struct {
	Dashboard string `json:"dashboard"`
	Role      string `json:"role"`
	Offline   bool   `json:"offline_indicator"`
}

type clientsResponse struct {
	Count   int             `json:"count"`
	Clients []stateResponse `json:"clients"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toStateResponse(s ports.GuardSnapshot) stateResponse {
	return stateResponse{
		ClientID:         s.ClientID,
		State:            string(s.State.Kind),
		Role:             string(s.State.Role),
		CachedRole:       string(s.State.CachedRole),
		Reason:           s.State.Reason,
		Generation:       s.State.Generation,
		Since:            s.State.Since,
		Online:           s.Online,
		Offline:          s.Offline(),
		SignOutRequested: s.SignOutRequested,
	}
}
