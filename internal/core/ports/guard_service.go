package ports

import (
	"context"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

// SessionEventInput is the DTO passed from the transport layer to the guard.
type SessionEventInput struct {
	ClientID string
	Event    domain.SessionEvent
	Session  *domain.Session // nil for SIGNED_OUT and refresh failures
	// Actor is the user the caller authenticated as, possibly with an
	// expired token. Defaults to Session.UserID.
	Actor string
}

// GuardSnapshot is what the UI renders from.
type GuardSnapshot struct {
	ClientID         string       `json:"client_id"`
	State            domain.State `json:"state"`
	Online           bool         `json:"online"`
	SignOutRequested bool         `json:"sign_out_requested"`
}

// Offline reports whether the non-blocking offline indicator should show.
func (s GuardSnapshot) Offline() bool {
	return !s.Online || s.State.Kind == domain.StateDegraded
}

// GuardService owns one reconciler per browser client.
type GuardService interface {
	Process(ctx context.Context, in SessionEventInput) error
	ReportConnectivity(ctx context.Context, clientID string, online bool) error
	Snapshot(ctx context.Context, clientID string) GuardSnapshot
	// Owner is the user whose session the client holds, or "" for none.
	Owner(ctx context.Context, clientID string) string
	Reverify(ctx context.Context, clientID string) error
	SignOut(ctx context.Context, clientID string) error
	Clients(ctx context.Context) []GuardSnapshot
}
