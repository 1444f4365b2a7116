package domain

import (
	"errors"
	"time"
)

// SessionEvent is the kind of change reported by the session source.
type SessionEvent string

const (
	EventSignedIn       SessionEvent = "SIGNED_IN"
	EventSignedOut      SessionEvent = "SIGNED_OUT"
	EventTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
)

// Valid reports whether e is a known session event.
func (e SessionEvent) Valid() bool {
	switch e {
	case EventSignedIn, EventSignedOut, EventTokenRefreshed:
		return true
	}
	return false
}

// Session is the remote authentication session. It is owned by the session
// source; the guard holds it read-only and never inspects AccessToken.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	AccessToken string    `json:"-"`
	IssuedAt    time.Time `json:"issued_at"`
	RefreshedAt time.Time `json:"refreshed_at,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// SessionChange is one event emitted by the session source. A TOKEN_REFRESHED
// change without a session is a refresh failure.
type SessionChange struct {
	Event   SessionEvent
	Session *Session
}

// RefreshFailed reports whether the change signals a failed token refresh.
func (c SessionChange) RefreshFailed() bool {
	return c.Event == EventTokenRefreshed && c.Session == nil
}

var (
	ErrNoSession           = errors.New("no active session")
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrInvalidSessionEvent = errors.New("invalid session event")
	ErrClientNotFound      = errors.New("guard client not found")
	ErrForeignClient       = errors.New("guard client belongs to another user")
)
