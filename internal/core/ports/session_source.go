package ports

import (
	"context"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

// SessionSource is the authentication provider as seen by the guard.
type SessionSource interface {
	// CurrentSession returns the active session, or nil when signed out.
	CurrentSession(ctx context.Context) (*domain.Session, error)
	// Subscribe registers fn for session changes. The returned func releases
	// the subscription and is safe to call more than once.
	Subscribe(fn func(domain.SessionChange)) (unsubscribe func())
	// SignOut terminates the session at the provider.
	SignOut(ctx context.Context) error
}
