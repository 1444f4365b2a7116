package ports

import (
	"context"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

// ProfileFetcher loads a single profile row by user id.
//
// Implementations must return domain.ErrProfileNotFound (wrapped or not) when
// the backend confirms the row does not exist. Any other error is treated as
// transient. Callers impose their own timeout; implementations need not honour
// ctx cancellation.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// RoleCache remembers the last role a user was verified with.
type RoleCache interface {
	// LastRole returns domain.RoleNone with a nil error on a cache miss.
	LastRole(ctx context.Context, userID string) (domain.Role, error)
	Remember(ctx context.Context, userID string, role domain.Role) error
	Forget(ctx context.Context, userID string) error
}
