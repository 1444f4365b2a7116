package domain

import "time"

// StateKind names a reconciliation state.
type StateKind string

const (
	StateUnauthenticated StateKind = "unauthenticated"
	StateLoading         StateKind = "loading"
	StateVerified        StateKind = "verified"
	StateRevoked         StateKind = "revoked"
	StateDegraded        StateKind = "degraded"
)

// State is the guard's derived view of a visitor.
//
//   - Verified carries Role.
//   - Revoked carries Reason.
//   - Degraded carries CachedRole (possibly empty) and Reason.
//   - Unauthenticated may carry the Reason of the revocation that ended the session.
type State struct {
	Kind       StateKind `json:"kind"`
	Role       Role      `json:"role,omitempty"`
	CachedRole Role      `json:"cached_role,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Generation uint64    `json:"generation"`
	Since      time.Time `json:"since"`
}

func Unauthenticated(reason string) State {
	return State{Kind: StateUnauthenticated, Reason: reason}
}

func Loading(userID string, gen uint64) State {
	return State{Kind: StateLoading, UserID: userID, Generation: gen}
}

func Verified(userID string, role Role, gen uint64) State {
	return State{Kind: StateVerified, Role: role, UserID: userID, Generation: gen}
}

func Revoked(userID, reason string, gen uint64) State {
	return State{Kind: StateRevoked, Reason: reason, UserID: userID, Generation: gen}
}

func Degraded(userID string, cached Role, reason string, gen uint64) State {
	return State{Kind: StateDegraded, CachedRole: cached, Reason: reason, UserID: userID, Generation: gen}
}

// AdmitsProtectedContent reports whether protected content may be rendered.
// Only Verified and Degraded admit.
func (s State) AdmitsProtectedContent() bool {
	return s.Kind == StateVerified || s.Kind == StateDegraded
}

// EffectiveRole is the role the visitor is admitted with, if any.
func (s State) EffectiveRole() Role {
	switch s.Kind {
	case StateVerified:
		return s.Role
	case StateDegraded:
		return s.CachedRole
	}
	return RoleNone
}
