package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/ports"
)

// HeaderOffline is set on admitted responses while the guard is degraded or
// the browser reports being offline.
const HeaderOffline = "X-Guard-Offline"

const ctxSnapshot = "guard_snapshot"

// SnapshotReader is the part of the guard the route guard needs.
type SnapshotReader interface {
	Snapshot(ctx context.Context, clientID string) ports.GuardSnapshot
}

type deniedResponse struct {
	Error  string `json:"error"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// Protected is the route guard: only verified and degraded clients reach the
// handler, and only with one of the allowed roles when any are given. The
// caller must present a valid session for the user the client belongs to.
//
//   - no session, another user's client, unauthenticated → 401
//   - loading         → 503 with Retry-After
//   - revoked         → 403 with the reason
//   - degraded without a known role on a role-scoped route → 503
func Protected(guard SnapshotReader, allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			snap := guard.Snapshot(c.Request().Context(), ClientID(c))
			st := snap.State

			if sess := SessionFrom(c); sess == nil || sess.UserID != st.UserID {
				return c.JSON(http.StatusUnauthorized, deniedResponse{
					Error: "authentication required", State: string(domain.StateUnauthenticated),
				})
			}

			// an unauthenticated client has no user, so it never gets here
			switch st.Kind {
			case domain.StateLoading:
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusServiceUnavailable, deniedResponse{
					Error: "verifying access", State: string(st.Kind),
				})
			case domain.StateRevoked:
				return c.JSON(http.StatusForbidden, deniedResponse{
					Error: "access revoked", State: string(st.Kind), Reason: st.Reason,
				})
			}

			if len(allowed) > 0 {
				role := st.EffectiveRole()
				if role == domain.RoleNone {
					c.Response().Header().Set("Retry-After", "5")
					return c.JSON(http.StatusServiceUnavailable, deniedResponse{
						Error: "role could not be verified while offline", State: string(st.Kind), Reason: st.Reason,
					})
				}
				if _, ok := allowed[role]; !ok {
					return c.JSON(http.StatusForbidden, deniedResponse{Error: "forbidden", State: string(st.Kind)})
				}
			}

			if snap.Offline() {
				c.Response().Header().Set(HeaderOffline, "true")
			}
			c.Set(ctxSnapshot, snap)
			return next(c)
		}
	}
}

// SnapshotFrom returns the snapshot injected by Protected.
func SnapshotFrom(c echo.Context) (ports.GuardSnapshot, bool) {
	s, ok := c.Get(ctxSnapshot).(ports.GuardSnapshot)
	return s, ok
}
