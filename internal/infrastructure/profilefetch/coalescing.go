// Package profilefetch decorates profile fetchers.
package profilefetch

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/ports"
)

const defaultSharedTimeout = 30 * time.Second

// Coalescing shares one in-flight backend read among concurrent requests for
// the same user, e.g. several tabs verifying at once.
//
// The shared read is detached from whichever caller started it and bounded
// by its own timeout. Each caller still gives up on its own context.
type Coalescing struct {
	next    ports.ProfileFetcher
	timeout time.Duration
	sf      singleflight.Group
}

var _ ports.ProfileFetcher = (*Coalescing)(nil)

// NewCoalescing wraps next. timeout bounds the shared read and should exceed
// the longest per-attempt budget; if timeout <= 0, 30s is used.
func NewCoalescing(next ports.ProfileFetcher, timeout time.Duration) *Coalescing {
	if timeout <= 0 {
		timeout = defaultSharedTimeout
	}
	return &Coalescing{next: next, timeout: timeout}
}

func (c *Coalescing) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ch := c.sf.DoChan(userID, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.next.FetchProfile(fctx, userID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	p, _ := res.Val.(*domain.Profile)
	if p == nil {
		return nil, domain.ErrProfileNotFound
	}
	// callers must not share the pointer
	clone := *p
	return &clone, nil
}
