package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type fetchFunc func(ctx context.Context, userID string, call int) (*domain.Profile, error)

type stubFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fn    fetchFunc
}

func newStubFetcher(fn fetchFunc) *stubFetcher {
	return &stubFetcher{calls: map[string]int{}, fn: fn}
}

func (f *stubFetcher) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	f.mu.Lock()
	f.calls[userID]++
	n := f.calls[userID]
	f.mu.Unlock()
	return f.fn(ctx, userID, n)
}

func (f *stubFetcher) Calls(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[userID]
}

func profileWith(role domain.Role) fetchFunc {
	return func(_ context.Context, userID string, _ int) (*domain.Profile, error) {
		return &domain.Profile{ID: userID, Role: role, Status: domain.StatusActive}, nil
	}
}

func failWith(err error) fetchFunc {
	return func(context.Context, string, int) (*domain.Profile, error) {
		return nil, err
	}
}

// hang never answers, not even on context cancellation, like a dropped
// connection the backend client cannot abort.
func hang(t *testing.T) fetchFunc {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	return func(context.Context, string, int) (*domain.Profile, error) {
		<-block
		return nil, context.Canceled
	}
}

type stubRoleCache struct {
	mu    sync.Mutex
	roles map[string]domain.Role
}

func newStubRoleCache() *stubRoleCache {
	return &stubRoleCache{roles: map[string]domain.Role{}}
}

func (c *stubRoleCache) LastRole(_ context.Context, userID string) (domain.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles[userID], nil
}

func (c *stubRoleCache) Remember(_ context.Context, userID string, role domain.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[userID] = role
	return nil
}

func (c *stubRoleCache) Forget(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, userID)
	return nil
}

func (c *stubRoleCache) Role(userID string) domain.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles[userID]
}

// countingFeed is a SessionFeed that counts sign-out requests.
type countingFeed struct {
	*SessionFeed
	signOuts atomic.Int32
}

func (f *countingFeed) SignOut(ctx context.Context) error {
	f.signOuts.Add(1)
	return f.SessionFeed.SignOut(ctx)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []domain.State
}

func (r *stateRecorder) record(s domain.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) kinds() []domain.StateKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StateKind, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Kind)
	}
	return out
}

func (r *stateRecorder) count(kind domain.StateKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func testPolicy() Policy {
	return Policy{
		MaxAttempts:        3,
		InitialTimeout:     40 * time.Millisecond,
		EstablishedTimeout: 30 * time.Millisecond,
		RetryDelay:         10 * time.Millisecond,
	}
}

func session(userID string) *domain.Session {
	return &domain.Session{UserID: userID, Email: userID + "@school.test", IssuedAt: time.Now()}
}

func signedIn(userID string) domain.SessionChange {
	return domain.SessionChange{Event: domain.EventSignedIn, Session: session(userID)}
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)
