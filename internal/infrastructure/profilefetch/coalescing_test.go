package profilefetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

type slowFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	profile *domain.Profile
	err     error
}

func (f *slowFetcher) FetchProfile(ctx context.Context, _ string) (*domain.Profile, error) {
	f.calls.Add(1)
	select {
	case <-f.release:
		return f.profile, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *slowFetcher) waitStarted() {
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
}

func TestCoalescing_SharesInFlightFetch(t *testing.T) {
	f := &slowFetcher{
		release: make(chan struct{}),
		profile: &domain.Profile{ID: "u1", Role: domain.RoleTeacher, Status: domain.StatusActive},
	}
	c := NewCoalescing(f, time.Second)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*domain.Profile, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.FetchProfile(context.Background(), "u1")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = p
		}(i)
	}

	f.waitStarted()
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	if n := f.calls.Load(); n != 1 {
		t.Fatalf("expected 1 backend call, got %d", n)
	}
	for i, p := range results {
		if p == nil || p.Role != domain.RoleTeacher {
			t.Fatalf("caller %d: unexpected profile %+v", i, p)
		}
		if p == f.profile {
			t.Fatalf("caller %d received the shared pointer", i)
		}
	}
}

func TestCoalescing_PropagatesNotFound(t *testing.T) {
	f := &slowFetcher{release: make(chan struct{}), err: domain.ErrProfileNotFound}
	close(f.release)

	_, err := NewCoalescing(f, time.Second).FetchProfile(context.Background(), "gone")
	if err != domain.ErrProfileNotFound {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestCoalescing_LeaderCancellationKeepsSharedFetch(t *testing.T) {
	f := &slowFetcher{
		release: make(chan struct{}),
		profile: &domain.Profile{ID: "u1", Role: domain.RoleStudent, Status: domain.StatusActive},
	}
	c := NewCoalescing(f, time.Second)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.FetchProfile(leaderCtx, "u1")
		leaderErr <- err
	}()
	f.waitStarted()

	type result struct {
		profile *domain.Profile
		err     error
	}
	follower := make(chan result, 1)
	go func() {
		p, err := c.FetchProfile(context.Background(), "u1")
		follower <- result{p, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader: expected context.Canceled, got %v", err)
	}

	close(f.release)
	r := <-follower
	if r.err != nil {
		t.Fatalf("follower: unexpected error: %v", r.err)
	}
	if r.profile == nil || r.profile.Role != domain.RoleStudent {
		t.Fatalf("follower: unexpected profile %+v", r.profile)
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("expected 1 backend call, got %d", n)
	}
}

func TestCoalescing_CallerDeadline(t *testing.T) {
	f := &slowFetcher{release: make(chan struct{})}
	defer close(f.release)
	c := NewCoalescing(f, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.FetchProfile(ctx, "u1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("caller waited %v past its own deadline", elapsed)
	}
}

func TestCoalescing_SharedTimeoutBoundsBackend(t *testing.T) {
	f := &slowFetcher{release: make(chan struct{})}
	defer close(f.release)
	c := NewCoalescing(f, 30*time.Millisecond)

	_, err := c.FetchProfile(context.Background(), "u1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}
