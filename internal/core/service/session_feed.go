package service

import (
	"context"
	"sync"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

// SessionFeed is an in-process session source for one browser client. The
// browser forwards its auth provider's events through Publish; the feed keeps
// the current session and fans changes out to subscribers in publish order.
type SessionFeed struct {
	mu               sync.Mutex
	session          *domain.Session
	nextID           int
	subs             []feedSubscriber
	signOutRequested bool
}

type feedSubscriber struct {
	id int
	fn func(domain.SessionChange)
}

func NewSessionFeed() *SessionFeed {
	return &SessionFeed{}
}

// Publish applies a change and notifies subscribers. Calls are serialized so
// subscribers observe changes in the order they were published.
func (f *SessionFeed) Publish(change domain.SessionChange) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case change.Event == domain.EventSignedOut, change.RefreshFailed():
		f.session = nil
	case change.Session != nil:
		s := *change.Session
		f.session = &s
		f.signOutRequested = false
	}
	for _, sub := range f.subs {
		sub.fn(change)
	}
}

func (f *SessionFeed) CurrentSession(_ context.Context) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

func (f *SessionFeed) Subscribe(fn func(domain.SessionChange)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs = append(f.subs, feedSubscriber{id: id, fn: fn})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, sub := range f.subs {
				if sub.id == id {
					f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// SignOut drops the session locally, flags the browser to sign out at the
// provider, and emits SIGNED_OUT.
func (f *SessionFeed) SignOut(_ context.Context) error {
	f.mu.Lock()
	f.signOutRequested = true
	f.mu.Unlock()

	f.Publish(domain.SessionChange{Event: domain.EventSignedOut})
	return nil
}

// SignOutRequested reports whether the guard asked the browser to sign out.
func (f *SessionFeed) SignOutRequested() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutRequested
}
