package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/ports"
	"github.com/tutorlab/session-guard/internal/pkg/metrics"
)

const (
	inboxBuffer      = 64
	roleCacheTimeout = 2 * time.Second
	signOutTimeout   = 10 * time.Second
)

var (
	// ErrReconcilerStopped is returned by calls made after the loop has exited.
	ErrReconcilerStopped = errors.New("reconciler stopped")
	errAlreadyStarted    = errors.New("reconciler already started")
)

// Loop messages. Everything that can change state goes through the inbox and
// is handled by the single loop goroutine.
type (
	sessionMsg struct {
		change domain.SessionChange
	}
	bootMsg struct {
		session *domain.Session
		seq     uint64
	}
	completionMsg struct {
		gen        uint64
		userID     string
		outcome    domain.Outcome
		cachedRole domain.Role
	}
	reverifyMsg struct {
		reply chan error
	}
)

// Reconciler is the state machine deciding whether the visitor of one client
// may see protected content, and as what role.
//
// Every verification cycle is tagged with a generation. Any session event
// bumps the generation, so a slow fetch from an older cycle is discarded when
// it completes instead of overwriting newer state.
type Reconciler struct {
	source   ports.SessionSource
	verifier *Verifier
	roles    ports.RoleCache
	log      zerolog.Logger
	now      func() time.Time

	inbox   chan any
	done    chan struct{}
	started atomic.Bool
	gen     atomic.Uint64
	seq     atomic.Uint64

	mu       sync.RWMutex
	state    domain.State
	nextID   int
	watchers []stateWatcher

	// owned by the loop goroutine
	session       *domain.Session
	cycleUser     string
	priorUser     string
	priorRole     domain.Role
	signOutReason string
}

type stateWatcher struct {
	id int
	fn func(domain.State)
}

// NewReconciler builds a reconciler in the Unauthenticated state. roles may be nil.
func NewReconciler(source ports.SessionSource, verifier *Verifier, roles ports.RoleCache, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		source:   source,
		verifier: verifier,
		roles:    roles,
		log:      log,
		now:      time.Now,
		inbox:    make(chan any, inboxBuffer),
		done:     make(chan struct{}),
		state:    domain.Unauthenticated(""),
	}
}

// Start subscribes to the session source, then bootstraps from its current
// session. The subscription is released when ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}

	unsubscribe := r.source.Subscribe(func(change domain.SessionChange) {
		r.seq.Add(1)
		r.post(sessionMsg{change: change})
	})
	go r.run(ctx, unsubscribe)

	seq := r.seq.Load()
	sess, err := r.source.CurrentSession(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not read current session, waiting for session events")
		return nil
	}
	if sess != nil {
		r.post(bootMsg{session: sess, seq: seq})
	}
	return nil
}

// State returns the current reconciliation state.
func (r *Reconciler) State() domain.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Done is closed once the loop has exited.
func (r *Reconciler) Done() <-chan struct{} { return r.done }

// Subscribe registers fn for state changes. fn runs on the loop goroutine and
// must not block. The returned func releases the subscription.
func (r *Reconciler) Subscribe(fn func(domain.State)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.watchers = append(r.watchers, stateWatcher{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, w := range r.watchers {
				if w.id == id {
					r.watchers = append(r.watchers[:i:i], r.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// Reverify starts a fresh verification cycle for the current session. It is
// the "retry" action offered on the revoked and offline surfaces.
func (r *Reconciler) Reverify(ctx context.Context) error {
	reply := make(chan error, 1)
	if !r.post(reverifyMsg{reply: reply}) {
		return ErrReconcilerStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrReconcilerStopped
	}
}

func (r *Reconciler) post(m any) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.done:
		return false
	}
}

func (r *Reconciler) run(ctx context.Context, unsubscribe func()) {
	defer func() {
		close(r.done)
		unsubscribe()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-r.inbox:
			r.handle(ctx, m)
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, m any) {
	switch m := m.(type) {
	case sessionMsg:
		r.onSessionChange(ctx, m.change)
	case bootMsg:
		if r.seq.Load() != m.seq {
			// a session event arrived after the bootstrap read; it wins
			r.log.Debug().Msg("bootstrap session superseded by session event")
			return
		}
		r.signIn(ctx, m.session, r.verifier.Policy().InitialTimeout)
	case completionMsg:
		r.onCompletion(ctx, m)
	case reverifyMsg:
		if r.session == nil {
			m.reply <- domain.ErrNoSession
			return
		}
		r.beginCycle(ctx, r.session, r.verifier.Policy().EstablishedTimeout)
		m.reply <- nil
	}
}

func (r *Reconciler) onSessionChange(ctx context.Context, change domain.SessionChange) {
	switch {
	case change.Event == domain.EventSignedOut, change.RefreshFailed():
		forced := r.signOutReason != "" && r.state.Kind == domain.StateRevoked
		r.signOutReason = ""
		r.session = nil
		r.cycleUser = ""

		if forced {
			// the sign-out this machine requested: the revoked screen stays
			// up until the visitor signs in again or dismisses it
			r.transition(domain.Revoked(r.state.UserID, r.state.Reason, r.gen.Add(1)))
			return
		}

		// dismissing a revoked screen keeps its reason for the login page
		reason := ""
		if r.state.Kind == domain.StateRevoked {
			reason = r.state.Reason
		}
		next := domain.Unauthenticated(reason)
		next.Generation = r.gen.Add(1)
		r.transition(next)

	case change.Session == nil:
		r.log.Warn().Str("event", string(change.Event)).Msg("session event without session ignored")

	case change.Event == domain.EventTokenRefreshed &&
		r.session != nil &&
		r.session.UserID == change.Session.UserID:
		// same session, new token material; the verified role still stands
		r.session = change.Session

	default:
		r.signIn(ctx, change.Session, r.verifier.Policy().EstablishedTimeout)
	}
}

// signIn starts a cycle unless one is already loading for the same user.
func (r *Reconciler) signIn(ctx context.Context, s *domain.Session, timeout time.Duration) {
	if r.state.Kind == domain.StateLoading && r.cycleUser == s.UserID {
		r.session = s
		r.log.Debug().Str("user_id", s.UserID).Msg("verification already in progress")
		return
	}
	r.beginCycle(ctx, s, timeout)
}

func (r *Reconciler) beginCycle(ctx context.Context, s *domain.Session, timeout time.Duration) {
	cur := r.state
	if cur.AdmitsProtectedContent() && cur.UserID == s.UserID && cur.EffectiveRole() != domain.RoleNone {
		r.priorUser, r.priorRole = s.UserID, cur.EffectiveRole()
	} else if r.priorUser != s.UserID {
		r.priorUser, r.priorRole = "", domain.RoleNone
	}

	gen := r.gen.Add(1)
	r.session = s
	r.cycleUser = s.UserID
	r.signOutReason = ""
	r.transition(domain.Loading(s.UserID, gen))

	go r.runCycle(ctx, gen, s.UserID, timeout)
}

// runCycle executes off-loop and reports back through the inbox.
func (r *Reconciler) runCycle(ctx context.Context, gen uint64, userID string, timeout time.Duration) {
	current := func() bool { return r.gen.Load() == gen }

	// The cached role is looked up alongside the fetch so that falling back to
	// it adds no latency after exhaustion.
	cached := make(chan domain.Role, 1)
	if r.roles != nil {
		go func() {
			cctx, cancel := context.WithTimeout(ctx, roleCacheTimeout)
			defer cancel()
			role, err := r.roles.LastRole(cctx, userID)
			if err != nil {
				r.log.Warn().Err(err).Str("user_id", userID).Msg("role cache lookup failed")
			}
			cached <- role
		}()
	}

	out := r.verifier.Verify(ctx, userID, timeout, current)

	msg := completionMsg{gen: gen, userID: userID, outcome: out}
	if out.Kind == domain.OutcomeExhausted {
		select {
		case msg.cachedRole = <-cached:
		default:
		}
	}
	r.post(msg)
}

func (r *Reconciler) onCompletion(ctx context.Context, m completionMsg) {
	if m.gen != r.gen.Load() || r.state.Kind != domain.StateLoading || r.session == nil {
		metrics.StaleCompletionsTotal.Inc()
		r.log.Debug().
			Uint64("generation", m.gen).
			Uint64("current", r.gen.Load()).
			Str("outcome", string(m.outcome.Kind)).
			Msg("stale verification discarded")
		return
	}

	switch m.outcome.Kind {
	case domain.OutcomeVerified:
		r.priorUser, r.priorRole = m.userID, m.outcome.Role
		r.transition(domain.Verified(m.userID, m.outcome.Role, m.gen))
		r.cacheAsync(ctx, func(c context.Context) error { return r.roles.Remember(c, m.userID, m.outcome.Role) })

	case domain.OutcomeRevoked:
		r.priorUser, r.priorRole = "", domain.RoleNone
		r.transition(domain.Revoked(m.userID, m.outcome.Reason, m.gen))
		r.cacheAsync(ctx, func(c context.Context) error { return r.roles.Forget(c, m.userID) })
		if m.outcome.ForceSignOut {
			r.signOutReason = m.outcome.Reason
			go r.forceSignOut(ctx, m.userID)
		}

	case domain.OutcomeExhausted:
		cached := m.cachedRole
		if r.priorUser == m.userID && r.priorRole != domain.RoleNone {
			cached = r.priorRole
		}
		r.transition(domain.Degraded(m.userID, cached, domain.ReasonOffline, m.gen))

	case domain.OutcomeSuperseded:
		// only reachable when ctx is done; the loop exits next
	}
}

// forceSignOut runs off-loop: the SIGNED_OUT it provokes re-enters the inbox.
func (r *Reconciler) forceSignOut(ctx context.Context, userID string) {
	metrics.ForcedSignOutsTotal.Inc()
	sctx, cancel := context.WithTimeout(ctx, signOutTimeout)
	defer cancel()
	if err := r.source.SignOut(sctx); err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("forced sign-out failed")
		return
	}
	r.log.Info().Str("user_id", userID).Msg("signed out removed account")
}

func (r *Reconciler) cacheAsync(ctx context.Context, fn func(context.Context) error) {
	if r.roles == nil {
		return
	}
	go func() {
		cctx, cancel := context.WithTimeout(ctx, roleCacheTimeout)
		defer cancel()
		if err := fn(cctx); err != nil {
			r.log.Warn().Err(err).Msg("role cache update failed")
		}
	}()
}

func (r *Reconciler) transition(next domain.State) {
	next.Since = r.now().UTC()

	r.mu.Lock()
	prev := r.state
	r.state = next
	watchers := make([]stateWatcher, len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	metrics.StateTransitionsTotal.WithLabelValues(string(prev.Kind), string(next.Kind)).Inc()
	r.log.Info().
		Str("from", string(prev.Kind)).
		Str("to", string(next.Kind)).
		Str("user_id", next.UserID).
		Str("role", string(next.EffectiveRole())).
		Str("reason", next.Reason).
		Uint64("generation", next.Generation).
		Msg("guard state changed")

	for _, w := range watchers {
		w.fn(next)
	}
}
