package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/ports"
	"github.com/tutorlab/session-guard/internal/pkg/metrics"
)

const defaultClientIdleTTL = 30 * time.Minute

// guardClient is everything the guard keeps for one browser client.
type guardClient struct {
	id          string
	feed        *SessionFeed
	monitor     *ConnectivityMonitor
	reconciler  *Reconciler
	cancel      context.CancelFunc
	unsubscribe func()
}

func (c *guardClient) stop() {
	c.unsubscribe()
	c.cancel()
}

// owner is the user of the session the client currently holds.
func (c *guardClient) owner() string {
	s, _ := c.feed.CurrentSession(context.Background())
	if s == nil {
		return ""
	}
	return s.UserID
}

func (c *guardClient) stopped() bool {
	select {
	case <-c.reconciler.Done():
		return true
	default:
		return false
	}
}

// Guard runs one reconciler per browser client. Clients idle for longer than
// the configured TTL are evicted and their reconcilers stopped.
type Guard struct {
	verifier *Verifier
	roles    ports.RoleCache
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients *gocache.Cache
}

var _ ports.GuardService = (*Guard)(nil)

// NewGuard returns a Guard. roles may be nil.
func NewGuard(fetcher ports.ProfileFetcher, roles ports.RoleCache, policy Policy, idleTTL time.Duration, log zerolog.Logger) *Guard {
	if idleTTL <= 0 {
		idleTTL = defaultClientIdleTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Guard{
		verifier: NewVerifier(fetcher, policy, log),
		roles:    roles,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		clients:  gocache.New(idleTTL, cleanupInterval(idleTTL)),
	}
	g.clients.OnEvicted(func(id string, v interface{}) {
		if c, ok := v.(*guardClient); ok {
			c.stop()
			metrics.ActiveClients.Dec()
			g.log.Debug().Str("client_id", id).Msg("guard client evicted")
		}
	})
	return g
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < 2*time.Minute {
		return ttl / 2
	}
	return time.Minute
}

// Policy exposes the effective verification policy.
func (g *Guard) Policy() Policy { return g.verifier.Policy() }

func (g *Guard) client(id string, create bool) (*guardClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if v, ok := g.clients.Get(id); ok {
		c := v.(*guardClient)
		if !c.stopped() {
			g.clients.SetDefault(id, c) // touch
			return c, nil
		}
		g.clients.Delete(id)
	}
	if !create {
		return nil, domain.ErrClientNotFound
	}

	c, err := g.newClient(id)
	if err != nil {
		return nil, err
	}
	g.clients.SetDefault(id, c)
	metrics.ActiveClients.Inc()
	return c, nil
}

func (g *Guard) newClient(id string) (*guardClient, error) {
	log := g.log.With().Str("client_id", id).Logger()
	feed := NewSessionFeed()
	monitor := NewConnectivityMonitor()
	rec := NewReconciler(feed, g.verifier, g.roles, log)

	ctx, cancel := context.WithCancel(g.ctx)
	if err := rec.Start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("start reconciler: %w", err)
	}

	unsubscribe := monitor.Subscribe(func(online bool) {
		st := rec.State()
		log.Info().
			Bool("online", online).
			Str("state", string(st.Kind)).
			Msg("connectivity changed")
	})

	log.Debug().Msg("guard client created")
	return &guardClient{
		id:          id,
		feed:        feed,
		monitor:     monitor,
		reconciler:  rec,
		cancel:      cancel,
		unsubscribe: unsubscribe,
	}, nil
}

// Process forwards one session event to the client's reconciler. A client
// holding a session only takes events from that session's user.
func (g *Guard) Process(ctx context.Context, in ports.SessionEventInput) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("process session event: %w", err)
	}
	if !in.Event.Valid() {
		return fmt.Errorf("process session event: %w (%q)", domain.ErrInvalidSessionEvent, in.Event)
	}
	if in.Event == domain.EventSignedIn && in.Session == nil {
		return fmt.Errorf("process session event: %w", domain.ErrNoSession)
	}

	// A sign-out for a client the guard never saw has nothing to reconcile.
	create := in.Event != domain.EventSignedOut
	c, err := g.client(in.ClientID, create)
	if err != nil {
		if !create {
			return nil
		}
		return fmt.Errorf("process session event: %w", err)
	}

	actor := in.Actor
	if actor == "" && in.Session != nil {
		actor = in.Session.UserID
	}
	if owner := c.owner(); owner != "" && owner != actor {
		return fmt.Errorf("process session event: %w", domain.ErrForeignClient)
	}

	c.feed.Publish(domain.SessionChange{Event: in.Event, Session: in.Session})
	return nil
}

// ReportConnectivity records a browser online/offline signal.
func (g *Guard) ReportConnectivity(_ context.Context, clientID string, online bool) error {
	c, err := g.client(clientID, true)
	if err != nil {
		return fmt.Errorf("report connectivity: %w", err)
	}
	c.monitor.Set(online)
	return nil
}

// Snapshot returns the client's state. Unknown clients are unauthenticated.
func (g *Guard) Snapshot(_ context.Context, clientID string) ports.GuardSnapshot {
	c, err := g.client(clientID, false)
	if err != nil {
		return ports.GuardSnapshot{
			ClientID: clientID,
			State:    domain.Unauthenticated(""),
			Online:   true,
		}
	}
	return snapshotOf(c)
}

func (g *Guard) Owner(_ context.Context, clientID string) string {
	c, err := g.client(clientID, false)
	if err != nil {
		return ""
	}
	return c.owner()
}

func snapshotOf(c *guardClient) ports.GuardSnapshot {
	return ports.GuardSnapshot{
		ClientID:         c.id,
		State:            c.reconciler.State(),
		Online:           c.monitor.Online(),
		SignOutRequested: c.feed.SignOutRequested(),
	}
}

func (g *Guard) Reverify(ctx context.Context, clientID string) error {
	c, err := g.client(clientID, false)
	if err != nil {
		return fmt.Errorf("reverify: %w", err)
	}
	if err := c.reconciler.Reverify(ctx); err != nil {
		return fmt.Errorf("reverify: %w", err)
	}
	return nil
}

// SignOut ends the client's session on the visitor's request.
func (g *Guard) SignOut(ctx context.Context, clientID string) error {
	c, err := g.client(clientID, false)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return c.feed.SignOut(ctx)
}

// Clients lists snapshots of every live client, ordered by client id.
func (g *Guard) Clients(_ context.Context) []ports.GuardSnapshot {
	items := g.clients.Items()
	out := make([]ports.GuardSnapshot, 0, len(items))
	for _, it := range items {
		if c, ok := it.Object.(*guardClient); ok {
			out = append(out, snapshotOf(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Close stops every reconciler. Deleting fires the eviction hook.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id := range g.clients.Items() {
		g.clients.Delete(id)
	}
	g.cancel()
}
