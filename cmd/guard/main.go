package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutorlab/session-guard/internal/api"
	"github.com/tutorlab/session-guard/internal/api/handler"
	"github.com/tutorlab/session-guard/internal/core/ports"
	"github.com/tutorlab/session-guard/internal/core/service"
	"github.com/tutorlab/session-guard/internal/infrastructure/db/mongo"
	"github.com/tutorlab/session-guard/internal/infrastructure/db/postgres"
	"github.com/tutorlab/session-guard/internal/infrastructure/db/redis"
	"github.com/tutorlab/session-guard/internal/infrastructure/profilefetch"
	"github.com/tutorlab/session-guard/internal/infrastructure/queue"
	"github.com/tutorlab/session-guard/internal/infrastructure/session"
	"github.com/tutorlab/session-guard/internal/pkg/config"
	"github.com/tutorlab/session-guard/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "guard",
		Short:         "Session guard for the tutoring school web app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), verifyCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the guard HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func verifyCmd() *cobra.Command {
	var established bool
	cmd := &cobra.Command{
		Use:   "verify <user-id>",
		Short: "Run one verification cycle for a user and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyOnce(cmd.Context(), args[0], established)
		},
	}
	cmd.Flags().BoolVar(&established, "established", false, "use the established-session timeout instead of the initial-load one")
	return cmd
}

// stores bundles the backends both commands need.
type stores struct {
	fetcher ports.ProfileFetcher
	checks  map[string]handler.Pinger
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openProfileStore(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{checks: map[string]handler.Pinger{}}

	switch cfg.ProfileStore {
	case config.StoreMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Disconnect(context.Background()) })
		s.checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		s.fetcher = mongo.NewProfileRepository(db)
	default:
		pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.checks["postgres"] = pool.Ping
		s.fetcher = postgres.NewProfileRepository(pool)
	}
	return s, nil
}

func policyFrom(cfg *config.Config) service.Policy {
	return service.Policy{
		MaxAttempts:        cfg.Guard.MaxAttempts,
		InitialTimeout:     cfg.Guard.InitialTimeout,
		EstablishedTimeout: cfg.Guard.EstablishedTimeout,
		RetryDelay:         cfg.Guard.RetryDelay,
	}
}

// sharedFetchTimeout outlives any single attempt so a late joiner of a
// coalesced read is never cut short before its own budget.
func sharedFetchTimeout(p service.Policy) time.Duration {
	return 2 * max(p.InitialTimeout, p.EstablishedTimeout)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "session-guard",
		Env:     cfg.Env,
	})
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to verify session tokens")
	}

	st, err := openProfileStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB, Password: cfg.Redis.Password})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	st.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	policy := policyFrom(cfg)
	guard := service.NewGuard(
		profilefetch.NewCoalescing(st.fetcher, sharedFetchTimeout(policy)),
		redis.NewRoleCache(rdb, cfg.Redis.RoleTTL),
		policy,
		cfg.Guard.ClientIdleTTL,
		logger.Component("guard"),
	)
	defer guard.Close()

	dispatcher := queue.NewDispatcher(cfg.Guard.Workers, guard, logger.Component("dispatcher"))
	dispatcher.Start(ctx)

	e := api.NewRouter(api.Deps{
		Guard:      guard,
		Dispatcher: dispatcher,
		Tokens:     session.NewTokenVerifier(cfg.JWTSecret, cfg.JWTAudience),
		Checks:     st.checks,
		Log:        logger.Component("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("profile_store", cfg.ProfileStore).
			Msg("session guard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	return nil
}

func verifyOnce(ctx context.Context, userID string, established bool) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr, Env: cfg.Env})

	st, err := openProfileStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	policy := policyFrom(cfg)
	timeout := policy.InitialTimeout
	if established {
		timeout = policy.EstablishedTimeout
	}

	v := service.NewVerifier(st.fetcher, policy, log.With().Str("component", "verifier").Logger())
	out := v.Verify(ctx, userID, timeout, func() bool { return true })

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
