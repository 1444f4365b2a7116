package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutorlab/session-guard/internal/core/domain"
	"github.com/tutorlab/session-guard/internal/core/ports"
	"github.com/tutorlab/session-guard/internal/pkg/metrics"
)

// Policy bounds a verification cycle. The zero value is not usable; start
// from DefaultPolicy.
type Policy struct {
	MaxAttempts int
	// InitialTimeout is the per-attempt budget on first load, when the
	// connection may still be cold.
	InitialTimeout time.Duration
	// EstablishedTimeout is the per-attempt budget for any later cycle.
	EstablishedTimeout time.Duration
	RetryDelay         time.Duration
}

// DefaultPolicy returns the tuned production values.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:        3,
		InitialTimeout:     12 * time.Second,
		EstablishedTimeout: 10 * time.Second,
		RetryDelay:         2 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialTimeout <= 0 {
		p.InitialTimeout = d.InitialTimeout
	}
	if p.EstablishedTimeout <= 0 {
		p.EstablishedTimeout = d.EstablishedTimeout
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	return p
}

// Bound is the longest a cycle with the given per-attempt timeout can take.
func (p Policy) Bound(attemptTimeout time.Duration) time.Duration {
	return time.Duration(p.MaxAttempts) * (attemptTimeout + p.RetryDelay)
}

// Verifier wraps one profile fetch with a time budget and bounded retries.
type Verifier struct {
	fetcher ports.ProfileFetcher
	policy  Policy
	log     zerolog.Logger
}

func NewVerifier(fetcher ports.ProfileFetcher, policy Policy, log zerolog.Logger) *Verifier {
	return &Verifier{fetcher: fetcher, policy: policy.normalized(), log: log}
}

// Policy returns the effective policy after defaults were applied.
func (v *Verifier) Policy() Policy { return v.policy }

type fetchResult struct {
	profile *domain.Profile
	err     error
}

// Verify runs one verification cycle for userID. Attempts are sequential and
// each is raced against attemptTimeout. current is consulted before every
// retry; once it reports false the cycle stops with a superseded outcome.
//
// Classification:
//   - profile admitted               → verified
//   - profile present, not admitted  → revoked, no retry
//   - ErrProfileNotFound             → revoked "account removed", no retry
//   - timeout                        → retry until MaxAttempts, then exhausted
//   - any other error                → one retry, then exhausted
func (v *Verifier) Verify(ctx context.Context, userID string, attemptTimeout time.Duration, current func() bool) domain.Outcome {
	start := time.Now()
	out := v.verify(ctx, userID, attemptTimeout, current)

	metrics.VerificationOutcomesTotal.WithLabelValues(string(out.Kind)).Inc()
	metrics.VerificationDuration.WithLabelValues(string(out.Kind)).Observe(time.Since(start).Seconds())
	v.log.Debug().
		Str("user_id", userID).
		Str("outcome", string(out.Kind)).
		Int("attempts", out.Attempts).
		Dur("elapsed", time.Since(start)).
		Msg("verification finished")
	return out
}

func (v *Verifier) verify(ctx context.Context, userID string, attemptTimeout time.Duration, current func() bool) domain.Outcome {
	if attemptTimeout <= 0 {
		attemptTimeout = v.policy.EstablishedTimeout
	}

	transientRetried := false
	attempts := 0
	for attempts < v.policy.MaxAttempts {
		if attempts > 0 {
			if !v.wait(ctx) {
				return domain.SupersededOutcome(attempts)
			}
			if current != nil && !current() {
				return domain.SupersededOutcome(attempts)
			}
		}
		attempts++

		profile, err := v.attempt(ctx, userID, attemptTimeout)
		switch {
		case err == nil:
			metrics.VerificationAttemptsTotal.WithLabelValues("ok").Inc()
			role, reason := profile.Admission()
			if reason != "" {
				return domain.RevokedOutcome(reason, attempts)
			}
			return domain.VerifiedOutcome(role, attempts)

		case errors.Is(err, domain.ErrProfileNotFound):
			metrics.VerificationAttemptsTotal.WithLabelValues("not_found").Inc()
			return domain.RevokedOutcome(domain.ReasonAccountRemoved, attempts)

		case errors.Is(err, domain.ErrAttemptTimeout):
			metrics.VerificationAttemptsTotal.WithLabelValues("timeout").Inc()
			v.log.Warn().Str("user_id", userID).Int("attempt", attempts).Dur("timeout", attemptTimeout).Msg("profile fetch timed out")

		case ctx.Err() != nil:
			return domain.SupersededOutcome(attempts)

		default:
			metrics.VerificationAttemptsTotal.WithLabelValues("error").Inc()
			v.log.Warn().Err(err).Str("user_id", userID).Int("attempt", attempts).Msg("profile fetch failed")
			if transientRetried {
				return domain.ExhaustedOutcome(attempts)
			}
			transientRetried = true
		}
	}
	return domain.ExhaustedOutcome(attempts)
}

// attempt runs a single fetch raced against timeout. The fetch goroutine
// writes to a buffered channel, so an abandoned call finishes on its own.
func (v *Verifier) attempt(ctx context.Context, userID string, timeout time.Duration) (*domain.Profile, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		p, err := v.fetcher.FetchProfile(actx, userID)
		done <- fetchResult{profile: p, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if ctx.Err() == nil && errors.Is(res.err, context.DeadlineExceeded) {
				return nil, domain.ErrAttemptTimeout
			}
			return nil, res.err
		}
		if res.profile == nil {
			return nil, domain.ErrProfileNotFound
		}
		return res.profile, nil
	case <-actx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrAttemptTimeout
	}
}

func (v *Verifier) wait(ctx context.Context) bool {
	if v.policy.RetryDelay == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(v.policy.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
