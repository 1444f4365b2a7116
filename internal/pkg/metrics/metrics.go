// Package metrics defines and registers all custom Prometheus metrics for the
// session guard. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register with the default Prometheus registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guard"

// ── Verification metrics ──────────────────────────────────────────────────────

// VerificationAttemptsTotal counts individual profile fetch attempts.
// Label:
//   - result: "ok", "not_found", "timeout", "error"
var VerificationAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_attempts_total",
		Help:      "Total number of profile fetch attempts, by result.",
	},
	[]string{"result"},
)

// VerificationOutcomesTotal counts finished verification cycles.
// Label:
//   - outcome: "verified", "revoked", "exhausted", "superseded"
var VerificationOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_outcomes_total",
		Help:      "Total number of verification cycles, by outcome.",
	},
	[]string{"outcome"},
)

// VerificationDuration measures a whole cycle, retries included.
var VerificationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "verification_duration_seconds",
		Help:      "Duration of a verification cycle from first attempt to outcome.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 45},
	},
	[]string{"outcome"},
)

// ── State machine metrics ─────────────────────────────────────────────────────

// StateTransitionsTotal counts reconciliation state transitions.
// Labels:
//   - from, to: state kinds (e.g. "loading" → "verified")
var StateTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Total number of reconciliation state transitions.",
	},
	[]string{"from", "to"},
)

// StaleCompletionsTotal counts fetch completions discarded for an outdated generation.
var StaleCompletionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_completions_total",
		Help:      "Total number of verification completions discarded as stale.",
	},
)

// ForcedSignOutsTotal counts sign-outs requested because the profile was removed.
var ForcedSignOutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_sign_outs_total",
		Help:      "Total number of sign-outs forced by a removed account.",
	},
)

// ── Client metrics ────────────────────────────────────────────────────────────

// ActiveClients tracks the number of browser clients with a live reconciler.
var ActiveClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_clients",
		Help:      "Current number of browser clients with a running reconciler.",
	},
)

// SessionEventsQueueDepth tracks events waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var SessionEventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_events_queue_depth",
		Help:      "Current number of session events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
