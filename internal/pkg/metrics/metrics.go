// Package metrics defines and registers the custom Prometheus metrics of the
// admissions API and the console gateway. It is the single source of truth
// for metric names, labels, and help strings.
//
// Metrics register with the default registry on package init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "admissions"

// ── API metrics ───────────────────────────────────────────────────────────────

// LoginsTotal counts credential checks performed by the API.
// Label:
//   - result: "success", "invalid" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// AuditEventsTotal counts audit events by outcome.
// Labels:
//   - kind: the audited event kind (e.g. "login_succeeded")
//   - outcome: "stored", "failed" or "dropped" (queue full)
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of authentication audit events, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// ── Console metrics ───────────────────────────────────────────────────────────

// GuardDecisionsTotal counts route guard outcomes.
// Labels:
//   - state: "allowed", "redirect_login" or "redirect_unauthorized"
//   - hard: "true" when the redirect forces a full page reload
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "console",
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by resulting state.",
	},
	[]string{"state", "hard"},
)

// RevalidationsTotal counts background token re-validations.
// Label:
//   - result: "ok", "rejected", "unavailable" or "discarded" (guard closed)
var RevalidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "console",
		Name:      "revalidations_total",
		Help:      "Total number of background session re-validations, by result.",
	},
	[]string{"result"},
)

// RevalidationDuration measures the round trip of a re-validation call.
var RevalidationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "console",
		Name:      "revalidation_duration_seconds",
		Help:      "Duration of background session re-validation calls.",
		Buckets:   prometheus.DefBuckets,
	},
)
