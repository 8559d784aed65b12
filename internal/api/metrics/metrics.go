// Package metrics defines and registers the custom Prometheus metrics of the
// inventory state layer. It is the single source of truth for metric names,
// labels and help strings.
//
// Metrics are registered with the default registry on package init through
// promauto; /metrics serves them alongside the echoprometheus HTTP metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inventaris/inventory-state/internal/core/ports"
)

const namespace = "inventaris"

// ── Mutation metrics ──────────────────────────────────────────────────────────

// MutationsTotal counts settled optimistic mutations.
// Labels:
//   - entity: "room" or "asset"
//   - op: "create", "update" or "delete"
//   - outcome: "confirmed" or "reverted"
var MutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Total number of optimistic mutations settled, by outcome.",
	},
	[]string{"entity", "op", "outcome"},
)

// MutationDuration measures the time from local apply to settlement.
var MutationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mutation_settle_duration_seconds",
		Help:      "Duration between the optimistic apply and the server confirmation or revert.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"entity", "op"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionEventsTotal counts session change notifications.
// Label:
//   - kind: "SIGNED_IN", "SIGNED_OUT", "TOKEN_REFRESHED" or "USER_UPDATED"
var SessionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Total number of session change events observed.",
	},
	[]string{"kind"},
)

// ── Refresh metrics ───────────────────────────────────────────────────────────

// RefreshRunsTotal counts scheduled refresh runs.
// Label:
//   - result: "ok" or "error"
var RefreshRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_runs_total",
		Help:      "Total number of scheduled collection refreshes, by result.",
	},
	[]string{"result"},
)

// Recorder feeds store activity into the metrics above.
type Recorder struct{}

var _ ports.MutationObserver = Recorder{}

func (Recorder) ObserveMutation(entity, op, outcome string, d time.Duration) {
	MutationsTotal.WithLabelValues(entity, op, outcome).Inc()
	MutationDuration.WithLabelValues(entity, op).Observe(d.Seconds())
}

// ObserveSessionEvent is an ports.AuthBackend.OnSessionChange subscriber.
func (Recorder) ObserveSessionEvent(ev ports.SessionEvent) {
	SessionEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
}

// ObserveRefresh records one scheduled refresh.
func (Recorder) ObserveRefresh(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RefreshRunsTotal.WithLabelValues(result).Inc()
}
