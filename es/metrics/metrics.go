// Package metrics provides Prometheus instrumentation for the event store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for journal, projection and DLQ activity.
// All components accept a nil *Metrics, in which case nothing is recorded.
//
// Labels stay low-cardinality on purpose: projection names, not stream IDs.
type Metrics struct {
	// EventsAppended counts events committed to the journal.
	EventsAppended prometheus.Counter

	// VersionConflicts counts appends rejected by the optimistic version check.
	VersionConflicts prometheus.Counter

	// SnapshotsTaken counts snapshots written by rehydration.
	SnapshotsTaken prometheus.Counter

	// EventsApplied counts events applied per projection.
	EventsApplied *prometheus.CounterVec

	// EventsDeferred counts events routed to a quarantined stream's tail
	// instead of being applied, per projection.
	EventsDeferred *prometheus.CounterVec

	// QuarantinedStreams tracks the number of quarantined streams per projection.
	QuarantinedStreams *prometheus.GaugeVec

	// RedrivenEvents counts redrive outcomes per projection and result
	// (applied, failed).
	RedrivenEvents *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "seqsourcing_events_appended_total",
			Help: "Events committed to the journal.",
		}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "seqsourcing_version_conflicts_total",
			Help: "Appends rejected by the optimistic version check.",
		}),
		SnapshotsTaken: factory.NewCounter(prometheus.CounterOpts{
			Name: "seqsourcing_snapshots_taken_total",
			Help: "Snapshots written after rehydration.",
		}),
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seqsourcing_projection_events_applied_total",
			Help: "Events applied to read models, per projection.",
		}, []string{"projection"}),
		EventsDeferred: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seqsourcing_projection_events_deferred_total",
			Help: "Events deferred to a quarantined stream tail, per projection.",
		}, []string{"projection"}),
		QuarantinedStreams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "seqsourcing_dlq_quarantined_streams",
			Help: "Streams currently quarantined, per projection.",
		}, []string{"projection"}),
		RedrivenEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seqsourcing_dlq_redriven_events_total",
			Help: "Redrive outcomes, per projection and result.",
		}, []string{"projection", "result"}),
	}
}
