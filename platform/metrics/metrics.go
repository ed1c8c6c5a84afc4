// Package metrics exposes Prometheus instrumentation for the sync engine.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SyncOperationsTotal counts every router dispatch by direction, entity
	// type and terminal outcome (done, error, skipped).
	SyncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_operations_total",
			Help: "Total number of sync operations by direction, entity type and status",
		},
		[]string{"direction", "entity_type", "status"},
	)

	// SyncOperationDuration observes end-to-end router dispatch latency.
	SyncOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_operation_duration_seconds",
			Help:    "Duration of sync operations by direction and entity type",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"direction", "entity_type"},
	)

	// WebhookAdmissionsTotal counts intake admissions by source and decision.
	WebhookAdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_admissions_total",
			Help: "Total number of webhook admission decisions by source and decision",
		},
		[]string{"source", "decision"},
	)

	// JobRetriesTotal counts job queue retry deliveries by task type.
	JobRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_retries_total",
			Help: "Total number of job retry deliveries by task type",
		},
		[]string{"task_type"},
	)

	// ListReconcileOpsTotal counts remote call-list mutations by operation.
	ListReconcileOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "list_reconcile_operations_total",
			Help: "Total number of call-list add/remove operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ReassignmentsTotal counts detected agent reassignments.
	ReassignmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_reassignments_total",
			Help: "Total number of detected agent reassignments",
		},
	)

	// OptOutsTotal counts opt-out registry changes by status.
	OptOutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optout_changes_total",
			Help: "Total number of opt-out registry changes by status",
		},
		[]string{"status"},
	)
)

// Register registers all collectors on the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SyncOperationsTotal,
		SyncOperationDuration,
		WebhookAdmissionsTotal,
		JobRetriesTotal,
		ListReconcileOpsTotal,
		ReassignmentsTotal,
		OptOutsTotal,
	)
}

// ObserveSync records one router dispatch outcome with its duration.
func ObserveSync(direction, entityType, status string, elapsed time.Duration) {
	SyncOperationsTotal.WithLabelValues(direction, entityType, status).Inc()
	SyncOperationDuration.WithLabelValues(direction, entityType).Observe(elapsed.Seconds())
}
