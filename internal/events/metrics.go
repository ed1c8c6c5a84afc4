package events

import (
	"context"

	"dialer_sync_backend/platform/metrics"
)

// RegisterMetricsSink subscribes the Prometheus counters that are fed by
// domain events rather than emitted inline.
func RegisterMetricsSink(bus Bus) {
	bus.Subscribe(ReassignmentDetectedName, HandlerFunc(func(ctx context.Context, e Event) error {
		metrics.ReassignmentsTotal.Inc()
		return nil
	}))
	bus.Subscribe(OptOutRecordedName, HandlerFunc(func(ctx context.Context, e Event) error {
		if ev, ok := e.(OptOutRecorded); ok {
			metrics.OptOutsTotal.WithLabelValues(ev.Status).Inc()
		}
		return nil
	}))
}
