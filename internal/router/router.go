package router

import (
	"context"
	"fmt"
	"time"

	"dialer_sync_backend/internal/audit"
	"dialer_sync_backend/internal/events"
	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/logger"
	"dialer_sync_backend/platform/metrics"

	"github.com/google/uuid"
)

// EventStore is the webhook event persistence surface the router needs.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (intake.WebhookEvent, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
}

// AuditStore records sync attempts and answers quarantine lookups.
type AuditStore interface {
	Append(ctx context.Context, entry audit.Entry) (uuid.UUID, error)
	IsQuarantined(ctx context.Context, eventID uuid.UUID) (bool, error)
}

// ContactSyncer handles CRM contact events.
type ContactSyncer interface {
	SyncContact(ctx context.Context, ev intake.ContactEvent, eventType string, correlationID uuid.UUID) error
}

// AppointmentSyncer handles CRM appointment events.
type AppointmentSyncer interface {
	SyncAppointment(ctx context.Context, ev intake.AppointmentEvent, correlationID uuid.UUID) error
}

// ActivitySyncer handles dialer call and message events.
type ActivitySyncer interface {
	SyncCall(ctx context.Context, ev intake.CallEvent, correlationID uuid.UUID) error
	SyncMessage(ctx context.Context, ev intake.MessageEvent, correlationID uuid.UUID) error
}

// BroadcastEnqueuer defers analytics recompute to the job queue. The
// router never recomputes inline; aggregate queries must not block intake.
type BroadcastEnqueuer interface {
	EnqueueRecompute(ctx context.Context, ev intake.BroadcastEvent, correlationID uuid.UUID) error
}

// Router drives an admitted event through pending -> processing -> done/error.
type Router struct {
	store        EventStore
	audits       AuditStore
	origin       *OriginDetector
	policy       *PolicyTable
	contacts     ContactSyncer
	appointments AppointmentSyncer
	activities   ActivitySyncer
	broadcasts   BroadcastEnqueuer
	bus          events.Bus
	log          *logger.Logger
}

// NewRouter wires the state machine.
func NewRouter(
	store EventStore,
	audits AuditStore,
	origin *OriginDetector,
	policy *PolicyTable,
	contacts ContactSyncer,
	appointments AppointmentSyncer,
	activities ActivitySyncer,
	broadcasts BroadcastEnqueuer,
	bus events.Bus,
	log *logger.Logger,
) *Router {
	return &Router{
		store:        store,
		audits:       audits,
		origin:       origin,
		policy:       policy,
		contacts:     contacts,
		appointments: appointments,
		activities:   activities,
		broadcasts:   broadcasts,
		bus:          bus,
		log:          log,
	}
}

// Process routes one admitted event to its terminal state. Handler
// failures are recorded, not returned: the event lands in error and stays
// available for manual retry. Only infrastructure failures (store
// unreachable) propagate to the caller.
func (r *Router) Process(ctx context.Context, eventID uuid.UUID) error {
	started := time.Now()

	event, err := r.store.GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", eventID, err)
	}

	quarantined, err := r.audits.IsQuarantined(ctx, eventID)
	if err != nil {
		return fmt.Errorf("quarantine check: %w", err)
	}
	if quarantined {
		return r.finishSkip(ctx, event, started, "quarantined")
	}

	claimed, err := r.store.MarkProcessing(ctx, eventID)
	if err != nil {
		return fmt.Errorf("claim event %s: %w", eventID, err)
	}
	if !claimed {
		return nil
	}

	parsed, parseErr := intake.Parse(intake.Envelope{
		Source:     event.Source,
		EventType:  event.EventType,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Payload:    event.RawPayload,
	})
	if parseErr != nil {
		return r.finishSkip(ctx, event, started, ReasonUnhandled)
	}

	if r.origin.IsSelfOriginated(parsed) {
		return r.finishSkip(ctx, event, started, "self-originated")
	}

	verdict := r.policy.Evaluate(event.Source, event.EntityType, parsed)
	if !verdict.Dispatch {
		return r.finishSkip(ctx, event, started, verdict.Reason)
	}

	if err := r.dispatch(ctx, event, parsed); err != nil {
		return r.finishError(ctx, event, started, err)
	}
	return r.finishSuccess(ctx, event, started)
}

func (r *Router) dispatch(ctx context.Context, event intake.WebhookEvent, parsed intake.ParsedEvent) error {
	switch ev := parsed.(type) {
	case intake.ContactEvent:
		return r.contacts.SyncContact(ctx, ev, event.EventType, event.ID)
	case intake.AppointmentEvent:
		return r.appointments.SyncAppointment(ctx, ev, event.ID)
	case intake.CallEvent:
		return r.activities.SyncCall(ctx, ev, event.ID)
	case intake.MessageEvent:
		return r.activities.SyncMessage(ctx, ev, event.ID)
	case intake.BroadcastEvent:
		return r.broadcasts.EnqueueRecompute(ctx, ev, event.ID)
	default:
		// Parse produced a variant the router does not dispatch. Treat it
		// like an unregistered policy, not a failure.
		return nil
	}
}

func (r *Router) finishSuccess(ctx context.Context, event intake.WebhookEvent, started time.Time) error {
	if err := r.store.MarkDone(ctx, event.ID); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	entry := audit.NewSuccess(directionFor(event), event.EntityType, event.EntityID, event.EntityID, nil, started, event.ID)
	return r.record(ctx, event, entry, started, "")
}

func (r *Router) finishSkip(ctx context.Context, event intake.WebhookEvent, started time.Time, reason string) error {
	if err := r.store.MarkDone(ctx, event.ID); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	entry := audit.NewSkip(directionFor(event), event.EntityType, event.EntityID, started, event.ID, reason)
	return r.record(ctx, event, entry, started, reason)
}

func (r *Router) finishError(ctx context.Context, event intake.WebhookEvent, started time.Time, cause error) error {
	if err := r.store.MarkError(ctx, event.ID, cause.Error()); err != nil {
		return fmt.Errorf("mark error: %w", err)
	}
	entry := audit.NewFailure(directionFor(event), event.EntityType, event.EntityID, started, event.ID, cause)
	return r.record(ctx, event, entry, started, cause.Error())
}

func (r *Router) record(ctx context.Context, event intake.WebhookEvent, entry audit.Entry, started time.Time, reason string) error {
	if _, err := r.audits.Append(ctx, entry); err != nil {
		return fmt.Errorf("append sync log: %w", err)
	}

	elapsed := time.Since(started)
	metrics.ObserveSync(entry.Direction, event.EntityType, entry.Status, elapsed)
	r.log.WithContext(ctx).SyncOutcome(entry.Direction, event.EntityType, event.EntityID, entry.Status, reason)
	r.bus.Publish(ctx, events.EventRouted{
		BaseEvent:  events.NewBaseEvent(),
		EventID:    event.ID,
		Direction:  entry.Direction,
		EntityType: event.EntityType,
		Status:     entry.Status,
		Reason:     reason,
		ElapsedMS:  float64(elapsed.Milliseconds()),
	})
	return nil
}

// directionFor names the sync direction an event drives. Broadcast events
// only enqueue internal work; everything else flows toward the opposite
// system.
func directionFor(event intake.WebhookEvent) string {
	if event.EntityType == intake.EntityBroadcast {
		return audit.DirectionInternal
	}
	if event.Source == intake.SourceCRM {
		return audit.DirectionCRMToDialer
	}
	return audit.DirectionDialerToCRM
}
