package intake

import (
	"context"

	"dialer_sync_backend/platform/logger"
	"dialer_sync_backend/platform/metrics"

	"github.com/google/uuid"
)

// EventStore is the persistence surface Admit needs. Satisfied by *Repository.
type EventStore interface {
	Insert(ctx context.Context, env Envelope, dedupeKey string) (AdmitResult, error)
}

// Processor routes an admitted event. Satisfied by router.Router.
type Processor interface {
	Process(ctx context.Context, eventID uuid.UUID) error
}

// Service handles webhook admission.
type Service struct {
	store     EventStore
	processor Processor
	log       *logger.Logger
}

// NewService creates a new intake service.
func NewService(store EventStore, processor Processor, log *logger.Logger) *Service {
	return &Service{store: store, processor: processor, log: log}
}

// Admit computes the dedupe key and attempts admission. A duplicate delivery
// returns admitted=false with no further side effects. Newly admitted events
// are handed to the router; routing failures are recorded by the router
// itself and never bubble back to the webhook response, so providers do not
// re-deliver what we have already admitted.
func (s *Service) Admit(ctx context.Context, env Envelope) (AdmitResult, error) {
	key := DedupeKey(env)

	result, err := s.store.Insert(ctx, env, key)
	if err != nil {
		s.log.DatabaseError("intake admit", err)
		return AdmitResult{}, err
	}

	decision := "admitted"
	if !result.Admitted {
		decision = "duplicate"
	}
	metrics.WebhookAdmissionsTotal.WithLabelValues(env.Source, decision).Inc()
	s.log.WebhookAdmitted(env.Source, env.EventType, env.EntityID, result.Admitted)

	if result.Admitted && s.processor != nil {
		if err := s.processor.Process(ctx, result.EventID); err != nil {
			// Terminal outcome already recorded on the event and sync log.
			s.log.Error("event processing failed", "eventId", result.EventID, "error", err)
		}
	}

	return result, nil
}
