package compliance

import (
	"context"

	"dialer_sync_backend/internal/events"
	"dialer_sync_backend/platform/logger"
	"dialer_sync_backend/platform/phone"
)

// Registry is the persistence surface the service needs.
type Registry interface {
	Record(ctx context.Context, phoneNumber, status, source string, reason *string) error
	IsOptedOut(ctx context.Context, phoneNumber string) (bool, error)
	Get(ctx context.Context, phoneNumber string) (OptoutRecord, bool, error)
}

// Service records opt-out transitions and answers compliance checks.
type Service struct {
	registry Registry
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates a new compliance service.
func NewService(registry Registry, bus events.Bus, log *logger.Logger) *Service {
	return &Service{registry: registry, bus: bus, log: log}
}

// RecordOptOut marks a phone number as opted out.
func (s *Service) RecordOptOut(ctx context.Context, phoneNumber, source string, reason *string) error {
	return s.record(ctx, phoneNumber, StatusOptedOut, source, reason)
}

// RecordOptIn marks a phone number as opted back in. A number the registry
// has never seen is already dialable, so no row is written for it.
func (s *Service) RecordOptIn(ctx context.Context, phoneNumber, source string, reason *string) error {
	_, found, err := s.registry.Get(ctx, phoneNumber)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return s.record(ctx, phoneNumber, StatusOptedIn, source, reason)
}

func (s *Service) record(ctx context.Context, phoneNumber, status, source string, reason *string) error {
	if err := s.registry.Record(ctx, phoneNumber, status, source, reason); err != nil {
		return err
	}
	normalized := phone.NormalizeE164(phoneNumber)
	s.log.WithContext(ctx).Info("compliance status recorded",
		"phone_number", normalized,
		"status", status,
		"source", source,
	)
	s.bus.Publish(ctx, events.OptOutRecorded{
		BaseEvent:   events.NewBaseEvent(),
		PhoneNumber: normalized,
		Status:      status,
		Source:      source,
	})
	return nil
}

// IsOptedOut reports whether a phone number is currently opted out.
func (s *Service) IsOptedOut(ctx context.Context, phoneNumber string) (bool, error) {
	return s.registry.IsOptedOut(ctx, phoneNumber)
}
