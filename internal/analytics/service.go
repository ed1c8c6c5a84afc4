package analytics

import (
	"context"
	"fmt"
	"time"

	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/internal/events"
	"dialer_sync_backend/platform/apperr"
	"dialer_sync_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// Store is the aggregate-query surface the service needs.
type Store interface {
	RecipientCounts(ctx context.Context, broadcastID string) (sent, delivered, failed int, err error)
	ResponseCount(ctx context.Context, broadcastID string, window time.Duration) (int, error)
	AppointmentCount(ctx context.Context, broadcastID string, window time.Duration) (int, error)
}

// Reporter is the slice of the CRM client the push path consumes.
type Reporter interface {
	FindReportingRecordByCampaign(ctx context.Context, campaignID string) (clients.ReportingRecord, error)
	CreateReportingRecord(ctx context.Context, rec clients.ReportingRecord) (string, error)
	UpdateReportingRecord(ctx context.Context, id string, rec clients.ReportingRecord) error
}

// Service recomputes campaign snapshots and upserts them into the CRM.
type Service struct {
	store    Store
	reporter Reporter
	bus      events.Bus
	log      *logger.Logger
	window   time.Duration
}

// NewService creates an analytics service. window is the response
// attribution window after a send.
func NewService(store Store, reporter Reporter, bus events.Bus, log *logger.Logger, window time.Duration) *Service {
	return &Service{store: store, reporter: reporter, bus: bus, log: log, window: window}
}

// Recompute derives the full funnel snapshot for one broadcast. The three
// aggregate queries are independent and run concurrently.
func (s *Service) Recompute(ctx context.Context, broadcastID string) (Snapshot, error) {
	var (
		sent, delivered, failed int
		responses, appointments int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sent, delivered, failed, err = s.store.RecipientCounts(gctx, broadcastID)
		if err != nil {
			return fmt.Errorf("recipient counts for %s: %w", broadcastID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		responses, err = s.store.ResponseCount(gctx, broadcastID, s.window)
		if err != nil {
			return fmt.Errorf("response count for %s: %w", broadcastID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		appointments, err = s.store.AppointmentCount(gctx, broadcastID, s.window)
		if err != nil {
			return fmt.Errorf("appointment count for %s: %w", broadcastID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		BroadcastID:            broadcastID,
		Sent:                   sent,
		Delivered:              delivered,
		Failed:                 failed,
		Responses:              responses,
		Appointments:           appointments,
		DeliveryRate:           Rate(delivered, sent),
		ResponseRate:           Rate(responses, delivered),
		ConversionRate:         Rate(appointments, responses),
		BookingRateOfDelivered: Rate(appointments, delivered),
	}, nil
}

// Push upserts a snapshot into the CRM: update the existing reporting
// record, create one if none exists, and if creation loses a race to a
// concurrent creator, update the record the race produced.
func (s *Service) Push(ctx context.Context, snapshot Snapshot) error {
	rec := reportingRecord(snapshot)

	existing, err := s.reporter.FindReportingRecordByCampaign(ctx, snapshot.BroadcastID)
	switch {
	case err == nil:
		if err := s.reporter.UpdateReportingRecord(ctx, existing.ID, rec); err != nil {
			return fmt.Errorf("update reporting record: %w", err)
		}
		s.published(ctx, snapshot, existing.ID, false)
		return nil
	case apperr.GetKind(err) != apperr.KindNotFound:
		return fmt.Errorf("find reporting record: %w", err)
	}

	id, err := s.reporter.CreateReportingRecord(ctx, rec)
	if err == nil {
		s.published(ctx, snapshot, id, true)
		return nil
	}
	if apperr.GetKind(err) != apperr.KindConflict {
		return fmt.Errorf("create reporting record: %w", err)
	}

	// Lost the creation race. The winner's record must exist now.
	winner, err := s.reporter.FindReportingRecordByCampaign(ctx, snapshot.BroadcastID)
	if err != nil {
		return fmt.Errorf("find reporting record after create race: %w", err)
	}
	if err := s.reporter.UpdateReportingRecord(ctx, winner.ID, rec); err != nil {
		return fmt.Errorf("update reporting record after create race: %w", err)
	}
	s.published(ctx, snapshot, winner.ID, false)
	return nil
}

// RecomputeAndPush is the job handler entrypoint.
func (s *Service) RecomputeAndPush(ctx context.Context, broadcastID string) error {
	snapshot, err := s.Recompute(ctx, broadcastID)
	if err != nil {
		return err
	}
	return s.Push(ctx, snapshot)
}

func (s *Service) published(ctx context.Context, snapshot Snapshot, recordID string, created bool) {
	s.log.WithContext(ctx).Info("analytics snapshot pushed",
		"broadcast_id", snapshot.BroadcastID,
		"record_id", recordID,
		"created", created,
		"delivery_rate", snapshot.DeliveryRate,
	)
	s.bus.Publish(ctx, events.AnalyticsPushed{
		BaseEvent:         events.NewBaseEvent(),
		BroadcastID:       snapshot.BroadcastID,
		CRMReportRecordID: recordID,
		Created:           created,
	})
}

func reportingRecord(s Snapshot) clients.ReportingRecord {
	return clients.ReportingRecord{
		CampaignID: s.BroadcastID,
		Fields: map[string]any{
			"sent":                   s.Sent,
			"delivered":              s.Delivered,
			"failed":                 s.Failed,
			"responses":              s.Responses,
			"appointments":           s.Appointments,
			"deliveryRate":           s.DeliveryRate,
			"responseRate":           s.ResponseRate,
			"conversionRate":         s.ConversionRate,
			"bookingRateOfDelivered": s.BookingRateOfDelivered,
		},
	}
}
