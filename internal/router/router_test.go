package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"dialer_sync_backend/internal/audit"
	"dialer_sync_backend/internal/events"
	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeEventStore struct {
	events map[uuid.UUID]*intake.WebhookEvent
}

func (s *fakeEventStore) GetByID(_ context.Context, id uuid.UUID) (intake.WebhookEvent, error) {
	ev, ok := s.events[id]
	if !ok {
		return intake.WebhookEvent{}, errors.New("not found")
	}
	return *ev, nil
}

func (s *fakeEventStore) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	ev := s.events[id]
	if ev.Status != intake.StatusPending && ev.Status != intake.StatusError {
		return false, nil
	}
	ev.Status = intake.StatusProcessing
	return true, nil
}

func (s *fakeEventStore) MarkDone(_ context.Context, id uuid.UUID) error {
	s.events[id].Status = intake.StatusDone
	return nil
}

func (s *fakeEventStore) MarkError(_ context.Context, id uuid.UUID, message string) error {
	ev := s.events[id]
	ev.Status = intake.StatusError
	ev.ErrorMessage = &message
	return nil
}

type fakeAuditStore struct {
	entries     []audit.Entry
	quarantined map[uuid.UUID]bool
}

func (s *fakeAuditStore) Append(_ context.Context, entry audit.Entry) (uuid.UUID, error) {
	s.entries = append(s.entries, entry)
	return uuid.New(), nil
}

func (s *fakeAuditStore) IsQuarantined(_ context.Context, id uuid.UUID) (bool, error) {
	return s.quarantined[id], nil
}

type fakeHandlers struct {
	contactCalls int
	callCalls    int
	failWith     error
}

func (h *fakeHandlers) SyncContact(context.Context, intake.ContactEvent, string, uuid.UUID) error {
	h.contactCalls++
	return h.failWith
}

func (h *fakeHandlers) SyncAppointment(context.Context, intake.AppointmentEvent, uuid.UUID) error {
	return h.failWith
}

func (h *fakeHandlers) SyncCall(context.Context, intake.CallEvent, uuid.UUID) error {
	h.callCalls++
	return h.failWith
}

func (h *fakeHandlers) SyncMessage(context.Context, intake.MessageEvent, uuid.UUID) error {
	return h.failWith
}

type fakeEnqueuer struct {
	enqueued []string
}

func (e *fakeEnqueuer) EnqueueRecompute(_ context.Context, ev intake.BroadcastEvent, _ uuid.UUID) error {
	e.enqueued = append(e.enqueued, ev.BroadcastID)
	return nil
}

type fixture struct {
	router   *Router
	store    *fakeEventStore
	audits   *fakeAuditStore
	handlers *fakeHandlers
	enqueuer *fakeEnqueuer
}

func newFixture() *fixture {
	log := logger.New("test")
	store := &fakeEventStore{events: make(map[uuid.UUID]*intake.WebhookEvent)}
	audits := &fakeAuditStore{quarantined: make(map[uuid.UUID]bool)}
	handlers := &fakeHandlers{}
	enqueuer := &fakeEnqueuer{}

	r := NewRouter(
		store,
		audits,
		NewOriginDetector("synced-by-bridge"),
		NewPolicyTable(),
		handlers,
		handlers,
		handlers,
		enqueuer,
		events.NewInMemoryBus(log),
		log,
	)
	return &fixture{router: r, store: store, audits: audits, handlers: handlers, enqueuer: enqueuer}
}

func (f *fixture) addEvent(source, eventType, entityType, entityID string, payload string) uuid.UUID {
	id := uuid.New()
	f.store.events[id] = &intake.WebhookEvent{
		ID:         id,
		Source:     source,
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		RawPayload: json.RawMessage(payload),
		Status:     intake.StatusPending,
	}
	return id
}

func (f *fixture) lastEntry(t *testing.T) audit.Entry {
	t.Helper()
	if len(f.audits.entries) == 0 {
		t.Fatal("expected at least one audit entry")
	}
	return f.audits.entries[len(f.audits.entries)-1]
}

func TestProcessDispatchesAuthoritativeContactEvent(t *testing.T) {
	f := newFixture()
	id := f.addEvent(intake.SourceCRM, "ContactUpdate", intake.EntityContact, "c-1", `{"id":"c-1","tags":[]}`)

	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.handlers.contactCalls != 1 {
		t.Fatalf("expected one contact dispatch, got %d", f.handlers.contactCalls)
	}
	if f.store.events[id].Status != intake.StatusDone {
		t.Fatalf("expected done, got %s", f.store.events[id].Status)
	}
	entry := f.lastEntry(t)
	if entry.Status != audit.StatusSuccess || entry.CorrelationID != id {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestProcessSkipsSelfOriginatedEvent(t *testing.T) {
	f := newFixture()
	id := f.addEvent(intake.SourceCRM, "ContactUpdate", intake.EntityContact, "c-1",
		`{"id":"c-1","tags":["synced-by-bridge"]}`)

	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.handlers.contactCalls != 0 {
		t.Fatal("expected no dispatch for self-originated event")
	}
	entry := f.lastEntry(t)
	if entry.Status != audit.StatusSkipped {
		t.Fatalf("expected skipped, got %s", entry.Status)
	}
	if entry.Message == nil || *entry.Message != "self-originated" {
		t.Fatalf("unexpected skip reason: %v", entry.Message)
	}
	for _, e := range f.audits.entries {
		if e.Status == audit.StatusSuccess {
			t.Fatal("self-originated event must never produce a success entry")
		}
	}
}

func TestProcessSkipsNonAuthoritativeSource(t *testing.T) {
	f := newFixture()
	// Contact events are CRM-owned; a dialer contact update must never write back.
	id := f.addEvent(intake.SourceDialer, "contact.updated", intake.EntityContact, "42",
		`{"contact_id":"42","tag_list":[]}`)

	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.handlers.contactCalls != 0 {
		t.Fatal("expected no dispatch for non-authoritative source")
	}
	entry := f.lastEntry(t)
	if entry.Status != audit.StatusSkipped {
		t.Fatalf("expected skipped, got %s", entry.Status)
	}
}

func TestProcessUnknownEntityTypeNeverFails(t *testing.T) {
	f := newFixture()
	id := f.addEvent(intake.SourceCRM, "whatever", "foo", "x-1", `{}`)

	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("unknown entity type must not error: %v", err)
	}
	if f.store.events[id].Status != intake.StatusDone {
		t.Fatalf("expected done, got %s", f.store.events[id].Status)
	}
	entry := f.lastEntry(t)
	if entry.Status != audit.StatusSkipped {
		t.Fatalf("expected skipped, got %s", entry.Status)
	}
	if entry.Message == nil || *entry.Message != ReasonUnhandled {
		t.Fatalf("expected %q reason, got %v", ReasonUnhandled, entry.Message)
	}
}

func TestProcessQuarantinedEventIsSkipped(t *testing.T) {
	f := newFixture()
	id := f.addEvent(intake.SourceCRM, "ContactUpdate", intake.EntityContact, "c-1", `{"id":"c-1"}`)
	f.audits.quarantined[id] = true

	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.handlers.contactCalls != 0 {
		t.Fatal("quarantined event must not be dispatched")
	}
	entry := f.lastEntry(t)
	if entry.Status != audit.StatusSkipped || entry.Message == nil || *entry.Message != "quarantined" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestProcessHandlerFailureMarksError(t *testing.T) {
	f := newFixture()
	f.handlers.failWith = errors.New("crm 503")
	id := f.addEvent(intake.SourceDialer, "call.completed", intake.EntityCall, "call-1",
		`{"call_id":"call-1","contact_id":"42"}`)

	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("handler failures are recorded, not returned: %v", err)
	}
	if f.store.events[id].Status != intake.StatusError {
		t.Fatalf("expected error status, got %s", f.store.events[id].Status)
	}
	entry := f.lastEntry(t)
	if entry.Status != audit.StatusError {
		t.Fatalf("expected error entry, got %s", entry.Status)
	}

	// Manual retry: error events can be reclaimed and re-driven.
	f.handlers.failWith = nil
	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.store.events[id].Status != intake.StatusDone {
		t.Fatalf("expected done after retry, got %s", f.store.events[id].Status)
	}
}

func TestProcessBroadcastEnqueuesRecompute(t *testing.T) {
	f := newFixture()
	id := f.addEvent(intake.SourceDialer, "broadcast.delivered", intake.EntityBroadcast, "b-1",
		`{"broadcast_id":"b-1","event_id":"evt-1","event_type":"delivered"}`)

	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.enqueuer.enqueued) != 1 || f.enqueuer.enqueued[0] != "b-1" {
		t.Fatalf("expected one recompute enqueue for b-1, got %v", f.enqueuer.enqueued)
	}
	entry := f.lastEntry(t)
	if entry.Direction != audit.DirectionInternal {
		t.Fatalf("expected internal direction, got %s", entry.Direction)
	}
}

func TestProcessAlreadyClaimedEventIsNoOp(t *testing.T) {
	f := newFixture()
	id := f.addEvent(intake.SourceCRM, "ContactUpdate", intake.EntityContact, "c-1", `{"id":"c-1"}`)
	f.store.events[id].Status = intake.StatusDone

	if err := f.router.Process(context.Background(), id); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.handlers.contactCalls != 0 || len(f.audits.entries) != 0 {
		t.Fatal("expected no work for an already terminal event")
	}
}
