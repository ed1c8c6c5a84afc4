package contacts

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"dialer_sync_backend/internal/agents"
	"dialer_sync_backend/internal/calllists"
	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/internal/events"
	"dialer_sync_backend/internal/identity"
	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/apperr"
	"dialer_sync_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeMappings struct {
	rows map[string]identity.Mapping
}

func (f *fakeMappings) Upsert(_ context.Context, m identity.Mapping) error {
	f.rows[m.CRMContactID] = m
	return nil
}

func (f *fakeMappings) GetByCRMID(_ context.Context, crmContactID string) (identity.Mapping, error) {
	m, ok := f.rows[crmContactID]
	if !ok {
		return identity.Mapping{}, apperr.NotFound("contact mapping not found")
	}
	return m, nil
}

func (f *fakeMappings) GetByPhone(_ context.Context, phoneNumber string) (identity.Mapping, error) {
	for _, m := range f.rows {
		if m.PhoneNumber != nil && *m.PhoneNumber == phoneNumber {
			return m, nil
		}
	}
	return identity.Mapping{}, apperr.NotFound("contact mapping not found")
}

type fakeCompliance struct {
	optedOut map[string]bool
}

func (f *fakeCompliance) IsOptedOut(_ context.Context, phoneNumber string) (bool, error) {
	return f.optedOut[phoneNumber], nil
}

type fakeAgentStates struct {
	rows map[string]agents.State
}

func (f *fakeAgentStates) Get(_ context.Context, contactID string) (agents.State, error) {
	s, ok := f.rows[contactID]
	if !ok {
		return agents.State{}, apperr.NotFound("agent state not found")
	}
	return s, nil
}

func (f *fakeAgentStates) Upsert(_ context.Context, contactID, agentKey string, lastListStatus *string) error {
	f.rows[contactID] = agents.State{ContactID: contactID, AgentKey: agentKey, LastListStatus: lastListStatus}
	return nil
}

type fakeListRegistry struct {
	rows map[string]*calllists.RegistryRow
}

func (f *fakeListRegistry) GetOrCreate(_ context.Context, agentKey, listKey, listName string) (calllists.RegistryRow, error) {
	key := agentKey + "/" + listKey
	if row, ok := f.rows[key]; ok {
		return *row, nil
	}
	row := &calllists.RegistryRow{AgentKey: agentKey, ListKey: listKey, DialerListName: listName}
	f.rows[key] = row
	return *row, nil
}

func (f *fakeListRegistry) SetDialerListID(_ context.Context, agentKey, listKey, dialerListID string) (string, error) {
	row := f.rows[agentKey+"/"+listKey]
	if row.DialerListID == nil {
		row.DialerListID = &dialerListID
	}
	return *row.DialerListID, nil
}

type fakeMemberships struct {
	rows map[string]calllists.Membership
}

func (f *fakeMemberships) Upsert(_ context.Context, contactID, agentKey, listKey, status string, reason *string) error {
	f.rows[contactID+"/"+agentKey+"/"+listKey] = calllists.Membership{
		ContactID: contactID, AgentKey: agentKey, ListKey: listKey, Status: status, Reason: reason,
	}
	return nil
}

func (f *fakeMemberships) ActiveListKeys(_ context.Context, contactID, agentKey string) ([]string, error) {
	var keys []string
	for _, row := range f.rows {
		if row.ContactID == contactID && row.AgentKey == agentKey && row.Status == calllists.MembershipActive {
			keys = append(keys, row.ListKey)
		}
	}
	return keys, nil
}

func (f *fakeMemberships) ActiveMemberships(_ context.Context, contactID string) ([]calllists.Membership, error) {
	var out []calllists.Membership
	for _, row := range f.rows {
		if row.ContactID == contactID && row.Status == calllists.MembershipActive {
			out = append(out, row)
		}
	}
	return out, nil
}

// fakeDialer records list operations; the embedded interface covers the
// methods the tests never reach.
type fakeDialer struct {
	clients.DialerClient
	nextID int
	ops    []string
}

func (d *fakeDialer) CreateCallList(_ context.Context, spec clients.CallListSpec) (clients.CallList, error) {
	d.nextID++
	id := fmt.Sprintf("list-%d", d.nextID)
	d.ops = append(d.ops, "create "+spec.Name)
	return clients.CallList{ID: id, Name: spec.Name}, nil
}

func (d *fakeDialer) AddContactToList(_ context.Context, listID, contactID string) error {
	d.ops = append(d.ops, fmt.Sprintf("add %s to %s", contactID, listID))
	return nil
}

func (d *fakeDialer) RemoveContactFromList(_ context.Context, listID, contactID string) error {
	d.ops = append(d.ops, fmt.Sprintf("remove %s from %s", contactID, listID))
	return nil
}

type appointmentHarness struct {
	handler     *Handler
	mappings    *fakeMappings
	compliance  *fakeCompliance
	memberships *fakeMemberships
	dialer      *fakeDialer
}

func newAppointmentHarness(t *testing.T) *appointmentHarness {
	t.Helper()
	dir, err := agents.NewDirectory([]agents.DirectoryEntry{
		{AgentKey: "AGENT_A", OwnerIDs: []string{"owner-a"}},
	})
	if err != nil {
		t.Fatalf("directory: %v", err)
	}

	log := logger.New("test")
	mappings := &fakeMappings{rows: make(map[string]identity.Mapping)}
	compliance := &fakeCompliance{optedOut: make(map[string]bool)}
	memberships := &fakeMemberships{rows: make(map[string]calllists.Membership)}
	dialer := &fakeDialer{}
	reconciler := calllists.NewReconciler(
		&fakeListRegistry{rows: make(map[string]*calllists.RegistryRow)},
		memberships, dialer, log,
	)
	agentSvc := agents.NewService(agents.NewResolver(dir), &fakeAgentStates{rows: make(map[string]agents.State)})

	handler := NewHandler(
		mappings, agentSvc, compliance,
		calllists.NewIntentResolver(calllists.MatchCaseInsensitive, nil),
		reconciler, dialer, events.NewInMemoryBus(log), log, "dialer-sync",
	)
	return &appointmentHarness{
		handler:     handler,
		mappings:    mappings,
		compliance:  compliance,
		memberships: memberships,
		dialer:      dialer,
	}
}

func (h *appointmentHarness) seedMapping(crmID, dialerID, phoneNumber string) {
	h.mappings.rows[crmID] = identity.Mapping{
		CRMContactID:    crmID,
		DialerContactID: &dialerID,
		PhoneNumber:     &phoneNumber,
		SyncDirection:   "crm_to_dialer",
	}
}

func addOps(ops []string) []string {
	var adds []string
	for _, op := range ops {
		if strings.HasPrefix(op, "add ") {
			adds = append(adds, op)
		}
	}
	return adds
}

func TestSyncAppointmentCancelledReenrollsFollowUp(t *testing.T) {
	h := newAppointmentHarness(t)
	h.seedMapping("c-1", "42", "+31612345678")

	ev := intake.AppointmentEvent{AppointmentID: "a-1", ContactID: "c-1", Status: "cancelled"}
	if err := h.handler.SyncAppointment(context.Background(), ev, uuid.New()); err != nil {
		t.Fatalf("sync appointment: %v", err)
	}

	adds := addOps(h.dialer.ops)
	if len(adds) != 1 || !strings.HasPrefix(adds[0], "add 42 to ") {
		t.Fatalf("expected a single follow-up enrollment, got ops %v", h.dialer.ops)
	}
}

func TestSyncAppointmentCancelledKeepsOptedOutContactOff(t *testing.T) {
	h := newAppointmentHarness(t)
	h.seedMapping("c-1", "42", "+31612345678")
	h.compliance.optedOut["+31612345678"] = true

	// The contact is still active on a list from before the opt-out.
	ctx := context.Background()
	if err := h.memberships.Upsert(ctx, "c-1", agents.UnassignedKey, calllists.ListHot, calllists.MembershipActive, nil); err != nil {
		t.Fatal(err)
	}

	ev := intake.AppointmentEvent{AppointmentID: "a-1", ContactID: "c-1", Status: "cancelled"}
	if err := h.handler.SyncAppointment(ctx, ev, uuid.New()); err != nil {
		t.Fatalf("sync appointment: %v", err)
	}

	if adds := addOps(h.dialer.ops); len(adds) != 0 {
		t.Fatalf("opted-out contact must never be enrolled, got %v", adds)
	}
	row := h.memberships.rows["c-1/"+agents.UnassignedKey+"/"+calllists.ListHot]
	if row.Status != calllists.MembershipRemoved {
		t.Fatalf("expected stale membership removed, got %q", row.Status)
	}
}

func TestSyncAppointmentBookedClearsLists(t *testing.T) {
	h := newAppointmentHarness(t)
	h.seedMapping("c-1", "42", "+31612345678")

	ctx := context.Background()
	if err := h.memberships.Upsert(ctx, "c-1", agents.UnassignedKey, calllists.ListCallNow, calllists.MembershipActive, nil); err != nil {
		t.Fatal(err)
	}

	ev := intake.AppointmentEvent{AppointmentID: "a-1", ContactID: "c-1", Status: "booked"}
	if err := h.handler.SyncAppointment(ctx, ev, uuid.New()); err != nil {
		t.Fatalf("sync appointment: %v", err)
	}

	if adds := addOps(h.dialer.ops); len(adds) != 0 {
		t.Fatalf("booked appointment must not enroll, got %v", adds)
	}
	row := h.memberships.rows["c-1/"+agents.UnassignedKey+"/"+calllists.ListCallNow]
	if row.Status != calllists.MembershipRemoved {
		t.Fatalf("expected membership removed on booking, got %q", row.Status)
	}
}
