package calllists

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/platform/logger"
)

type fakeRegistry struct {
	rows    map[string]*RegistryRow
	created int
}

func regKey(agentKey, listKey string) string { return agentKey + "/" + listKey }

func (r *fakeRegistry) GetOrCreate(_ context.Context, agentKey, listKey, listName string) (RegistryRow, error) {
	key := regKey(agentKey, listKey)
	if row, ok := r.rows[key]; ok {
		return *row, nil
	}
	row := &RegistryRow{AgentKey: agentKey, ListKey: listKey, DialerListName: listName}
	r.rows[key] = row
	return *row, nil
}

func (r *fakeRegistry) SetDialerListID(_ context.Context, agentKey, listKey, dialerListID string) (string, error) {
	row := r.rows[regKey(agentKey, listKey)]
	if row.DialerListID == nil {
		row.DialerListID = &dialerListID
	}
	return *row.DialerListID, nil
}

type fakeMemberships struct {
	rows map[string]Membership
}

func memKey(contactID, agentKey, listKey string) string {
	return contactID + "/" + agentKey + "/" + listKey
}

func (m *fakeMemberships) Upsert(_ context.Context, contactID, agentKey, listKey, status string, reason *string) error {
	m.rows[memKey(contactID, agentKey, listKey)] = Membership{
		ContactID: contactID, AgentKey: agentKey, ListKey: listKey, Status: status, Reason: reason,
	}
	return nil
}

func (m *fakeMemberships) ActiveListKeys(_ context.Context, contactID, agentKey string) ([]string, error) {
	var keys []string
	for _, row := range m.rows {
		if row.ContactID == contactID && row.AgentKey == agentKey && row.Status == MembershipActive {
			keys = append(keys, row.ListKey)
		}
	}
	return keys, nil
}

func (m *fakeMemberships) ActiveMemberships(_ context.Context, contactID string) ([]Membership, error) {
	var out []Membership
	for _, row := range m.rows {
		if row.ContactID == contactID && row.Status == MembershipActive {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeDialer struct {
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

func newTestReconciler() (*Reconciler, *fakeRegistry, *fakeMemberships, *fakeDialer) {
	registry := &fakeRegistry{rows: make(map[string]*RegistryRow)}
	memberships := &fakeMemberships{rows: make(map[string]Membership)}
	dialer := &fakeDialer{}
	return NewReconciler(registry, memberships, dialer, logger.New("test")), registry, memberships, dialer
}

func TestApplyComputesSetDifference(t *testing.T) {
	rec, _, memberships, dialer := newTestReconciler()
	ctx := context.Background()

	// Already active on CALL_NOW; intent re-adds it plus HOT.
	if err := memberships.Upsert(ctx, "c-1", "AGENT_A", ListCallNow, MembershipActive, nil); err != nil {
		t.Fatal(err)
	}

	intent := Intent{Add: []string{ListCallNow, ListHot}, Remove: []string{ListFollowUp}}
	if err := rec.Apply(ctx, "c-1", "42", "AGENT_A", intent, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	adds := 0
	for _, op := range dialer.ops {
		if strings.HasPrefix(op, "add ") {
			adds++
		}
	}
	if adds != 1 {
		t.Fatalf("expected exactly one remote add (HOT only), got ops %v", dialer.ops)
	}
	// FOLLOW_UP was never active, so no remote remove should happen.
	for _, op := range dialer.ops {
		if strings.HasPrefix(op, "remove ") {
			t.Fatalf("unexpected remote remove: %v", dialer.ops)
		}
	}
}

func TestApplyRedeliveryIsIdempotent(t *testing.T) {
	rec, _, _, dialer := newTestReconciler()
	ctx := context.Background()

	intent := Intent{Add: []string{ListHot}, Remove: []string{}}
	if err := rec.Apply(ctx, "c-1", "42", "AGENT_A", intent, nil); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	opsAfterFirst := len(dialer.ops)

	if err := rec.Apply(ctx, "c-1", "42", "AGENT_A", intent, nil); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if len(dialer.ops) != opsAfterFirst {
		t.Fatalf("redelivered intent must be a no-op, got extra ops %v", dialer.ops[opsAfterFirst:])
	}
}

func TestTransferRemovesBeforeAdding(t *testing.T) {
	rec, _, memberships, dialer := newTestReconciler()
	ctx := context.Background()

	if err := rec.Apply(ctx, "c-1", "42", "AGENT_A", Intent{Add: []string{ListCallNow, ListHot}}, nil); err != nil {
		t.Fatalf("seed memberships: %v", err)
	}
	dialer.ops = nil

	if err := rec.Transfer(ctx, "c-1", "42", "AGENT_A", "AGENT_B", false, nil); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// All removes must precede any add so the contact is never active on
	// both agents' lists at once.
	sawAdd := false
	for _, op := range dialer.ops {
		if strings.HasPrefix(op, "add ") {
			sawAdd = true
		}
		if strings.HasPrefix(op, "remove ") && sawAdd {
			t.Fatalf("remove after add during transfer: %v", dialer.ops)
		}
	}

	// Old agent fully removed, new agent active on the same keys.
	for _, listKey := range []string{ListCallNow, ListHot} {
		old := memberships.rows[memKey("c-1", "AGENT_A", listKey)]
		if old.Status != MembershipRemoved {
			t.Fatalf("expected %s removed for AGENT_A, got %s", listKey, old.Status)
		}
		next := memberships.rows[memKey("c-1", "AGENT_B", listKey)]
		if next.Status != MembershipActive {
			t.Fatalf("expected %s active for AGENT_B, got %q", listKey, next.Status)
		}
	}
}

func TestTransferSkipsAddsForOptedOutContact(t *testing.T) {
	rec, _, memberships, dialer := newTestReconciler()
	ctx := context.Background()

	if err := rec.Apply(ctx, "c-1", "42", "AGENT_A", Intent{Add: []string{ListCallNow, ListHot}}, nil); err != nil {
		t.Fatalf("seed memberships: %v", err)
	}
	dialer.ops = nil

	if err := rec.Transfer(ctx, "c-1", "42", "AGENT_A", "AGENT_B", true, nil); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	for _, op := range dialer.ops {
		if strings.HasPrefix(op, "add ") {
			t.Fatalf("opted-out transfer must not enroll the new agent: %v", dialer.ops)
		}
	}
	for _, listKey := range []string{ListCallNow, ListHot} {
		old := memberships.rows[memKey("c-1", "AGENT_A", listKey)]
		if old.Status != MembershipRemoved {
			t.Fatalf("expected %s removed for AGENT_A, got %s", listKey, old.Status)
		}
		if _, ok := memberships.rows[memKey("c-1", "AGENT_B", listKey)]; ok {
			t.Fatalf("unexpected AGENT_B membership for %s", listKey)
		}
	}
}

func TestEnsureListCreatesRemoteListOnce(t *testing.T) {
	rec, registry, _, dialer := newTestReconciler()
	ctx := context.Background()

	id1, err := rec.ensureList(ctx, "AGENT_A", ListHot)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	id2, err := rec.ensureList(ctx, "AGENT_A", ListHot)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected stable list id, got %s then %s", id1, id2)
	}
	if dialer.nextID != 1 {
		t.Fatalf("expected exactly one remote create, got %d", dialer.nextID)
	}
	if row := registry.rows[regKey("AGENT_A", ListHot)]; row.DialerListID == nil || *row.DialerListID != id1 {
		t.Fatalf("registry not updated: %+v", row)
	}
}
