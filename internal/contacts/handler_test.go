package contacts

import (
	"context"
	"testing"

	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/apperr"

	"github.com/google/uuid"
)

// fakeContactDialer extends the list-op fake with the contact surface the
// sync path touches.
type fakeContactDialer struct {
	fakeDialer
	phoneLookups int
	created      int
}

func (d *fakeContactDialer) FindContactByPhone(_ context.Context, _ string) (clients.Contact, error) {
	d.phoneLookups++
	return clients.Contact{}, apperr.NotFound("dialer contact not found")
}

func (d *fakeContactDialer) CreateContact(_ context.Context, _ clients.Contact) (string, error) {
	d.created++
	return "dialer-new", nil
}

func (d *fakeContactDialer) UpdateContact(_ context.Context, _ string, _ clients.ContactPatch) error {
	return nil
}

func newContactHarness(t *testing.T) (*appointmentHarness, *fakeContactDialer) {
	t.Helper()
	h := newAppointmentHarness(t)
	dialer := &fakeContactDialer{}
	h.handler.dialer = dialer
	return h, dialer
}

func TestSyncContactReusesMappingFoundByPhone(t *testing.T) {
	h, dialer := newContactHarness(t)
	// The number is already bridged under another CRM id, as happens when
	// the dialer side was synced first.
	h.seedMapping("c-other", "42", "+31612345678")

	ev := intake.ContactEvent{ContactID: "c-1", Phone: "+31612345678", OwnerID: "owner-a"}
	if err := h.handler.SyncContact(context.Background(), ev, "ContactUpdate", uuid.New()); err != nil {
		t.Fatalf("sync contact: %v", err)
	}

	if dialer.phoneLookups != 0 {
		t.Fatalf("expected no remote phone lookup when the mapping already knows the number")
	}
	if dialer.created != 0 {
		t.Fatalf("expected no contact creation, got %d", dialer.created)
	}
	m, err := h.mappings.GetByCRMID(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("mapping not upserted: %v", err)
	}
	if m.DialerContactID == nil || *m.DialerContactID != "42" {
		t.Fatalf("expected dialer id 42, got %+v", m)
	}
}

func TestSyncContactCreatesWhenUnknown(t *testing.T) {
	h, dialer := newContactHarness(t)

	ev := intake.ContactEvent{ContactID: "c-1", Phone: "+31612345678", OwnerID: "owner-a"}
	if err := h.handler.SyncContact(context.Background(), ev, "ContactUpdate", uuid.New()); err != nil {
		t.Fatalf("sync contact: %v", err)
	}

	if dialer.phoneLookups != 1 || dialer.created != 1 {
		t.Fatalf("expected one remote lookup and one create, got %d/%d", dialer.phoneLookups, dialer.created)
	}
}
