package activities

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/internal/identity"
	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/apperr"
	"dialer_sync_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeMappings struct {
	rows map[string]identity.Mapping
}

func (f *fakeMappings) GetByDialerID(_ context.Context, dialerContactID string) (identity.Mapping, error) {
	m, ok := f.rows[dialerContactID]
	if !ok {
		return identity.Mapping{}, apperr.NotFound("contact mapping not found")
	}
	return m, nil
}

type fakeCompliance struct {
	calls []string
}

func (f *fakeCompliance) RecordOptOut(_ context.Context, phoneNumber, _ string, _ *string) error {
	f.calls = append(f.calls, "optout "+phoneNumber)
	return nil
}

func (f *fakeCompliance) RecordOptIn(_ context.Context, phoneNumber, _ string, _ *string) error {
	f.calls = append(f.calls, "optin "+phoneNumber)
	return nil
}

// fakeCRM records note and tag writes; the embedded interface covers the
// methods the tests never reach.
type fakeCRM struct {
	clients.CRMClient
	notes []string
	tags  []string
}

func (c *fakeCRM) CreateNote(_ context.Context, contactID, body string) error {
	c.notes = append(c.notes, contactID+": "+body)
	return nil
}

func (c *fakeCRM) AddTagsToContact(_ context.Context, _ string, tags []string) error {
	c.tags = append(c.tags, tags...)
	return nil
}

func newTestHandler() (*Handler, *fakeMappings, *fakeCompliance, *fakeCRM) {
	phoneNumber := "+31612345678"
	mappings := &fakeMappings{rows: map[string]identity.Mapping{
		"42": {CRMContactID: "c-1", PhoneNumber: &phoneNumber},
	}}
	compliance := &fakeCompliance{}
	crm := &fakeCRM{}
	return NewHandler(mappings, crm, compliance, logger.New("test"), "dialer-sync"), mappings, compliance, crm
}

func TestSyncMessageRecordsOptOut(t *testing.T) {
	h, _, compliance, crm := newTestHandler()

	ev := intake.MessageEvent{MessageID: "m-1", ContactID: "42", Direction: "inbound", Body: "STOP", OptOut: true}
	if err := h.SyncMessage(context.Background(), ev, uuid.New()); err != nil {
		t.Fatalf("sync message: %v", err)
	}

	if len(compliance.calls) != 1 || compliance.calls[0] != "optout +31612345678" {
		t.Fatalf("expected one opt-out record, got %v", compliance.calls)
	}
	if len(crm.notes) != 1 {
		t.Fatalf("expected one CRM note, got %v", crm.notes)
	}
}

func TestSyncMessageInboundStartRecordsOptIn(t *testing.T) {
	h, _, compliance, _ := newTestHandler()

	ev := intake.MessageEvent{MessageID: "m-2", ContactID: "42", Direction: "inbound", Body: " Start "}
	if err := h.SyncMessage(context.Background(), ev, uuid.New()); err != nil {
		t.Fatalf("sync message: %v", err)
	}

	if len(compliance.calls) != 1 || compliance.calls[0] != "optin +31612345678" {
		t.Fatalf("expected one opt-in record, got %v", compliance.calls)
	}
}

func TestSyncMessageOutboundKeywordIsIgnored(t *testing.T) {
	h, _, compliance, _ := newTestHandler()

	// An agent texting "start" must never flip the contact's consent.
	ev := intake.MessageEvent{MessageID: "m-3", ContactID: "42", Direction: "outbound", Body: "start"}
	if err := h.SyncMessage(context.Background(), ev, uuid.New()); err != nil {
		t.Fatalf("sync message: %v", err)
	}
	if len(compliance.calls) != 0 {
		t.Fatalf("expected no compliance writes, got %v", compliance.calls)
	}
}

func TestSyncMessageUnmappedContactIsPermanent(t *testing.T) {
	h, _, _, _ := newTestHandler()

	ev := intake.MessageEvent{MessageID: "m-4", ContactID: "unknown", Direction: "inbound", Body: "hi"}
	err := h.SyncMessage(context.Background(), ev, uuid.New())
	if apperr.GetKind(err) != apperr.KindPermanent {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestExcerptNeverSplitsRune(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short string unchanged", in: "hello", max: 10, want: "hello"},
		{name: "ascii truncation", in: "hello world", max: 5, want: "hello…"},
		{name: "cut lands inside rune", in: "héllo", max: 2, want: "h…"},
		{name: "cut lands after rune", in: "héllo", max: 3, want: "hé…"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := excerpt(tc.in, tc.max)
			if got != tc.want {
				t.Fatalf("excerpt(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("excerpt produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestBuildCallNoteTruncatesTranscript(t *testing.T) {
	ev := intake.CallEvent{
		CallID:        "call-1",
		Direction:     "outbound",
		Transcription: strings.Repeat("ü", 800),
	}
	note := buildCallNote(ev)
	if !utf8.ValidString(note) {
		t.Fatal("call note contains invalid UTF-8")
	}
	if !strings.Contains(note, "…") {
		t.Fatal("expected truncated transcript marker")
	}
}
