package router

import (
	"testing"

	"dialer_sync_backend/internal/intake"
)

func TestPolicyTableEvaluate(t *testing.T) {
	table := NewPolicyTable()

	tests := []struct {
		name       string
		source     string
		entityType string
		ev         intake.ParsedEvent
		dispatch   bool
	}{
		{
			name:       "authoritative source dispatches",
			source:     intake.SourceCRM,
			entityType: intake.EntityContact,
			ev:         intake.ContactEvent{ContactID: "c-1"},
			dispatch:   true,
		},
		{
			name:       "non-authoritative source is skipped",
			source:     intake.SourceDialer,
			entityType: intake.EntityContact,
			ev:         intake.ContactEvent{ContactID: "c-1"},
		},
		{
			name:       "dialer owns call activity",
			source:     intake.SourceDialer,
			entityType: intake.EntityCall,
			ev:         intake.CallEvent{CallID: "call-1"},
			dispatch:   true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := table.Evaluate(tc.source, tc.entityType, tc.ev)
			if v.Dispatch != tc.dispatch {
				t.Fatalf("dispatch = %v, want %v (reason %q)", v.Dispatch, tc.dispatch, v.Reason)
			}
			if !tc.dispatch && v.Reason == "" {
				t.Fatal("skipped verdict must carry a reason")
			}
		})
	}
}

func TestPolicyTableUnknownEntityIsUnhandled(t *testing.T) {
	table := NewPolicyTable()
	v := table.Evaluate(intake.SourceDialer, "billing", nil)
	if v.Dispatch {
		t.Fatal("unknown entity must not dispatch")
	}
	if v.Reason != ReasonUnhandled {
		t.Fatalf("reason = %q, want %q", v.Reason, ReasonUnhandled)
	}
}

func TestTagTriggerExceptionAdmitsEnrollmentTags(t *testing.T) {
	table := NewPolicyTable()
	table.RegisterException(intake.SourceDialer, intake.EntityContact,
		TagTriggerException([]string{"hot", "call now"}))

	hot := intake.ContactEvent{Meta: intake.Meta{Tags: []string{"Existing", " HOT "}}, ContactID: "c-1"}
	if v := table.Evaluate(intake.SourceDialer, intake.EntityContact, hot); !v.Dispatch {
		t.Fatalf("enrollment tag must pass the gate, got reason %q", v.Reason)
	}

	plain := intake.ContactEvent{Meta: intake.Meta{Tags: []string{"customer"}}, ContactID: "c-2"}
	if v := table.Evaluate(intake.SourceDialer, intake.EntityContact, plain); v.Dispatch {
		t.Fatal("non-trigger tags must still be skipped")
	}

	// The exception is scoped to its (source, entityType) pair.
	appt := intake.AppointmentEvent{Meta: intake.Meta{Tags: []string{"hot"}}, AppointmentID: "a-1"}
	if v := table.Evaluate(intake.SourceDialer, intake.EntityAppointment, appt); v.Dispatch {
		t.Fatal("exception must not leak to other entity types")
	}
}
