package contacts

import (
	"context"
	"fmt"
	"strings"

	"dialer_sync_backend/internal/agents"
	"dialer_sync_backend/internal/calllists"
	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/apperr"

	"github.com/google/uuid"
)

// Appointment statuses that stop outbound dialing for the contact.
var bookedStatuses = map[string]bool{
	"booked":    true,
	"confirmed": true,
	"showed":    true,
}

// SyncAppointment reacts to CRM appointment lifecycle changes. A booked
// appointment pulls the contact off every call list for its current agent;
// a cancellation or no-show re-enrolls it for follow up.
func (h *Handler) SyncAppointment(ctx context.Context, ev intake.AppointmentEvent, correlationID uuid.UUID) error {
	if ev.ContactID == "" {
		return apperr.Permanent("appointment event has no contact id", nil)
	}

	mapping, err := h.mappings.GetByCRMID(ctx, ev.ContactID)
	if err != nil && apperr.GetKind(err) != apperr.KindNotFound {
		return fmt.Errorf("load contact mapping: %w", err)
	}
	var dialerID string
	if mapping.DialerContactID != nil {
		dialerID = *mapping.DialerContactID
	}

	agentKey := h.currentAgentKey(ctx, ev.ContactID)

	var optedOut bool
	if mapping.PhoneNumber != nil {
		optedOut, err = h.compliance.IsOptedOut(ctx, *mapping.PhoneNumber)
		if err != nil {
			return fmt.Errorf("compliance check: %w", err)
		}
	}

	status := strings.ToLower(strings.TrimSpace(ev.Status))
	var intent calllists.Intent
	var reason string
	switch {
	case optedOut:
		// Opt-out dominates: a cancellation must never re-enroll the contact.
		intent = calllists.Intent{Add: []string{}, Remove: h.intents.ListKeys()}
		reason = "appointment " + status + " (opted out) " + correlationID.String()
	case bookedStatuses[status]:
		intent = calllists.Intent{Add: []string{}, Remove: h.intents.ListKeys()}
		reason = "appointment booked " + correlationID.String()
	default:
		intent = calllists.Intent{Add: []string{calllists.ListFollowUp}, Remove: []string{}}
		reason = "appointment " + status + " " + correlationID.String()
	}

	if err := h.reconciler.Apply(ctx, ev.ContactID, dialerID, agentKey, intent, &reason); err != nil {
		return fmt.Errorf("apply appointment list intent: %w", err)
	}
	return nil
}

// currentAgentKey returns the last-known agent for a contact, falling back
// to the unassigned bucket when the contact has never been resolved.
func (h *Handler) currentAgentKey(ctx context.Context, contactID string) string {
	state, err := h.agents.State(ctx, contactID)
	if err != nil {
		return agents.UnassignedKey
	}
	return state.AgentKey
}
