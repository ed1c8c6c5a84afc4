// Package contacts syncs CRM contact and appointment changes to the
// dialer: mirrors contact fields, resolves agent ownership, and drives
// call-list membership reconciliation.
package contacts

import (
	"context"
	"fmt"

	"dialer_sync_backend/internal/agents"
	"dialer_sync_backend/internal/calllists"
	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/internal/events"
	"dialer_sync_backend/internal/identity"
	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/apperr"
	"dialer_sync_backend/platform/logger"
	"dialer_sync_backend/platform/phone"

	"github.com/google/uuid"
)

// MappingStore is the identity persistence surface the handler needs.
type MappingStore interface {
	Upsert(ctx context.Context, m identity.Mapping) error
	GetByCRMID(ctx context.Context, crmContactID string) (identity.Mapping, error)
	GetByPhone(ctx context.Context, phoneNumber string) (identity.Mapping, error)
}

// ComplianceChecker answers opt-out lookups.
type ComplianceChecker interface {
	IsOptedOut(ctx context.Context, phoneNumber string) (bool, error)
}

// Handler syncs CRM contact events into the dialer.
type Handler struct {
	mappings      MappingStore
	agents        *agents.Service
	compliance    ComplianceChecker
	intents       *calllists.IntentResolver
	reconciler    *calllists.Reconciler
	dialer        clients.DialerClient
	bus           events.Bus
	log           *logger.Logger
	selfOriginTag string
}

// NewHandler creates a contact sync handler.
func NewHandler(
	mappings MappingStore,
	agentSvc *agents.Service,
	compliance ComplianceChecker,
	intents *calllists.IntentResolver,
	reconciler *calllists.Reconciler,
	dialer clients.DialerClient,
	bus events.Bus,
	log *logger.Logger,
	selfOriginTag string,
) *Handler {
	return &Handler{
		mappings:      mappings,
		agents:        agentSvc,
		compliance:    compliance,
		intents:       intents,
		reconciler:    reconciler,
		dialer:        dialer,
		bus:           bus,
		log:           log,
		selfOriginTag: selfOriginTag,
	}
}

// SyncContact propagates a CRM contact change to the dialer. Safe to call
// more than once for the same contact; every write is an upsert.
func (h *Handler) SyncContact(ctx context.Context, ev intake.ContactEvent, eventType string, correlationID uuid.UUID) error {
	normalized := phone.NormalizeE164(ev.Phone)

	dialerID, err := h.ensureDialerContact(ctx, ev, normalized)
	if err != nil {
		return err
	}

	if err := h.pushFields(ctx, dialerID, ev, normalized); err != nil {
		return err
	}

	optedOut, err := h.compliance.IsOptedOut(ctx, normalized)
	if err != nil {
		return fmt.Errorf("compliance check: %w", err)
	}

	agentKey := h.agents.Resolve(agents.ContactProfile{
		OwnerID:       ev.OwnerID,
		AssignedAgent: ev.AssignedAgent,
		Tags:          ev.Tags,
	})

	reassignment, err := h.agents.DetectReassignment(ctx, ev.ContactID, agentKey)
	if err != nil {
		return fmt.Errorf("detect reassignment: %w", err)
	}
	if reassignment.Changed {
		// Membership transfer runs before any other list intent so the
		// contact is never enrolled under two agents at once.
		reason := fmt.Sprintf("reassigned %s -> %s", reassignment.PreviousAgentKey, agentKey)
		if err := h.reconciler.Transfer(ctx, ev.ContactID, dialerID, reassignment.PreviousAgentKey, agentKey, optedOut, &reason); err != nil {
			return fmt.Errorf("membership transfer: %w", err)
		}
		h.bus.Publish(ctx, events.ReassignmentDetected{
			BaseEvent:        events.NewBaseEvent(),
			ContactID:        ev.ContactID,
			PreviousAgentKey: reassignment.PreviousAgentKey,
			NewAgentKey:      agentKey,
			CorrelationID:    correlationID,
		})
	}
	if err := h.agents.CommitState(ctx, ev.ContactID, agentKey, nil); err != nil {
		return fmt.Errorf("commit agent state: %w", err)
	}

	intent := h.intents.Resolve(calllists.IntentInput{
		EventType:     eventType,
		Tags:          ev.Tags,
		PipelineStage: ev.PipelineStage,
		OptedOut:      optedOut,
	})
	reason := "contact event " + correlationID.String()
	if err := h.reconciler.Apply(ctx, ev.ContactID, dialerID, agentKey, intent, &reason); err != nil {
		return fmt.Errorf("apply list intent: %w", err)
	}
	return nil
}

// ensureDialerContact resolves the dialer-side contact id through the
// identity bridge, falling back to a phone search and finally to creating
// the contact. The mapping is upserted with whatever was learned.
func (h *Handler) ensureDialerContact(ctx context.Context, ev intake.ContactEvent, normalizedPhone string) (string, error) {
	mapping, err := h.mappings.GetByCRMID(ctx, ev.ContactID)
	if err != nil && apperr.GetKind(err) != apperr.KindNotFound {
		return "", fmt.Errorf("load contact mapping: %w", err)
	}
	if err == nil && mapping.DialerContactID != nil {
		return *mapping.DialerContactID, nil
	}

	var dialerID string
	if normalizedPhone != "" {
		// A mapping learned through another CRM id may already carry this
		// phone. Checking locally first avoids a dialer round trip.
		byPhone, err := h.mappings.GetByPhone(ctx, normalizedPhone)
		switch {
		case err == nil && byPhone.DialerContactID != nil:
			dialerID = *byPhone.DialerContactID
		case err != nil && apperr.GetKind(err) != apperr.KindNotFound:
			return "", fmt.Errorf("mapping phone lookup: %w", err)
		}
	}
	if dialerID == "" && normalizedPhone != "" {
		found, err := h.dialer.FindContactByPhone(ctx, normalizedPhone)
		switch {
		case err == nil:
			dialerID = found.ID
		case apperr.GetKind(err) == apperr.KindNotFound:
		default:
			return "", fmt.Errorf("dialer phone lookup: %w", err)
		}
	}
	if dialerID == "" {
		created, err := h.dialer.CreateContact(ctx, clients.Contact{
			Phone:     normalizedPhone,
			Email:     ev.Email,
			FirstName: ev.FirstName,
			LastName:  ev.LastName,
			Tags:      []string{h.selfOriginTag},
		})
		if err != nil {
			return "", fmt.Errorf("create dialer contact: %w", err)
		}
		dialerID = created
		h.log.WithContext(ctx).Info("dialer contact created",
			"crm_contact_id", ev.ContactID, "dialer_contact_id", dialerID)
	}

	upsert := identity.Mapping{
		CRMContactID:    ev.ContactID,
		DialerContactID: &dialerID,
		SyncDirection:   "crm_to_dialer",
	}
	if normalizedPhone != "" {
		upsert.PhoneNumber = &normalizedPhone
	}
	if ev.Email != "" {
		email := ev.Email
		upsert.Email = &email
	}
	if err := h.mappings.Upsert(ctx, upsert); err != nil {
		return "", fmt.Errorf("upsert contact mapping: %w", err)
	}
	return dialerID, nil
}

func (h *Handler) pushFields(ctx context.Context, dialerID string, ev intake.ContactEvent, normalizedPhone string) error {
	patch := clients.ContactPatch{SyncSource: h.selfOriginTag}
	if normalizedPhone != "" {
		patch.Phone = &normalizedPhone
	}
	if ev.Email != "" {
		email := ev.Email
		patch.Email = &email
	}
	if ev.FirstName != "" {
		first := ev.FirstName
		patch.FirstName = &first
	}
	if ev.LastName != "" {
		last := ev.LastName
		patch.LastName = &last
	}
	if err := h.dialer.UpdateContact(ctx, dialerID, patch); err != nil {
		return fmt.Errorf("update dialer contact: %w", err)
	}
	return nil
}
