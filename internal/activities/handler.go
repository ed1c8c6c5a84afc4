// Package activities syncs dialer-owned activity events (calls, recordings,
// transcriptions, voicemails, messages) into the CRM as notes and tags.
package activities

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/internal/identity"
	"dialer_sync_backend/internal/intake"
	"dialer_sync_backend/platform/apperr"
	"dialer_sync_backend/platform/logger"

	"github.com/google/uuid"
)

// MappingStore is the identity lookup surface the handler needs.
type MappingStore interface {
	GetByDialerID(ctx context.Context, dialerContactID string) (identity.Mapping, error)
}

// ComplianceRecorder records opt-out and opt-in transitions discovered in
// messages.
type ComplianceRecorder interface {
	RecordOptOut(ctx context.Context, phoneNumber, source string, reason *string) error
	RecordOptIn(ctx context.Context, phoneNumber, source string, reason *string) error
}

// Inbound keywords that resubscribe a previously opted-out number, per the
// carrier conventions for SMS consent.
var optInKeywords = map[string]bool{
	"start":     true,
	"unstop":    true,
	"subscribe": true,
}

// Handler syncs dialer activity events into the CRM.
type Handler struct {
	mappings      MappingStore
	crm           clients.CRMClient
	compliance    ComplianceRecorder
	log           *logger.Logger
	selfOriginTag string
}

// NewHandler creates an activities sync handler.
func NewHandler(mappings MappingStore, crm clients.CRMClient, compliance ComplianceRecorder, log *logger.Logger, selfOriginTag string) *Handler {
	return &Handler{
		mappings:      mappings,
		crm:           crm,
		compliance:    compliance,
		log:           log,
		selfOriginTag: selfOriginTag,
	}
}

// SyncCall writes a dialer call (or recording/transcription/voicemail) into
// the CRM as a note on the mapped contact. Creating the same note twice is
// tolerated; the admission gate already deduplicates redeliveries.
func (h *Handler) SyncCall(ctx context.Context, ev intake.CallEvent, correlationID uuid.UUID) error {
	crmID, err := h.resolveCRMContact(ctx, ev.ContactID)
	if err != nil {
		return err
	}

	note := buildCallNote(ev)
	if err := h.crm.CreateNote(ctx, crmID, note); err != nil {
		return fmt.Errorf("create call note: %w", err)
	}

	if ev.Disposition != "" {
		tags := []string{"call-" + slug(ev.Disposition), h.selfOriginTag}
		if err := h.crm.AddTagsToContact(ctx, crmID, tags); err != nil {
			return fmt.Errorf("tag call disposition: %w", err)
		}
	}
	return nil
}

// SyncMessage writes a dialer SMS into the CRM and records opt-outs. The
// compliance write happens first so an opted-out number is protected even
// if the CRM write fails and the event is retried.
func (h *Handler) SyncMessage(ctx context.Context, ev intake.MessageEvent, correlationID uuid.UUID) error {
	mapping, err := h.mappings.GetByDialerID(ctx, ev.ContactID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return apperr.Permanent(fmt.Sprintf("no identity mapping for dialer contact %s", ev.ContactID), nil)
		}
		return fmt.Errorf("load contact mapping: %w", err)
	}

	if mapping.PhoneNumber != nil {
		switch {
		case ev.OptOut:
			reason := "stop keyword in message " + ev.MessageID
			if err := h.compliance.RecordOptOut(ctx, *mapping.PhoneNumber, "dialer", &reason); err != nil {
				return fmt.Errorf("record opt-out: %w", err)
			}
		case isOptInMessage(ev):
			reason := "resubscribe keyword in message " + ev.MessageID
			if err := h.compliance.RecordOptIn(ctx, *mapping.PhoneNumber, "dialer", &reason); err != nil {
				return fmt.Errorf("record opt-in: %w", err)
			}
		}
	}

	note := fmt.Sprintf("SMS (%s): %s", ev.Direction, ev.Body)
	if err := h.crm.CreateNote(ctx, mapping.CRMContactID, note); err != nil {
		return fmt.Errorf("create message note: %w", err)
	}
	return nil
}

func (h *Handler) resolveCRMContact(ctx context.Context, dialerContactID string) (string, error) {
	if dialerContactID == "" {
		return "", apperr.Permanent("activity event has no contact id", nil)
	}
	mapping, err := h.mappings.GetByDialerID(ctx, dialerContactID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return "", apperr.Permanent(fmt.Sprintf("no identity mapping for dialer contact %s", dialerContactID), nil)
		}
		return "", fmt.Errorf("load contact mapping: %w", err)
	}
	return mapping.CRMContactID, nil
}

func buildCallNote(ev intake.CallEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Call %s (%s)", ev.CallID, ev.Direction)
	if ev.Disposition != "" {
		fmt.Fprintf(&b, ", %s", ev.Disposition)
	}
	if ev.DurationSec > 0 {
		fmt.Fprintf(&b, ", %ds", ev.DurationSec)
	}
	if ev.RecordingURL != "" {
		fmt.Fprintf(&b, "\nRecording: %s", ev.RecordingURL)
	}
	if ev.Transcription != "" {
		fmt.Fprintf(&b, "\nTranscript: %s", excerpt(ev.Transcription, 1000))
	}
	return b.String()
}

// isOptInMessage reports whether an inbound SMS is a resubscribe request.
func isOptInMessage(ev intake.MessageEvent) bool {
	if !strings.EqualFold(ev.Direction, "inbound") {
		return false
	}
	return optInKeywords[strings.ToLower(strings.TrimSpace(ev.Body))]
}

// excerpt shortens s to at most max bytes, backing up to a rune boundary so
// a multi-byte character is never split.
func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}
