package router

import (
	"fmt"
	"strings"

	"dialer_sync_backend/internal/intake"
)

// ReasonUnhandled is the audit reason for entity types with no registered
// policy. Unknown events are skipped, never failed, so intake cannot stall
// on input this system does not understand.
const ReasonUnhandled = "unhandled event type"

// Exception lets a non-authoritative event through the policy gate, e.g. a
// dialer disposition change that drives downstream list enrollment.
type Exception func(ev intake.ParsedEvent) bool

type policyKey struct {
	source     string
	entityType string
}

// Verdict is the policy decision for one (source, entityType) pair.
type Verdict struct {
	Dispatch bool
	Reason   string
}

// PolicyTable holds the static source-of-truth precedence rules: each
// entity type has exactly one authoritative source, and events from any
// other source are mirrored, never authored.
type PolicyTable struct {
	owners     map[string]string
	exceptions map[policyKey]Exception
}

// NewPolicyTable builds the default precedence table. The CRM owns
// contacts and appointments; the dialer owns call activity, messages and
// broadcast delivery events.
func NewPolicyTable() *PolicyTable {
	return &PolicyTable{
		owners: map[string]string{
			intake.EntityContact:       intake.SourceCRM,
			intake.EntityAppointment:   intake.SourceCRM,
			intake.EntityCall:          intake.SourceDialer,
			intake.EntityRecording:     intake.SourceDialer,
			intake.EntityTranscription: intake.SourceDialer,
			intake.EntityVoicemail:     intake.SourceDialer,
			intake.EntityMessage:       intake.SourceDialer,
			intake.EntityBroadcast:     intake.SourceDialer,
		},
		exceptions: make(map[policyKey]Exception),
	}
}

// RegisterException lets events from a non-authoritative source through
// when the predicate recognizes them.
func (t *PolicyTable) RegisterException(source, entityType string, fn Exception) {
	t.exceptions[policyKey{source: source, entityType: entityType}] = fn
}

// TagTriggerException recognizes events carrying one of the given tags,
// compared case-insensitively. It lets dialer-side tag changes that drive
// list enrollment through the gate even though the CRM owns the entity.
func TagTriggerException(triggers []string) Exception {
	set := make(map[string]struct{}, len(triggers))
	for _, trigger := range triggers {
		set[strings.ToLower(strings.TrimSpace(trigger))] = struct{}{}
	}
	return func(ev intake.ParsedEvent) bool {
		for _, tag := range ev.EventMeta().Tags {
			if _, ok := set[strings.ToLower(strings.TrimSpace(tag))]; ok {
				return true
			}
		}
		return false
	}
}

// Evaluate returns the policy verdict for an event.
func (t *PolicyTable) Evaluate(source, entityType string, ev intake.ParsedEvent) Verdict {
	owner, ok := t.owners[entityType]
	if !ok {
		return Verdict{Reason: ReasonUnhandled}
	}
	if owner == source {
		return Verdict{Dispatch: true}
	}
	if fn, ok := t.exceptions[policyKey{source: source, entityType: entityType}]; ok && ev != nil && fn(ev) {
		return Verdict{Dispatch: true}
	}
	return Verdict{Reason: fmt.Sprintf("source %s is not authoritative for %s", source, entityType)}
}
