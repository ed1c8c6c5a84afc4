// Package audit provides the append-only sync log and the event quarantine.
// Every branch of the router, reconciler and job queue writes exactly one
// entry here, keyed by the correlation id of the triggering webhook event or
// job, so operators can reconstruct why an external system changed.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Sync attempt outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Sync directions, named source-to-target.
const (
	DirectionCRMToDialer    = "crm_to_dialer"
	DirectionDialerToCRM    = "dialer_to_crm"
	DirectionAnalyticsToCRM = "analytics_to_crm"
	DirectionInternal       = "internal"
)

// Entry is one row of the sync log. Entries are append-only and never mutated.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	Direction     string    `json:"direction"`
	EntityType    string    `json:"entityType"`
	EntityID      string    `json:"entityId"`
	SourceID      string    `json:"sourceId"`
	TargetID      *string   `json:"targetId,omitempty"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	Message       *string   `json:"message,omitempty"`
	CorrelationID uuid.UUID `json:"correlationId"`
}

// NewSuccess builds a success entry for a completed sync attempt.
func NewSuccess(direction, entityType, entityID, sourceID string, targetID *string, startedAt time.Time, correlationID uuid.UUID) Entry {
	return Entry{
		Direction:     direction,
		EntityType:    entityType,
		EntityID:      entityID,
		SourceID:      sourceID,
		TargetID:      targetID,
		Status:        StatusSuccess,
		StartedAt:     startedAt,
		FinishedAt:    time.Now(),
		CorrelationID: correlationID,
	}
}

// NewSkip builds a skipped entry with the reason operators will query for.
func NewSkip(direction, entityType, entityID string, startedAt time.Time, correlationID uuid.UUID, reason string) Entry {
	return Entry{
		Direction:     direction,
		EntityType:    entityType,
		EntityID:      entityID,
		SourceID:      entityID,
		Status:        StatusSkipped,
		StartedAt:     startedAt,
		FinishedAt:    time.Now(),
		Message:       &reason,
		CorrelationID: correlationID,
	}
}

// NewFailure builds an error entry carrying the handler's error message.
func NewFailure(direction, entityType, entityID string, startedAt time.Time, correlationID uuid.UUID, err error) Entry {
	msg := err.Error()
	return Entry{
		Direction:     direction,
		EntityType:    entityType,
		EntityID:      entityID,
		SourceID:      entityID,
		Status:        StatusError,
		StartedAt:     startedAt,
		FinishedAt:    time.Now(),
		Message:       &msg,
		CorrelationID: correlationID,
	}
}

// QuarantinedEvent marks an event id excluded from all future processing.
// The underlying webhook event row is preserved for forensics.
type QuarantinedEvent struct {
	EventID       uuid.UUID `json:"eventId"`
	EventSource   string    `json:"eventSource"`
	Reason        string    `json:"reason"`
	QuarantinedAt time.Time `json:"quarantinedAt"`
}
