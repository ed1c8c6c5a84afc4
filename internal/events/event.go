package events

import "github.com/google/uuid"

// Event names.
const (
	EventRoutedName          = "sync.event_routed"
	ReassignmentDetectedName = "sync.reassignment_detected"
	OptOutRecordedName       = "compliance.optout_recorded"
	AnalyticsPushedName      = "analytics.snapshot_pushed"
)

// EventRouted fires once per router dispatch with the terminal outcome.
// The metrics sink subscribes to it.
type EventRouted struct {
	BaseEvent
	EventID    uuid.UUID
	Direction  string
	EntityType string
	Status     string
	Reason     string
	ElapsedMS  float64
}

// EventName implements Event.
func (EventRouted) EventName() string { return EventRoutedName }

// ReassignmentDetected fires when a contact's resolved agent changes.
type ReassignmentDetected struct {
	BaseEvent
	ContactID        string
	PreviousAgentKey string
	NewAgentKey      string
	CorrelationID    uuid.UUID
}

// EventName implements Event.
func (ReassignmentDetected) EventName() string { return ReassignmentDetectedName }

// OptOutRecorded fires when the opt-out registry changes for a number.
type OptOutRecorded struct {
	BaseEvent
	PhoneNumber string
	Status      string
	Source      string
}

// EventName implements Event.
func (OptOutRecorded) EventName() string { return OptOutRecordedName }

// AnalyticsPushed fires after a campaign snapshot is upserted into the CRM.
type AnalyticsPushed struct {
	BaseEvent
	BroadcastID       string
	CRMReportRecordID string
	Created           bool
}

// EventName implements Event.
func (AnalyticsPushed) EventName() string { return AnalyticsPushedName }
