package intake

import (
	"encoding/json"
	"fmt"
	"time"
)

// Meta carries the payload fields every variant exposes for origin and
// policy checks, so downstream code never inspects raw payloads.
type Meta struct {
	Tags []string
	// SyncSource is the reserved field this system stamps on its own
	// outbound writes; the origin detector matches it against the
	// configured self-origin tag.
	SyncSource string
}

// EventMeta returns the shared metadata.
func (m Meta) EventMeta() Meta { return m }

// ParsedEvent is one of the tagged payload variants produced by a source
// adapter.
type ParsedEvent interface {
	EventMeta() Meta
}

// ContactEvent is a contact create/update/tag-change event.
type ContactEvent struct {
	Meta
	ContactID     string
	Phone         string
	Email         string
	FirstName     string
	LastName      string
	OwnerID       string
	AssignedAgent string
	PipelineStage string
	CustomFields  map[string]string
}

// AppointmentEvent is an appointment lifecycle event.
type AppointmentEvent struct {
	Meta
	AppointmentID string
	ContactID     string
	Status        string
	Title         string
	StartTime     *time.Time
}

// CallEvent covers calls, recordings, transcriptions and voicemails.
type CallEvent struct {
	Meta
	CallID        string
	ContactID     string
	AgentID       string
	Direction     string
	Disposition   string
	DurationSec   int
	RecordingURL  string
	Transcription string
}

// MessageEvent is an SMS/MMS message event from the dialer.
type MessageEvent struct {
	Meta
	MessageID string
	ContactID string
	Direction string
	Body      string
	OptOut    bool
}

// BroadcastEvent is a broadcast-campaign delivery event from the dialer's
// analytics pipeline. It feeds the recompute job queue, not the sync path.
type BroadcastEvent struct {
	Meta
	BroadcastID     string
	ProviderEventID string
	EventType       string
}

// crmContactPayload mirrors the CRM's webhook body for contact events.
type crmContactPayload struct {
	ID            string            `json:"id"`
	Phone         string            `json:"phone"`
	Email         string            `json:"email"`
	FirstName     string            `json:"firstName"`
	LastName      string            `json:"lastName"`
	Tags          []string          `json:"tags"`
	AssignedTo    string            `json:"assignedTo"`
	PipelineStage string            `json:"pipelineStageName"`
	CustomFields  map[string]string `json:"customFields"`
	SyncSource    string            `json:"syncSource"`
}

type crmAppointmentPayload struct {
	ID         string     `json:"id"`
	ContactID  string     `json:"contactId"`
	Status     string     `json:"appointmentStatus"`
	Title      string     `json:"title"`
	StartTime  *time.Time `json:"startTime"`
	Tags       []string   `json:"tags"`
	SyncSource string     `json:"syncSource"`
}

// dialerContactPayload mirrors the dialer's webhook body for contact events.
type dialerContactPayload struct {
	ContactID   string   `json:"contact_id"`
	PhoneNumber string   `json:"phone_number"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	UserID      string   `json:"user_id"`
	TagList     []string `json:"tag_list"`
	SyncSource  string   `json:"sync_source"`
}

type dialerCallPayload struct {
	CallID        string   `json:"call_id"`
	ContactID     string   `json:"contact_id"`
	UserID        string   `json:"user_id"`
	Direction     string   `json:"direction"`
	Disposition   string   `json:"disposition"`
	Duration      int      `json:"duration"`
	RecordingURL  string   `json:"recording_url"`
	Transcription string   `json:"transcription_text"`
	TagList       []string `json:"tag_list"`
	SyncSource    string   `json:"sync_source"`
}

type dialerMessagePayload struct {
	MessageID  string   `json:"message_id"`
	ContactID  string   `json:"contact_id"`
	Direction  string   `json:"direction"`
	Body       string   `json:"body"`
	IsOptOut   bool     `json:"is_opt_out"`
	TagList    []string `json:"tag_list"`
	SyncSource string   `json:"sync_source"`
}

type dialerBroadcastPayload struct {
	BroadcastID string `json:"broadcast_id"`
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	SyncSource  string `json:"sync_source"`
}

// Parse translates an envelope's raw payload into its tagged variant using
// the per-source adapter. Unknown entity types return an error; the router
// treats that as a policy skip, never a failure.
func Parse(env Envelope) (ParsedEvent, error) {
	switch env.Source {
	case SourceCRM:
		return parseCRM(env)
	case SourceDialer:
		return parseDialer(env)
	default:
		return nil, fmt.Errorf("unknown source %q", env.Source)
	}
}

func parseCRM(env Envelope) (ParsedEvent, error) {
	switch env.EntityType {
	case EntityContact:
		var p crmContactPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("parse crm contact payload: %w", err)
		}
		return ContactEvent{
			Meta:          Meta{Tags: p.Tags, SyncSource: p.SyncSource},
			ContactID:     firstNonEmpty(p.ID, env.EntityID),
			Phone:         p.Phone,
			Email:         p.Email,
			FirstName:     p.FirstName,
			LastName:      p.LastName,
			OwnerID:       p.AssignedTo,
			AssignedAgent: p.CustomFields["assigned_agent"],
			PipelineStage: p.PipelineStage,
			CustomFields:  p.CustomFields,
		}, nil
	case EntityAppointment:
		var p crmAppointmentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("parse crm appointment payload: %w", err)
		}
		return AppointmentEvent{
			Meta:          Meta{Tags: p.Tags, SyncSource: p.SyncSource},
			AppointmentID: firstNonEmpty(p.ID, env.EntityID),
			ContactID:     p.ContactID,
			Status:        p.Status,
			Title:         p.Title,
			StartTime:     p.StartTime,
		}, nil
	default:
		return nil, fmt.Errorf("unhandled crm entity type %q", env.EntityType)
	}
}

func parseDialer(env Envelope) (ParsedEvent, error) {
	switch env.EntityType {
	case EntityContact:
		var p dialerContactPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("parse dialer contact payload: %w", err)
		}
		return ContactEvent{
			Meta:      Meta{Tags: p.TagList, SyncSource: p.SyncSource},
			ContactID: firstNonEmpty(p.ContactID, env.EntityID),
			Phone:     p.PhoneNumber,
			Email:     p.Email,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			OwnerID:   p.UserID,
		}, nil
	case EntityCall, EntityRecording, EntityTranscription, EntityVoicemail:
		var p dialerCallPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("parse dialer call payload: %w", err)
		}
		return CallEvent{
			Meta:          Meta{Tags: p.TagList, SyncSource: p.SyncSource},
			CallID:        firstNonEmpty(p.CallID, env.EntityID),
			ContactID:     p.ContactID,
			AgentID:       p.UserID,
			Direction:     p.Direction,
			Disposition:   p.Disposition,
			DurationSec:   p.Duration,
			RecordingURL:  p.RecordingURL,
			Transcription: p.Transcription,
		}, nil
	case EntityMessage:
		var p dialerMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("parse dialer message payload: %w", err)
		}
		return MessageEvent{
			Meta:      Meta{Tags: p.TagList, SyncSource: p.SyncSource},
			MessageID: firstNonEmpty(p.MessageID, env.EntityID),
			ContactID: p.ContactID,
			Direction: p.Direction,
			Body:      p.Body,
			OptOut:    p.IsOptOut,
		}, nil
	case EntityBroadcast:
		var p dialerBroadcastPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("parse dialer broadcast payload: %w", err)
		}
		return BroadcastEvent{
			Meta:            Meta{SyncSource: p.SyncSource},
			BroadcastID:     firstNonEmpty(p.BroadcastID, env.EntityID),
			ProviderEventID: p.EventID,
			EventType:       p.EventType,
		}, nil
	default:
		return nil, fmt.Errorf("unhandled dialer entity type %q", env.EntityType)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
