// Package clients provides the capability interfaces for the CRM and the
// power-dialer, plus their REST adapters. Core packages depend only on the
// interfaces; errors returned are typed apperr kinds so callers decide
// retry-vs-skip on structured data, never on message contents.
package clients

import "context"

// Contact is the cross-system contact shape.
type Contact struct {
	ID           string
	Phone        string
	Email        string
	FirstName    string
	LastName     string
	OwnerID      string
	Tags         []string
	CustomFields map[string]string
}

// ContactPatch is a partial contact update. Nil fields are left untouched.
type ContactPatch struct {
	Phone        *string
	Email        *string
	FirstName    *string
	LastName     *string
	CustomFields map[string]string
	// SyncSource stamps the write so the echo webhook is recognized as
	// self-originated.
	SyncSource string
}

// CallRecord is a dialer call with its attachments.
type CallRecord struct {
	ID            string
	ContactID     string
	AgentID       string
	Direction     string
	Disposition   string
	DurationSec   int
	RecordingURL  string
	Transcription string
}

// CallList is a dialer power-dial list.
type CallList struct {
	ID   string
	Name string
	Size int
}

// CallListSpec describes a list to create.
type CallListSpec struct {
	Name        string
	Description string
}

// ReportingRecord is the campaign analytics object pushed into the CRM.
type ReportingRecord struct {
	ID         string
	CampaignID string
	Fields     map[string]any
}

// CRMClient is the capability interface for the CRM (contacts, appointments,
// notes, reporting records).
type CRMClient interface {
	FetchContact(ctx context.Context, id string) (Contact, error)
	UpdateContact(ctx context.Context, id string, patch ContactPatch) error
	AddTagsToContact(ctx context.Context, id string, tags []string) error
	CreateNote(ctx context.Context, contactID, body string) error

	// FindReportingRecordByCampaign returns apperr.KindNotFound when no
	// record exists for the campaign.
	FindReportingRecordByCampaign(ctx context.Context, campaignID string) (ReportingRecord, error)
	// CreateReportingRecord returns apperr.KindConflict when a concurrent
	// creator won the race; callers fall back to update.
	CreateReportingRecord(ctx context.Context, rec ReportingRecord) (string, error)
	UpdateReportingRecord(ctx context.Context, id string, rec ReportingRecord) error
}

// DialerClient is the capability interface for the power-dialer (contacts,
// calls, call lists).
type DialerClient interface {
	FetchContact(ctx context.Context, id string) (Contact, error)
	// FindContactByPhone returns apperr.KindNotFound when the dialer has
	// no contact with that number.
	FindContactByPhone(ctx context.Context, phone string) (Contact, error)
	CreateContact(ctx context.Context, contact Contact) (string, error)
	UpdateContact(ctx context.Context, id string, patch ContactPatch) error
	FetchCall(ctx context.Context, id string) (CallRecord, error)

	GetCallList(ctx context.Context, id string) (CallList, error)
	CreateCallList(ctx context.Context, spec CallListSpec) (CallList, error)
	AddContactToList(ctx context.Context, listID, contactID string) error
	RemoveContactFromList(ctx context.Context, listID, contactID string) error
}
