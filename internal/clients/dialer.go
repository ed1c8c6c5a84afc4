package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"dialer_sync_backend/platform/apperr"
	"dialer_sync_backend/platform/config"

	"golang.org/x/time/rate"
)

// DialerRESTClient is the Aloware-style REST adapter for DialerClient.
// All calls pass through a shared rate limiter because the dialer API
// throttles aggressively and a burst of list reconciliations would
// otherwise trip it.
type DialerRESTClient struct {
	rest    *restClient
	limiter *rate.Limiter
}

// NewDialerClient creates a dialer REST client from config.
func NewDialerClient(cfg config.DialerConfig) *DialerRESTClient {
	rps := cfg.GetDialerRateLimitRPS()
	if rps <= 0 {
		rps = 5
	}
	return &DialerRESTClient{
		rest:    newRESTClient(cfg.GetDialerBaseURL(), cfg.GetDialerAPIKey(), "X-Api-Key"),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

func (c *DialerRESTClient) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

type dialerContact struct {
	ID        int      `json:"id"`
	Phone     string   `json:"phone_number"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	UserID    int      `json:"user_id"`
	TagList   []string `json:"tag_list"`
}

// FetchContact implements DialerClient.
func (c *DialerRESTClient) FetchContact(ctx context.Context, id string) (Contact, error) {
	if err := c.wait(ctx); err != nil {
		return Contact{}, err
	}
	var dc dialerContact
	if err := c.rest.doJSON(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), nil, &dc); err != nil {
		return Contact{}, err
	}
	return Contact{
		ID:        strconv.Itoa(dc.ID),
		Phone:     dc.Phone,
		Email:     dc.Email,
		FirstName: dc.FirstName,
		LastName:  dc.LastName,
		OwnerID:   strconv.Itoa(dc.UserID),
		Tags:      dc.TagList,
	}, nil
}

// FindContactByPhone implements DialerClient. The dialer's search endpoint
// returns a page of matches; the first exact match wins.
func (c *DialerRESTClient) FindContactByPhone(ctx context.Context, phone string) (Contact, error) {
	if err := c.wait(ctx); err != nil {
		return Contact{}, err
	}
	var page struct {
		Data []dialerContact `json:"data"`
	}
	path := "/contacts?phone_number=" + url.QueryEscape(phone)
	if err := c.rest.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return Contact{}, err
	}
	if len(page.Data) == 0 {
		return Contact{}, apperr.NotFound("dialer contact not found for phone")
	}
	dc := page.Data[0]
	return Contact{
		ID:        strconv.Itoa(dc.ID),
		Phone:     dc.Phone,
		Email:     dc.Email,
		FirstName: dc.FirstName,
		LastName:  dc.LastName,
		OwnerID:   strconv.Itoa(dc.UserID),
		Tags:      dc.TagList,
	}, nil
}

// CreateContact implements DialerClient.
func (c *DialerRESTClient) CreateContact(ctx context.Context, contact Contact) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	body := map[string]any{
		"phone_number": contact.Phone,
		"email":        contact.Email,
		"first_name":   contact.FirstName,
		"last_name":    contact.LastName,
	}
	if len(contact.Tags) > 0 {
		body["tag_list"] = contact.Tags
	}
	var dc dialerContact
	if err := c.rest.doJSON(ctx, http.MethodPost, "/contacts", body, &dc); err != nil {
		return "", err
	}
	return strconv.Itoa(dc.ID), nil
}

// UpdateContact implements DialerClient. The SyncSource marker rides along
// as a tag because the dialer has no free-form custom fields.
func (c *DialerRESTClient) UpdateContact(ctx context.Context, id string, patch ContactPatch) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	body := map[string]any{}
	if patch.Phone != nil {
		body["phone_number"] = *patch.Phone
	}
	if patch.Email != nil {
		body["email"] = *patch.Email
	}
	if patch.FirstName != nil {
		body["first_name"] = *patch.FirstName
	}
	if patch.LastName != nil {
		body["last_name"] = *patch.LastName
	}
	if patch.SyncSource != "" {
		body["tag_list"] = []string{patch.SyncSource}
		body["sync_source"] = patch.SyncSource
	}
	return c.rest.doJSON(ctx, http.MethodPut, "/contacts/"+url.PathEscape(id), body, nil)
}

type dialerCall struct {
	ID            int    `json:"id"`
	ContactID     int    `json:"contact_id"`
	UserID        int    `json:"user_id"`
	Direction     string `json:"direction"`
	Disposition   string `json:"disposition"`
	Duration      int    `json:"duration"`
	RecordingURL  string `json:"recording_url"`
	Transcription string `json:"transcription_text"`
}

// FetchCall implements DialerClient.
func (c *DialerRESTClient) FetchCall(ctx context.Context, id string) (CallRecord, error) {
	if err := c.wait(ctx); err != nil {
		return CallRecord{}, err
	}
	var call dialerCall
	if err := c.rest.doJSON(ctx, http.MethodGet, "/calls/"+url.PathEscape(id), nil, &call); err != nil {
		return CallRecord{}, err
	}
	return CallRecord{
		ID:            strconv.Itoa(call.ID),
		ContactID:     strconv.Itoa(call.ContactID),
		AgentID:       strconv.Itoa(call.UserID),
		Direction:     call.Direction,
		Disposition:   call.Disposition,
		DurationSec:   call.Duration,
		RecordingURL:  call.RecordingURL,
		Transcription: call.Transcription,
	}, nil
}

type dialerList struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Size int    `json:"contact_count"`
}

// GetCallList implements DialerClient.
func (c *DialerRESTClient) GetCallList(ctx context.Context, id string) (CallList, error) {
	if err := c.wait(ctx); err != nil {
		return CallList{}, err
	}
	var list dialerList
	if err := c.rest.doJSON(ctx, http.MethodGet, "/power-dialer/lists/"+url.PathEscape(id), nil, &list); err != nil {
		return CallList{}, err
	}
	return CallList{ID: strconv.Itoa(list.ID), Name: list.Name, Size: list.Size}, nil
}

// CreateCallList implements DialerClient.
func (c *DialerRESTClient) CreateCallList(ctx context.Context, spec CallListSpec) (CallList, error) {
	if err := c.wait(ctx); err != nil {
		return CallList{}, err
	}
	body := map[string]any{"name": spec.Name, "description": spec.Description}
	var list dialerList
	if err := c.rest.doJSON(ctx, http.MethodPost, "/power-dialer/lists", body, &list); err != nil {
		return CallList{}, err
	}
	return CallList{ID: strconv.Itoa(list.ID), Name: list.Name}, nil
}

// AddContactToList implements DialerClient. The dialer treats re-adding an
// existing member as a no-op, which keeps this call idempotent.
func (c *DialerRESTClient) AddContactToList(ctx context.Context, listID, contactID string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	body := map[string]any{"contact_id": contactID}
	return c.rest.doJSON(ctx, http.MethodPost, "/power-dialer/lists/"+url.PathEscape(listID)+"/contacts", body, nil)
}

// RemoveContactFromList implements DialerClient.
func (c *DialerRESTClient) RemoveContactFromList(ctx context.Context, listID, contactID string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.rest.doJSON(ctx, http.MethodDelete,
		"/power-dialer/lists/"+url.PathEscape(listID)+"/contacts/"+url.PathEscape(contactID), nil, nil)
}

var _ DialerClient = (*DialerRESTClient)(nil)
