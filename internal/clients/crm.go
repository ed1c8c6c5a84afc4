package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"dialer_sync_backend/platform/apperr"
	"dialer_sync_backend/platform/config"
)

// CRMRESTClient is the GoHighLevel-style REST adapter for CRMClient.
type CRMRESTClient struct {
	rest       *restClient
	locationID string
}

// NewCRMClient creates a CRM REST client from config.
func NewCRMClient(cfg config.CRMConfig) *CRMRESTClient {
	return &CRMRESTClient{
		rest:       newRESTClient(cfg.GetCRMBaseURL(), "Bearer "+cfg.GetCRMAPIKey(), "Authorization"),
		locationID: cfg.GetCRMLocationID(),
	}
}

type crmContactEnvelope struct {
	Contact crmContact `json:"contact"`
}

type crmContact struct {
	ID           string            `json:"id"`
	Phone        string            `json:"phone"`
	Email        string            `json:"email"`
	FirstName    string            `json:"firstName"`
	LastName     string            `json:"lastName"`
	AssignedTo   string            `json:"assignedTo"`
	Tags         []string          `json:"tags"`
	CustomFields map[string]string `json:"customFields"`
}

// FetchContact implements CRMClient.
func (c *CRMRESTClient) FetchContact(ctx context.Context, id string) (Contact, error) {
	var env crmContactEnvelope
	if err := c.rest.doJSON(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), nil, &env); err != nil {
		return Contact{}, err
	}
	return Contact{
		ID:           env.Contact.ID,
		Phone:        env.Contact.Phone,
		Email:        env.Contact.Email,
		FirstName:    env.Contact.FirstName,
		LastName:     env.Contact.LastName,
		OwnerID:      env.Contact.AssignedTo,
		Tags:         env.Contact.Tags,
		CustomFields: env.Contact.CustomFields,
	}, nil
}

// UpdateContact implements CRMClient. The patch's SyncSource is written into
// a reserved custom field so the echo webhook is recognized.
func (c *CRMRESTClient) UpdateContact(ctx context.Context, id string, patch ContactPatch) error {
	body := map[string]any{}
	if patch.Phone != nil {
		body["phone"] = *patch.Phone
	}
	if patch.Email != nil {
		body["email"] = *patch.Email
	}
	if patch.FirstName != nil {
		body["firstName"] = *patch.FirstName
	}
	if patch.LastName != nil {
		body["lastName"] = *patch.LastName
	}
	custom := map[string]string{}
	for k, v := range patch.CustomFields {
		custom[k] = v
	}
	if patch.SyncSource != "" {
		custom["syncSource"] = patch.SyncSource
	}
	if len(custom) > 0 {
		body["customFields"] = custom
	}
	return c.rest.doJSON(ctx, http.MethodPut, "/contacts/"+url.PathEscape(id), body, nil)
}

// AddTagsToContact implements CRMClient.
func (c *CRMRESTClient) AddTagsToContact(ctx context.Context, id string, tags []string) error {
	body := map[string]any{"tags": tags}
	return c.rest.doJSON(ctx, http.MethodPost, "/contacts/"+url.PathEscape(id)+"/tags", body, nil)
}

// CreateNote implements CRMClient.
func (c *CRMRESTClient) CreateNote(ctx context.Context, contactID, noteBody string) error {
	body := map[string]any{"body": noteBody}
	return c.rest.doJSON(ctx, http.MethodPost, "/contacts/"+url.PathEscape(contactID)+"/notes", body, nil)
}

type crmReportingRecord struct {
	ID         string         `json:"id"`
	CampaignID string         `json:"campaignId"`
	Properties map[string]any `json:"properties"`
}

type crmReportingSearchResponse struct {
	Records []crmReportingRecord `json:"records"`
}

// FindReportingRecordByCampaign implements CRMClient.
func (c *CRMRESTClient) FindReportingRecordByCampaign(ctx context.Context, campaignID string) (ReportingRecord, error) {
	path := fmt.Sprintf("/objects/campaign-reports/records?locationId=%s&campaignId=%s",
		url.QueryEscape(c.locationID), url.QueryEscape(campaignID))
	var resp crmReportingSearchResponse
	if err := c.rest.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return ReportingRecord{}, err
	}
	if len(resp.Records) == 0 {
		return ReportingRecord{}, apperr.NotFound("reporting record not found")
	}
	rec := resp.Records[0]
	return ReportingRecord{ID: rec.ID, CampaignID: rec.CampaignID, Fields: rec.Properties}, nil
}

// CreateReportingRecord implements CRMClient.
func (c *CRMRESTClient) CreateReportingRecord(ctx context.Context, rec ReportingRecord) (string, error) {
	body := map[string]any{
		"locationId": c.locationID,
		"campaignId": rec.CampaignID,
		"properties": rec.Fields,
	}
	var created crmReportingRecord
	if err := c.rest.doJSON(ctx, http.MethodPost, "/objects/campaign-reports/records", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateReportingRecord implements CRMClient.
func (c *CRMRESTClient) UpdateReportingRecord(ctx context.Context, id string, rec ReportingRecord) error {
	body := map[string]any{"properties": rec.Fields}
	return c.rest.doJSON(ctx, http.MethodPut, "/objects/campaign-reports/records/"+url.PathEscape(id), body, nil)
}

var _ CRMClient = (*CRMRESTClient)(nil)
