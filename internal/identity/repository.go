// Package identity maintains the contact identity bridge between CRM and
// dialer contact ids. Mappings are discovered from webhook traffic and
// upserted; they are never hard-deleted.
package identity

import (
	"context"
	"errors"
	"time"

	"dialer_sync_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Mapping is one identity bridge row. The CRM contact id is always set; the
// dialer id may lag until the dialer side has seen the contact.
type Mapping struct {
	CRMContactID    string     `json:"crmContactId"`
	DialerContactID *string    `json:"dialerContactId,omitempty"`
	PhoneNumber     *string    `json:"phoneNumber,omitempty"`
	Email           *string    `json:"email,omitempty"`
	SyncDirection   string     `json:"syncDirection"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
}

// Repository provides data access for contact mappings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new identity repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert records a newly discovered mapping. The unique constraint on the
// CRM contact id is the serialization point: concurrent discoveries of the
// same contact converge on one row.
func (r *Repository) Upsert(ctx context.Context, m Mapping) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contact_mappings (crm_contact_id, dialer_contact_id, phone_number, email, sync_direction, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (crm_contact_id) DO UPDATE SET
			dialer_contact_id = COALESCE(EXCLUDED.dialer_contact_id, contact_mappings.dialer_contact_id),
			phone_number = COALESCE(EXCLUDED.phone_number, contact_mappings.phone_number),
			email = COALESCE(EXCLUDED.email, contact_mappings.email),
			sync_direction = EXCLUDED.sync_direction,
			last_synced_at = now()
	`, m.CRMContactID, m.DialerContactID, m.PhoneNumber, m.Email, m.SyncDirection)
	return err
}

// GetByCRMID returns the mapping for a CRM contact id.
func (r *Repository) GetByCRMID(ctx context.Context, crmContactID string) (Mapping, error) {
	return r.get(ctx, `WHERE crm_contact_id = $1`, crmContactID)
}

// GetByDialerID returns the mapping for a dialer contact id.
func (r *Repository) GetByDialerID(ctx context.Context, dialerContactID string) (Mapping, error) {
	return r.get(ctx, `WHERE dialer_contact_id = $1`, dialerContactID)
}

// GetByPhone returns the mapping for a normalized phone number.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (Mapping, error) {
	return r.get(ctx, `WHERE phone_number = $1`, phone)
}

func (r *Repository) get(ctx context.Context, where string, arg any) (Mapping, error) {
	var m Mapping
	err := r.pool.QueryRow(ctx, `
		SELECT crm_contact_id, dialer_contact_id, phone_number, email, sync_direction, last_synced_at
		FROM contact_mappings `+where, arg,
	).Scan(&m.CRMContactID, &m.DialerContactID, &m.PhoneNumber, &m.Email, &m.SyncDirection, &m.LastSyncedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Mapping{}, apperr.NotFound("contact mapping not found")
	}
	return m, err
}
