// Package compliance maintains the opt-out registry. An opted-out phone
// number is a hard override: it is consulted before every list-add decision
// and dominates every other enrollment rule.
package compliance

import (
	"context"
	"errors"
	"time"

	"dialer_sync_backend/platform/phone"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusOptedOut = "opted_out"
	StatusOptedIn  = "opted_in"
)

// OptoutRecord is one compliance ledger row, keyed by E.164 phone number.
type OptoutRecord struct {
	PhoneNumber string     `json:"phoneNumber"`
	Status      string     `json:"status"`
	Source      string     `json:"source"`
	Reason      *string    `json:"reason,omitempty"`
	LastEventAt *time.Time `json:"lastEventAt,omitempty"`
}

// Repository provides data access for the opt-out registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new compliance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record upserts a status transition for a phone number. The number is
// normalized so the same subscriber never occupies two rows.
func (r *Repository) Record(ctx context.Context, phoneNumber, status, source string, reason *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO optout_registry (phone_number, status, source, reason, last_event_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (phone_number) DO UPDATE SET
			status = EXCLUDED.status,
			source = EXCLUDED.source,
			reason = EXCLUDED.reason,
			last_event_at = now()
	`, phone.NormalizeE164(phoneNumber), status, source, reason)
	return err
}

// IsOptedOut reports whether a phone number is currently opted out.
// Unknown numbers are opted in.
func (r *Repository) IsOptedOut(ctx context.Context, phoneNumber string) (bool, error) {
	normalized := phone.NormalizeE164(phoneNumber)
	if normalized == "" {
		return false, nil
	}
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT status FROM optout_registry WHERE phone_number = $1
	`, normalized).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == StatusOptedOut, nil
}

// Get returns the ledger row for a phone number, if any.
func (r *Repository) Get(ctx context.Context, phoneNumber string) (OptoutRecord, bool, error) {
	var rec OptoutRecord
	err := r.pool.QueryRow(ctx, `
		SELECT phone_number, status, source, reason, last_event_at
		FROM optout_registry
		WHERE phone_number = $1
	`, phone.NormalizeE164(phoneNumber)).Scan(&rec.PhoneNumber, &rec.Status, &rec.Source, &rec.Reason, &rec.LastEventAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OptoutRecord{}, false, nil
	}
	if err != nil {
		return OptoutRecord{}, false, err
	}
	return rec, true, nil
}
