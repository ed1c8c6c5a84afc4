package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the analytics store's transactional tables. It runs on
// its own bounded pool so heavy aggregates never contend with the primary
// store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository over the analytics pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecipientCounts returns sent/delivered/failed recipient totals for a
// broadcast.
func (r *Repository) RecipientCounts(ctx context.Context, broadcastID string) (sent, delivered, failed int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status IN ('sent', 'delivered')),
			count(*) FILTER (WHERE status = 'delivered'),
			count(*) FILTER (WHERE status = 'failed')
		FROM broadcast_recipients
		WHERE broadcast_id = $1
	`, broadcastID).Scan(&sent, &delivered, &failed)
	return sent, delivered, failed, err
}

// ResponseCount returns the number of distinct recipients who replied
// within the attribution window after their send.
func (r *Repository) ResponseCount(ctx context.Context, broadcastID string, window time.Duration) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT br.phone_number)
		FROM broadcast_recipients br
		JOIN inbound_responses ir ON ir.phone_number = br.phone_number
		WHERE br.broadcast_id = $1
		  AND ir.responded_at >= br.sent_at
		  AND ir.responded_at < br.sent_at + $2::interval
	`, broadcastID, window.String()).Scan(&count)
	return count, err
}

// AppointmentCount returns the number of distinct responders who went on
// to book an appointment after replying.
func (r *Repository) AppointmentCount(ctx context.Context, broadcastID string, window time.Duration) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT br.phone_number)
		FROM broadcast_recipients br
		JOIN inbound_responses ir ON ir.phone_number = br.phone_number
		JOIN booked_appointments ba ON ba.contact_phone = br.phone_number
		WHERE br.broadcast_id = $1
		  AND ir.responded_at >= br.sent_at
		  AND ir.responded_at < br.sent_at + $2::interval
		  AND ba.booked_at >= ir.responded_at
	`, broadcastID, window.String()).Scan(&count)
	return count, err
}
