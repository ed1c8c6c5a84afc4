package scheduler

import (
	"context"
	"encoding/json"
	"errors"

	"dialer_sync_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Job lifecycle states.
const (
	JobPending = "pending"
	JobDone    = "done"
	JobFailed  = "failed"
)

// BroadcastJob is one admitted recompute job row.
type BroadcastJob struct {
	ID          uuid.UUID       `json:"id"`
	BroadcastID string          `json:"broadcastId"`
	EventType   string          `json:"eventType"`
	DedupeKey   string          `json:"dedupeKey"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload"`
}

// Repository provides data access for the broadcast job store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new scheduler repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Admit inserts a job row behind the dedupe-key unique constraint. A
// collision means an equivalent job is already queued; the caller gets
// admitted=false and must not enqueue again.
func (r *Repository) Admit(ctx context.Context, broadcastID, eventType, dedupeKey string, payload json.RawMessage) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO broadcast_webhook_events (broadcast_id, event_type, dedupe_key, status, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING id
	`, broadcastID, eventType, dedupeKey, JobPending, payload).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// GetByID returns one job row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (BroadcastJob, error) {
	var job BroadcastJob
	err := r.pool.QueryRow(ctx, `
		SELECT id, broadcast_id, event_type, dedupe_key, status, payload
		FROM broadcast_webhook_events
		WHERE id = $1
	`, id).Scan(&job.ID, &job.BroadcastID, &job.EventType, &job.DedupeKey, &job.Status, &job.Payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return BroadcastJob{}, apperr.NotFound("broadcast job not found")
	}
	return job, err
}

// MarkDone records successful completion.
func (r *Repository) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE broadcast_webhook_events SET status = $2, processed_at = now() WHERE id = $1
	`, id, JobDone)
	return err
}

// MarkFailed records permanent failure after retries are exhausted.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE broadcast_webhook_events SET status = $2, error_message = $3, processed_at = now() WHERE id = $1
	`, id, JobFailed, message)
	return err
}
