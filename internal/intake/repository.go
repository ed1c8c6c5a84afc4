package intake

import (
	"context"
	"errors"

	"dialer_sync_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides data access for admitted webhook events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new intake repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert attempts to admit an event. The unique constraint on dedupe_key is
// the entire idempotency mechanism: a conflict means the event was already
// admitted, and the existing row's id is returned with admitted=false.
func (r *Repository) Insert(ctx context.Context, env Envelope, dedupeKey string) (AdmitResult, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (source, event_type, entity_type, entity_id, raw_payload, dedupe_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING id
	`, env.Source, env.EventType, env.EntityType, env.EntityID, []byte(env.Payload), dedupeKey).Scan(&id)

	if err == nil {
		return AdmitResult{Admitted: true, EventID: id}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return AdmitResult{}, err
	}

	// Duplicate delivery: surface the id of the event that won admission.
	err = r.pool.QueryRow(ctx, `
		SELECT id FROM webhook_events WHERE dedupe_key = $1
	`, dedupeKey).Scan(&id)
	if err != nil {
		return AdmitResult{}, err
	}
	return AdmitResult{Admitted: false, EventID: id}, nil
}

// GetByID returns one webhook event.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (WebhookEvent, error) {
	var ev WebhookEvent
	err := r.pool.QueryRow(ctx, `
		SELECT id, received_at, source, event_type, entity_type, entity_id, raw_payload, dedupe_key, status, error_message, processed_at
		FROM webhook_events
		WHERE id = $1
	`, id).Scan(
		&ev.ID, &ev.ReceivedAt, &ev.Source, &ev.EventType, &ev.EntityType, &ev.EntityID,
		&ev.RawPayload, &ev.DedupeKey, &ev.Status, &ev.ErrorMessage, &ev.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return WebhookEvent{}, apperr.NotFound("webhook event not found")
	}
	return ev, err
}

// MarkProcessing claims an event for processing. Errored events can be
// reclaimed so manual retries re-drive them. Returns false when the event is
// already claimed or terminal, which callers treat as a no-op.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_events SET status = 'processing'
		WHERE id = $1 AND status IN ('pending', 'error')
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDone transitions an event to done and stamps processed_at.
func (r *Repository) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_events SET status = 'done', error_message = NULL, processed_at = now()
		WHERE id = $1
	`, id)
	return err
}

// MarkError transitions an event to error with the handler's message. The
// row stays available for manual or scheduled retry.
func (r *Repository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_events SET status = 'error', error_message = $2, processed_at = now()
		WHERE id = $1
	`, id, message)
	return err
}

// ListByStatus returns events in the given status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]WebhookEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, received_at, source, event_type, entity_type, entity_id, raw_payload, dedupe_key, status, error_message, processed_at
		FROM webhook_events
		WHERE status = $1
		ORDER BY received_at ASC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []WebhookEvent
	for rows.Next() {
		var ev WebhookEvent
		if err := rows.Scan(
			&ev.ID, &ev.ReceivedAt, &ev.Source, &ev.EventType, &ev.EntityType, &ev.EntityID,
			&ev.RawPayload, &ev.DedupeKey, &ev.Status, &ev.ErrorMessage, &ev.ProcessedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
