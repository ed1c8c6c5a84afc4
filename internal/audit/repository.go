package audit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotQuarantined is returned when a lookup finds no quarantine row.
var ErrNotQuarantined = errors.New("event not quarantined")

// Repository provides data access for the sync log and quarantine tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts one sync log entry. The entry's ID is assigned here.
func (r *Repository) Append(ctx context.Context, entry Entry) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sync_log (direction, entity_type, entity_id, source_id, target_id, status, started_at, finished_at, message, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, entry.Direction, entry.EntityType, entry.EntityID, entry.SourceID, entry.TargetID,
		entry.Status, entry.StartedAt, entry.FinishedAt, entry.Message, entry.CorrelationID,
	).Scan(&id)
	return id, err
}

// ListByCorrelation returns all entries caused by one webhook event or job.
func (r *Repository) ListByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, direction, entity_type, entity_id, source_id, target_id, status, started_at, finished_at, message, correlation_id
		FROM sync_log
		WHERE correlation_id = $1
		ORDER BY started_at ASC
	`, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// List returns recent entries filtered by entity type and/or status.
// Empty filter values match everything.
func (r *Repository) List(ctx context.Context, entityType, status string, limit int) ([]Entry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, direction, entity_type, entity_id, source_id, target_id, status, started_at, finished_at, message, correlation_id
		FROM sync_log
		WHERE ($1 = '' OR entity_type = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3
	`, entityType, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.Direction, &e.EntityType, &e.EntityID, &e.SourceID, &e.TargetID,
			&e.Status, &e.StartedAt, &e.FinishedAt, &e.Message, &e.CorrelationID,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Quarantine excludes an event from all future processing. Re-quarantining
// the same event updates the reason.
func (r *Repository) Quarantine(ctx context.Context, eventID uuid.UUID, eventSource, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quarantine_events (event_id, event_source, reason, quarantined_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (event_id) DO UPDATE SET reason = EXCLUDED.reason
	`, eventID, eventSource, reason)
	return err
}

// Unquarantine lifts the exclusion so the event can be processed again.
// Returns ErrNotQuarantined when no quarantine row exists.
func (r *Repository) Unquarantine(ctx context.Context, eventID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM quarantine_events WHERE event_id = $1
	`, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotQuarantined
	}
	return nil
}

// IsQuarantined reports whether the given event id is quarantined.
func (r *Repository) IsQuarantined(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM quarantine_events WHERE event_id = $1)
	`, eventID).Scan(&exists)
	return exists, err
}

// ListQuarantined returns all quarantined events, newest first.
func (r *Repository) ListQuarantined(ctx context.Context) ([]QuarantinedEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, event_source, reason, quarantined_at
		FROM quarantine_events
		ORDER BY quarantined_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []QuarantinedEvent
	for rows.Next() {
		var q QuarantinedEvent
		if err := rows.Scan(&q.EventID, &q.EventSource, &q.Reason, &q.QuarantinedAt); err != nil {
			return nil, err
		}
		events = append(events, q)
	}
	return events, rows.Err()
}
