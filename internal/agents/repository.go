package agents

import (
	"context"
	"errors"
	"time"

	"dialer_sync_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// State is the last-known ownership snapshot for a contact.
type State struct {
	ContactID      string     `json:"contactId"`
	AgentKey       string     `json:"agentKey"`
	LastListStatus *string    `json:"lastListStatus,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// StateRepository provides data access for contact agent state.
type StateRepository struct {
	pool *pgxpool.Pool
}

// NewStateRepository creates a new agent-state repository.
func NewStateRepository(pool *pgxpool.Pool) *StateRepository {
	return &StateRepository{pool: pool}
}

// Get returns the stored ownership snapshot for a contact.
func (r *StateRepository) Get(ctx context.Context, contactID string) (State, error) {
	var s State
	err := r.pool.QueryRow(ctx, `
		SELECT contact_id, agent_key, last_list_status, updated_at
		FROM contact_agent_state
		WHERE contact_id = $1
	`, contactID).Scan(&s.ContactID, &s.AgentKey, &s.LastListStatus, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, apperr.NotFound("contact agent state not found")
	}
	return s, err
}

// Upsert stores the resolved agent for a contact. The contact id primary
// key serializes concurrent writers; last writer wins.
func (r *StateRepository) Upsert(ctx context.Context, contactID, agentKey string, lastListStatus *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contact_agent_state (contact_id, agent_key, last_list_status, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (contact_id) DO UPDATE SET
			agent_key = EXCLUDED.agent_key,
			last_list_status = COALESCE(EXCLUDED.last_list_status, contact_agent_state.last_list_status),
			updated_at = now()
	`, contactID, agentKey, lastListStatus)
	return err
}
