package calllists

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistryRepository provides data access for the list registry.
type RegistryRepository struct {
	pool *pgxpool.Pool
}

// NewRegistryRepository creates a new registry repository.
func NewRegistryRepository(pool *pgxpool.Pool) *RegistryRepository {
	return &RegistryRepository{pool: pool}
}

// GetOrCreate returns the registry row for (agentKey, listKey), inserting
// it first if absent. The unique constraint makes concurrent first uses
// converge on one row.
func (r *RegistryRepository) GetOrCreate(ctx context.Context, agentKey, listKey, listName string) (RegistryRow, error) {
	var row RegistryRow
	err := r.pool.QueryRow(ctx, `
		INSERT INTO call_list_registry (agent_key, list_key, dialer_list_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_key, list_key) DO UPDATE SET dialer_list_name = call_list_registry.dialer_list_name
		RETURNING agent_key, list_key, dialer_list_id, dialer_list_name
	`, agentKey, listKey, listName).Scan(&row.AgentKey, &row.ListKey, &row.DialerListID, &row.DialerListName)
	return row, err
}

// SetDialerListID records the remote list id after lazy creation. The
// first writer wins; a concurrent creator's id is kept if already present.
func (r *RegistryRepository) SetDialerListID(ctx context.Context, agentKey, listKey, dialerListID string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		UPDATE call_list_registry
		SET dialer_list_id = COALESCE(dialer_list_id, $3)
		WHERE agent_key = $1 AND list_key = $2
		RETURNING dialer_list_id
	`, agentKey, listKey, dialerListID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return dialerListID, nil
	}
	return id, err
}

// MembershipRepository provides data access for the membership ledger.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository creates a new membership repository.
func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// Upsert records the desired membership state for (contact, agent, list).
func (r *MembershipRepository) Upsert(ctx context.Context, contactID, agentKey, listKey, status string, reason *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contact_list_memberships (contact_id, agent_key, list_key, status, reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (contact_id, agent_key, list_key) DO UPDATE SET
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			updated_at = now()
	`, contactID, agentKey, listKey, status, reason)
	return err
}

// ActiveListKeys returns the list keys the contact is active on for one agent.
func (r *MembershipRepository) ActiveListKeys(ctx context.Context, contactID, agentKey string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT list_key FROM contact_list_memberships
		WHERE contact_id = $1 AND agent_key = $2 AND status = $3
		ORDER BY list_key
	`, contactID, agentKey, MembershipActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ActiveMemberships returns every active membership for a contact across
// all agents. Used by reassignment transfer.
func (r *MembershipRepository) ActiveMemberships(ctx context.Context, contactID string) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT contact_id, agent_key, list_key, status, reason, updated_at
		FROM contact_list_memberships
		WHERE contact_id = $1 AND status = $2
		ORDER BY agent_key, list_key
	`, contactID, MembershipActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ContactID, &m.AgentKey, &m.ListKey, &m.Status, &m.Reason, &m.UpdatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}
