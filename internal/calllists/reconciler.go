package calllists

import (
	"context"
	"fmt"

	"dialer_sync_backend/internal/clients"
	"dialer_sync_backend/platform/logger"
	"dialer_sync_backend/platform/metrics"
)

// RegistryStore is the registry persistence surface the reconciler needs.
type RegistryStore interface {
	GetOrCreate(ctx context.Context, agentKey, listKey, listName string) (RegistryRow, error)
	SetDialerListID(ctx context.Context, agentKey, listKey, dialerListID string) (string, error)
}

// MembershipStore is the ledger persistence surface the reconciler needs.
type MembershipStore interface {
	Upsert(ctx context.Context, contactID, agentKey, listKey, status string, reason *string) error
	ActiveListKeys(ctx context.Context, contactID, agentKey string) ([]string, error)
	ActiveMemberships(ctx context.Context, contactID string) ([]Membership, error)
}

// DialerListAPI is the slice of the dialer client the reconciler consumes.
type DialerListAPI interface {
	CreateCallList(ctx context.Context, spec clients.CallListSpec) (clients.CallList, error)
	AddContactToList(ctx context.Context, listID, contactID string) error
	RemoveContactFromList(ctx context.Context, listID, contactID string) error
}

// Reconciler converts desired list membership into minimal add/remove
// operations against the dialer, tracked in the membership ledger.
type Reconciler struct {
	registry    RegistryStore
	memberships MembershipStore
	dialer      DialerListAPI
	log         *logger.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(registry RegistryStore, memberships MembershipStore, dialer DialerListAPI, log *logger.Logger) *Reconciler {
	return &Reconciler{registry: registry, memberships: memberships, dialer: dialer, log: log}
}

// Apply issues the add/remove operations implied by an intent for one
// agent. Adds and removes are computed as a set difference against current
// active memberships so a redelivered event never produces duplicate
// remote list entries.
func (r *Reconciler) Apply(ctx context.Context, contactID, dialerContactID, agentKey string, intent Intent, reason *string) error {
	active, err := r.memberships.ActiveListKeys(ctx, contactID, agentKey)
	if err != nil {
		return fmt.Errorf("load active memberships: %w", err)
	}
	activeSet := make(map[string]bool, len(active))
	for _, key := range active {
		activeSet[key] = true
	}

	for _, key := range intent.Add {
		if activeSet[key] {
			continue
		}
		if err := r.addToList(ctx, contactID, dialerContactID, agentKey, key, reason); err != nil {
			return err
		}
	}
	for _, key := range intent.Remove {
		if !activeSet[key] {
			continue
		}
		if err := r.removeFromList(ctx, contactID, dialerContactID, agentKey, key, reason); err != nil {
			return err
		}
	}
	return nil
}

// Transfer moves a contact from one agent's lists to the equivalent lists
// of another. Removals complete before any add so the contact is never
// active under two agents at once. An opted-out contact is only removed;
// opt-out dominates every list-add decision, including transfers.
func (r *Reconciler) Transfer(ctx context.Context, contactID, dialerContactID, previousAgentKey, newAgentKey string, optedOut bool, reason *string) error {
	memberships, err := r.memberships.ActiveMemberships(ctx, contactID)
	if err != nil {
		return fmt.Errorf("load memberships for transfer: %w", err)
	}

	var transferKeys []string
	for _, m := range memberships {
		if m.AgentKey != previousAgentKey {
			continue
		}
		if err := r.removeFromList(ctx, contactID, dialerContactID, m.AgentKey, m.ListKey, reason); err != nil {
			return err
		}
		transferKeys = append(transferKeys, m.ListKey)
	}
	if optedOut {
		return nil
	}
	for _, key := range transferKeys {
		if err := r.addToList(ctx, contactID, dialerContactID, newAgentKey, key, reason); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) addToList(ctx context.Context, contactID, dialerContactID, agentKey, listKey string, reason *string) error {
	listID, err := r.ensureList(ctx, agentKey, listKey)
	if err != nil {
		metrics.ListReconcileOpsTotal.WithLabelValues("add", "error").Inc()
		return err
	}
	if dialerContactID != "" {
		if err := r.dialer.AddContactToList(ctx, listID, dialerContactID); err != nil {
			metrics.ListReconcileOpsTotal.WithLabelValues("add", "error").Inc()
			return fmt.Errorf("add contact %s to list %s: %w", contactID, listKey, err)
		}
	}
	if err := r.memberships.Upsert(ctx, contactID, agentKey, listKey, MembershipActive, reason); err != nil {
		return err
	}
	metrics.ListReconcileOpsTotal.WithLabelValues("add", "success").Inc()
	r.log.WithContext(ctx).Info("contact added to call list",
		"contact_id", contactID, "agent_key", agentKey, "list_key", listKey)
	return nil
}

func (r *Reconciler) removeFromList(ctx context.Context, contactID, dialerContactID, agentKey, listKey string, reason *string) error {
	row, err := r.registry.GetOrCreate(ctx, agentKey, listKey, listName(agentKey, listKey))
	if err != nil {
		metrics.ListReconcileOpsTotal.WithLabelValues("remove", "error").Inc()
		return err
	}
	// A registry row without a remote id means the list was never created;
	// only the ledger needs correcting.
	if row.DialerListID != nil && dialerContactID != "" {
		if err := r.dialer.RemoveContactFromList(ctx, *row.DialerListID, dialerContactID); err != nil {
			metrics.ListReconcileOpsTotal.WithLabelValues("remove", "error").Inc()
			return fmt.Errorf("remove contact %s from list %s: %w", contactID, listKey, err)
		}
	}
	if err := r.memberships.Upsert(ctx, contactID, agentKey, listKey, MembershipRemoved, reason); err != nil {
		return err
	}
	metrics.ListReconcileOpsTotal.WithLabelValues("remove", "success").Inc()
	r.log.WithContext(ctx).Info("contact removed from call list",
		"contact_id", contactID, "agent_key", agentKey, "list_key", listKey)
	return nil
}

// ensureList resolves a list key to a concrete dialer list id, creating
// the remote list lazily. A creation race is settled by the registry: the
// first recorded id wins and later creators adopt it.
func (r *Reconciler) ensureList(ctx context.Context, agentKey, listKey string) (string, error) {
	name := listName(agentKey, listKey)
	row, err := r.registry.GetOrCreate(ctx, agentKey, listKey, name)
	if err != nil {
		return "", err
	}
	if row.DialerListID != nil {
		return *row.DialerListID, nil
	}

	created, err := r.dialer.CreateCallList(ctx, clients.CallListSpec{
		Name:        name,
		Description: fmt.Sprintf("Managed list %s for agent %s", listKey, agentKey),
	})
	if err != nil {
		return "", fmt.Errorf("create dialer list %s: %w", name, err)
	}
	return r.registry.SetDialerListID(ctx, agentKey, listKey, created.ID)
}

func listName(agentKey, listKey string) string {
	return fmt.Sprintf("%s - %s", agentKey, listKey)
}
