package agents

import (
	"context"

	"dialer_sync_backend/platform/apperr"
)

// StateStore is the persistence surface the service needs.
type StateStore interface {
	Get(ctx context.Context, contactID string) (State, error)
	Upsert(ctx context.Context, contactID, agentKey string, lastListStatus *string) error
}

// Reassignment is the outcome of comparing a resolved agent against the
// stored snapshot.
type Reassignment struct {
	Changed          bool
	PreviousAgentKey string
}

// Service combines agent resolution with reassignment tracking.
type Service struct {
	resolver *Resolver
	store    StateStore
}

// NewService creates a new agents service.
func NewService(resolver *Resolver, store StateStore) *Service {
	return &Service{resolver: resolver, store: store}
}

// Resolve returns the agent key for a contact profile.
func (s *Service) Resolve(c ContactProfile) string {
	return s.resolver.Resolve(c)
}

// State returns the last-known ownership snapshot for a contact.
func (s *Service) State(ctx context.Context, contactID string) (State, error) {
	return s.store.Get(ctx, contactID)
}

// DetectReassignment compares the resolved agent against the last-known
// snapshot. A contact seen for the first time is not a reassignment.
func (s *Service) DetectReassignment(ctx context.Context, contactID, resolvedAgentKey string) (Reassignment, error) {
	state, err := s.store.Get(ctx, contactID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return Reassignment{}, nil
		}
		return Reassignment{}, err
	}
	if state.AgentKey == resolvedAgentKey {
		return Reassignment{}, nil
	}
	return Reassignment{Changed: true, PreviousAgentKey: state.AgentKey}, nil
}

// CommitState records the resolved agent as the new last-known snapshot.
// Callers invoke this only after membership transfer has completed, so a
// failed transfer is retried from the previous snapshot.
func (s *Service) CommitState(ctx context.Context, contactID, agentKey string, lastListStatus *string) error {
	return s.store.Upsert(ctx, contactID, agentKey, lastListStatus)
}
