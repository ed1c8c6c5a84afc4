package agents

import (
	"context"
	"testing"

	"dialer_sync_backend/platform/apperr"
)

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	dir, err := NewDirectory([]DirectoryEntry{
		{AgentKey: "AGENT_SMITH", OwnerIDs: []string{"user-7"}, AgentNames: []string{"John Smith"}, TagPatterns: []string{"agent:smith"}},
		{AgentKey: "AGENT_JONES", OwnerIDs: []string{"user-9"}, AgentNames: []string{"Mary Jones"}, TagPatterns: []string{"jones-*"}},
	})
	if err != nil {
		t.Fatalf("build directory: %v", err)
	}
	return dir
}

func TestResolvePrecedence(t *testing.T) {
	resolver := NewResolver(testDirectory(t))

	tests := []struct {
		name    string
		profile ContactProfile
		want    string
	}{
		{
			name:    "owner id wins over everything",
			profile: ContactProfile{OwnerID: "user-7", AssignedAgent: "Mary Jones", Tags: []string{"jones-west"}},
			want:    "AGENT_SMITH",
		},
		{
			name:    "assigned agent field when owner unknown",
			profile: ContactProfile{OwnerID: "user-999", AssignedAgent: "mary jones"},
			want:    "AGENT_JONES",
		},
		{
			name:    "tag pattern as last resort",
			profile: ContactProfile{Tags: []string{"vip", "jones-east"}},
			want:    "AGENT_JONES",
		},
		{
			name:    "exact tag pattern",
			profile: ContactProfile{Tags: []string{"Agent:Smith"}},
			want:    "AGENT_SMITH",
		},
		{
			name:    "no match falls back to unassigned",
			profile: ContactProfile{OwnerID: "user-1", AssignedAgent: "Nobody", Tags: []string{"cold"}},
			want:    UnassignedKey,
		},
		{
			name:    "empty profile never drops the contact",
			profile: ContactProfile{},
			want:    UnassignedKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolver.Resolve(tt.profile); got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeStateStore struct {
	states map[string]State
}

func (s *fakeStateStore) Get(_ context.Context, contactID string) (State, error) {
	state, ok := s.states[contactID]
	if !ok {
		return State{}, apperr.NotFound("no state")
	}
	return state, nil
}

func (s *fakeStateStore) Upsert(_ context.Context, contactID, agentKey string, _ *string) error {
	s.states[contactID] = State{ContactID: contactID, AgentKey: agentKey}
	return nil
}

func TestDetectReassignment(t *testing.T) {
	store := &fakeStateStore{states: map[string]State{
		"c-1": {ContactID: "c-1", AgentKey: "AGENT_SMITH"},
	}}
	svc := NewService(NewResolver(testDirectory(t)), store)

	r, err := svc.DetectReassignment(context.Background(), "c-1", "AGENT_JONES")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !r.Changed || r.PreviousAgentKey != "AGENT_SMITH" {
		t.Fatalf("expected reassignment from AGENT_SMITH, got %+v", r)
	}

	r, err = svc.DetectReassignment(context.Background(), "c-1", "AGENT_SMITH")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if r.Changed {
		t.Fatal("same agent must not register as reassignment")
	}

	r, err = svc.DetectReassignment(context.Background(), "c-new", "AGENT_JONES")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if r.Changed {
		t.Fatal("first sighting must not register as reassignment")
	}
}
