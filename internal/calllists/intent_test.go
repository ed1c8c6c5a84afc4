package calllists

import (
	"reflect"
	"testing"
)

func TestResolveOptOutDominatesEverything(t *testing.T) {
	resolver := NewIntentResolver(MatchCaseInsensitive, nil)

	// Contact tagged for all three lists, but opted out.
	intent := resolver.Resolve(IntentInput{
		EventType:     "ContactTagUpdate",
		Tags:          []string{"call now", "hot", "follow up"},
		PipelineStage: "Qualified",
		OptedOut:      true,
	})

	if len(intent.Add) != 0 {
		t.Fatalf("opted-out contact must never be added, got %v", intent.Add)
	}
	if !reflect.DeepEqual(intent.Remove, resolver.ListKeys()) {
		t.Fatalf("expected removal from all configured lists %v, got %v", resolver.ListKeys(), intent.Remove)
	}
}

func TestResolveDerivesDesiredStateFromTags(t *testing.T) {
	resolver := NewIntentResolver(MatchCaseInsensitive, nil)

	intent := resolver.Resolve(IntentInput{
		EventType: "ContactTagUpdate",
		Tags:      []string{"Hot", "vip"},
	})

	if !reflect.DeepEqual(intent.Add, []string{ListHot}) {
		t.Fatalf("expected add [HOT], got %v", intent.Add)
	}
	if !reflect.DeepEqual(intent.Remove, []string{ListCallNow, ListFollowUp}) {
		t.Fatalf("expected removal of unmatched lists, got %v", intent.Remove)
	}
}

func TestResolvePipelineStageTrigger(t *testing.T) {
	resolver := NewIntentResolver(MatchCaseInsensitive, nil)

	intent := resolver.Resolve(IntentInput{
		EventType:     "PipelineStageUpdate",
		PipelineStage: "qualified",
	})
	if !reflect.DeepEqual(intent.Add, []string{ListHot}) {
		t.Fatalf("expected qualified stage to enroll HOT, got %v", intent.Add)
	}
}

func TestMatchModes(t *testing.T) {
	tests := []struct {
		mode string
		tag  string
		want bool
	}{
		{MatchExact, "hot", true},
		{MatchExact, "Hot", false},
		{MatchCaseInsensitive, "HOT", true},
		{MatchCaseInsensitive, "warm", false},
		{MatchPattern, "very-hot-lead", true},
		{MatchPattern, "cold", false},
	}

	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.tag, func(t *testing.T) {
			resolver := NewIntentResolver(tt.mode, []Rule{{ListKey: ListHot, TagTriggers: []string{"hot"}}})
			intent := resolver.Resolve(IntentInput{Tags: []string{tt.tag}})
			got := len(intent.Add) == 1
			if got != tt.want {
				t.Fatalf("mode %s tag %q: enrolled=%v, want %v", tt.mode, tt.tag, got, tt.want)
			}
		})
	}
}
