package calllists

import (
	"sort"
	"strings"
)

// Match modes for tag and stage triggers.
const (
	MatchExact           = "exact"
	MatchCaseInsensitive = "case-insensitive"
	MatchPattern         = "pattern"
)

// Rule binds a list key to the tags and pipeline stages that enroll a
// contact in it.
type Rule struct {
	ListKey     string
	TagTriggers []string
	Stages      []string
}

// DefaultRules is the built-in enrollment table.
var DefaultRules = []Rule{
	{ListKey: ListCallNow, TagTriggers: []string{"call now", "call-now"}, Stages: []string{"new lead"}},
	{ListKey: ListHot, TagTriggers: []string{"hot", "hot lead"}, Stages: []string{"qualified"}},
	{ListKey: ListFollowUp, TagTriggers: []string{"follow up", "follow-up"}, Stages: []string{"nurture"}},
}

// IntentInput is the slice of an event and contact the resolver inspects.
type IntentInput struct {
	EventType     string
	Tags          []string
	PipelineStage string
	OptedOut      bool
}

// Intent is the desired membership delta, expressed as abstract list keys.
type Intent struct {
	Add    []string
	Remove []string
}

// IntentResolver derives list intent from event semantics and contact tags.
// It is a pure function of its inputs; persistence and remote calls belong
// to the reconciler.
type IntentResolver struct {
	mode  string
	rules []Rule
}

// NewIntentResolver creates a resolver with the given match mode.
func NewIntentResolver(mode string, rules []Rule) *IntentResolver {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &IntentResolver{mode: mode, rules: rules}
}

// ListKeys returns every configured list key, sorted.
func (r *IntentResolver) ListKeys() []string {
	keys := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		keys = append(keys, rule.ListKey)
	}
	sort.Strings(keys)
	return keys
}

// TagTriggers returns every tag that can enroll a contact in some list.
func (r *IntentResolver) TagTriggers() []string {
	var triggers []string
	for _, rule := range r.rules {
		triggers = append(triggers, rule.TagTriggers...)
	}
	sort.Strings(triggers)
	return triggers
}

// Resolve returns the lists the contact should be on and the configured
// lists it should not. An opted-out contact is removed from every list
// regardless of the triggering event.
func (r *IntentResolver) Resolve(in IntentInput) Intent {
	if in.OptedOut {
		return Intent{Add: []string{}, Remove: r.ListKeys()}
	}

	intent := Intent{Add: []string{}, Remove: []string{}}
	for _, rule := range r.rules {
		if r.ruleMatches(rule, in) {
			intent.Add = append(intent.Add, rule.ListKey)
		} else {
			intent.Remove = append(intent.Remove, rule.ListKey)
		}
	}
	sort.Strings(intent.Add)
	sort.Strings(intent.Remove)
	return intent
}

func (r *IntentResolver) ruleMatches(rule Rule, in IntentInput) bool {
	for _, trigger := range rule.TagTriggers {
		for _, tag := range in.Tags {
			if r.matches(tag, trigger) {
				return true
			}
		}
	}
	for _, stage := range rule.Stages {
		if in.PipelineStage != "" && r.matches(in.PipelineStage, stage) {
			return true
		}
	}
	return false
}

func (r *IntentResolver) matches(value, trigger string) bool {
	switch r.mode {
	case MatchExact:
		return value == trigger
	case MatchPattern:
		v := strings.ToLower(strings.TrimSpace(value))
		return strings.Contains(v, strings.ToLower(strings.TrimSpace(trigger)))
	default:
		return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(trigger))
	}
}
