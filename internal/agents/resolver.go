package agents

import "strings"

// ContactProfile is the slice of a contact the resolver inspects.
type ContactProfile struct {
	OwnerID       string
	AssignedAgent string
	Tags          []string
}

// Resolver maps a contact to its owning agent using the static directory.
type Resolver struct {
	dir *Directory
}

// NewResolver creates a resolver over the given directory.
func NewResolver(dir *Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the agent key for a contact. Precedence: owner id, then
// the assigned-agent field, then tag patterns. UnassignedKey when nothing
// matches.
func (r *Resolver) Resolve(c ContactProfile) string {
	if c.OwnerID != "" {
		if key, ok := r.dir.byOwnerID[c.OwnerID]; ok {
			return key
		}
	}
	if c.AssignedAgent != "" {
		if key, ok := r.dir.byName[strings.ToLower(strings.TrimSpace(c.AssignedAgent))]; ok {
			return key
		}
	}
	for _, e := range r.dir.entries {
		for _, pattern := range e.TagPatterns {
			if matchesTag(c.Tags, pattern) {
				return e.AgentKey
			}
		}
	}
	return UnassignedKey
}

// matchesTag reports whether any tag matches the pattern. A trailing "*"
// makes the pattern a case-insensitive prefix match; otherwise the
// comparison is a case-insensitive equality check.
func matchesTag(tags []string, pattern string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	prefix, wildcard := strings.CutSuffix(p, "*")
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if wildcard {
			if strings.HasPrefix(t, prefix) {
				return true
			}
			continue
		}
		if t == p {
			return true
		}
	}
	return false
}
