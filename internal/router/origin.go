// Package router is the event-routing state machine. Given a deduplicated
// webhook event it decides: skip (loop, policy, unknown type), dispatch to
// a sync handler, or enqueue derived work, and records exactly one audit
// entry per terminal outcome.
package router

import (
	"strings"

	"dialer_sync_backend/internal/intake"
)

// OriginDetector recognizes webhook echoes of this system's own writes.
// Every outbound write stamps the marker; the echo carries it back either
// as a tag or in the reserved sync-source field.
type OriginDetector struct {
	marker string
}

// NewOriginDetector creates a detector for the configured self-origin tag.
func NewOriginDetector(selfOriginTag string) *OriginDetector {
	return &OriginDetector{marker: strings.ToLower(strings.TrimSpace(selfOriginTag))}
}

// IsSelfOriginated reports whether the parsed event was produced by one of
// this system's own prior writes.
func (d *OriginDetector) IsSelfOriginated(ev intake.ParsedEvent) bool {
	if d.marker == "" {
		return false
	}
	meta := ev.EventMeta()
	if strings.ToLower(strings.TrimSpace(meta.SyncSource)) == d.marker {
		return true
	}
	for _, tag := range meta.Tags {
		if strings.ToLower(strings.TrimSpace(tag)) == d.marker {
			return true
		}
	}
	return false
}
