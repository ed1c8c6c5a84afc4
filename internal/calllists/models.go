// Package calllists reconciles desired call-list membership against the
// dialer's actual lists, tracked per contact, agent, and abstract list key.
package calllists

import "time"

// Membership statuses.
const (
	MembershipActive  = "active"
	MembershipRemoved = "removed"
)

// Abstract list keys. Each resolves to a concrete per-agent dialer list
// through the registry, created lazily on first use.
const (
	ListCallNow  = "CALL_NOW"
	ListHot      = "HOT"
	ListFollowUp = "FOLLOW_UP"
)

// Membership is one desired-state ledger row.
type Membership struct {
	ContactID string     `json:"contactId"`
	AgentKey  string     `json:"agentKey"`
	ListKey   string     `json:"listKey"`
	Status    string     `json:"status"`
	Reason    *string    `json:"reason,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// RegistryRow maps an (agentKey, listKey) pair to a concrete dialer list.
// DialerListID is nil until the remote list has been created.
type RegistryRow struct {
	AgentKey       string  `json:"agentKey"`
	ListKey        string  `json:"listKey"`
	DialerListID   *string `json:"dialerListId,omitempty"`
	DialerListName string  `json:"dialerListName"`
}
