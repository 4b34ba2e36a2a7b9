package model

import "time"

// EventAction names an entry in an account's audit trail.
type EventAction string

const (
	ActionAccountCreated  EventAction = "account_created"
	ActionAccountReset    EventAction = "account_reset"
	ActionAccountArchived EventAction = "account_archived"
	ActionImportCommitted EventAction = "import_committed"
	ActionPhaseAdvanced   EventAction = "phase_advanced"
	ActionLimitBreached   EventAction = "limit_breached"
	ActionTargetReached   EventAction = "target_reached"
)

// Event is one audit-trail entry. Events are append-only.
type Event struct {
	ID        string      `json:"id"`
	AccountID string      `json:"account_id"`
	Action    EventAction `json:"action"`
	Details   string      `json:"details,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
