package model

import "time"

// EventKind names an audit-log entry type.
type EventKind string

const (
	EventGenerated  EventKind = "generated"
	EventBlocked    EventKind = "blocked"
	EventSuppressed EventKind = "suppressed"
	EventFailed     EventKind = "failed"
	EventEdited     EventKind = "edited"
	EventRemoved    EventKind = "removed"
	EventSent       EventKind = "sent"
	EventSendFailed EventKind = "send_failed"
)

// Event is an append-only audit record. Detail carries free-form
// context such as a route reason or an error summary.
type Event struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id,omitempty"`
	AttemptID string    `json:"attempt_id,omitempty"`
	Kind      EventKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
