package audit

import "time"

// Event is an immutable, append-only audit log record for operational
// actions on the dashboard.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; do not block main flows on audit
//   failures.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// Actor is a free-form operator identifier; empty when the action was
	// not attributable.
	Actor string `json:"actor,omitempty" db:"actor"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	TeamLeadID int64 `json:"team_lead_id,omitempty" db:"team_lead_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeSettingsUpdate EventType = "settings_update"
	EventTypeConnectionTest EventType = "connection_test"
	EventTypeManualSync     EventType = "manual_sync"
	EventTypeDebugSync      EventType = "debug_sync"
	EventTypeRosterChange   EventType = "roster_change"
)
