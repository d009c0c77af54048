package teams

import "time"

// TeamLead is one roster entry: a response team and the person leading it.
//
// There is deliberately no foreign key from call records to team leads:
// association is computed at read time from phone numbers, so historical call
// data stays untouched while the roster changes independently.
type TeamLead struct {
	ID       int64  `json:"id" db:"id"`
	TeamName string `json:"team_name" db:"team_name"`

	LeaderFirstName string `json:"leader_first_name" db:"leader_first_name"`
	LeaderLastName  string `json:"leader_last_name" db:"leader_last_name"`

	// Phone may be empty; such entries never match a call.
	Phone string `json:"phone,omitempty" db:"phone"`

	CategoryID int64 `json:"category_id" db:"category_id"`

	// InterventionStartedAt is set while the team is out on a call-out.
	InterventionStartedAt *time.Time `json:"intervention_started_at,omitempty" db:"intervention_started_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TeamLeadCategory is an availability bucket with a display ordering.
type TeamLeadCategory struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Position int    `json:"position" db:"position"`
}

// TeamIdentity is the read-side overlay returned by the matcher: enough to
// label a call row with who called, without mutating the record.
type TeamIdentity struct {
	TeamLeadID      int64  `json:"team_lead_id"`
	TeamName        string `json:"team_name"`
	LeaderFirstName string `json:"leader_first_name"`
	LeaderLastName  string `json:"leader_last_name"`
	CategoryName    string `json:"category_name,omitempty"`
}
