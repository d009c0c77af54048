package calls

import (
	"encoding/json"
	"strings"
	"time"
)

// CallRecord is one phone call pulled from the telephony provider's
// consumption feed.
//
// Invariants:
// - ExternalID is the provider's consumption id and is globally unique.
// - A record is created exactly once, on first sight of its id, and is never
//   updated or deleted afterward. The table is append-only.
// - CallingNumber/CalledNumber are stored verbatim as the provider sent them.
//   Phone-number normalization happens only at read time (teams package) and
//   never touches the stored value.
type CallRecord struct {
	ID         int64  `json:"id" db:"id"`
	ExternalID string `json:"external_id" db:"external_id"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
	Direction Direction `json:"direction" db:"direction"`

	CallingNumber string `json:"calling_number" db:"calling_number"`
	CalledNumber  string `json:"called_number" db:"called_number"`

	// DurationSeconds is never negative; absent provider values map to 0.
	DurationSeconds int `json:"duration" db:"duration"`

	// Status is free-form provider text; empty means the provider sent none.
	Status string `json:"status,omitempty" db:"status"`

	// IsMissed is computed once at ingestion from Status and DurationSeconds.
	IsMissed bool `json:"is_missed" db:"is_missed"`

	// RawPayload is the provider detail payload retained verbatim.
	RawPayload json.RawMessage `json:"raw_payload,omitempty" db:"raw_payload"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// ProviderSettings is the singleton provider-account aggregate, including the
// sync cursor (LastSyncAt, LastError).
//
// Cursor invariant: the worker mutates the cursor exactly once per run, at the
// end of the run. A listing failure sets LastError only and leaves LastSyncAt
// untouched so the next run re-covers the window.
type ProviderSettings struct {
	BillingAccount string `json:"billing_account"`

	// ServiceNames is a comma-separated allowlist of provider services to
	// poll. Empty means "discover via the provider's service listing".
	ServiceNames string `json:"service_names"`

	AdminPhoneNumber string `json:"admin_phone_number,omitempty"`

	AppKey      string `json:"app_key"`
	AppSecret   string `json:"app_secret"`
	ConsumerKey string `json:"consumer_key"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	LastError  *string    `json:"last_error,omitempty"`
}

// Configured reports whether the provider account can be polled at all.
func (s ProviderSettings) Configured() bool {
	return strings.TrimSpace(s.BillingAccount) != ""
}

// Services splits the configured allowlist, dropping empty entries.
func (s ProviderSettings) Services() []string {
	if strings.TrimSpace(s.ServiceNames) == "" {
		return nil
	}
	parts := strings.Split(s.ServiceNames, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Redacted returns a copy safe to return over the API: secrets are replaced
// with a marker when set.
func (s ProviderSettings) Redacted() ProviderSettings {
	out := s
	if out.AppSecret != "" {
		out.AppSecret = "********"
	}
	if out.ConsumerKey != "" {
		out.ConsumerKey = "********"
	}
	return out
}
