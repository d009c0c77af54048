package ingest

import "time"

const (
	// overlapMargin is subtracted from the cursor on incremental runs to
	// absorb clock skew and late-arriving records. Idempotent ingestion makes
	// the re-read harmless.
	overlapMargin = 10 * time.Minute

	// defaultLookback bounds the first run on a fresh install.
	defaultLookback = 7 * 24 * time.Hour
)

// Window reasons, surfaced by debug output and logs.
const (
	ReasonOverride = "override"
	ReasonDelta    = "delta"
	ReasonDefault  = "default"
)

// Window is the polling interval handed to the provider listing.
//
// Known gap: after a failed run the next window still re-overlaps only by
// overlapMargin, not by the full failed interval. An outage longer than the
// margin is not widened over; the failure stays visible in last_error.
type Window struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// ComputeWindow derives the polling window from the cursor, or from an
// explicit override expressed in days. It is a pure function of its inputs;
// overrideDays <= 0 means no override.
func ComputeWindow(now time.Time, lastSyncAt *time.Time, overrideDays int) Window {
	switch {
	case overrideDays > 0:
		return Window{
			Start:  now.Add(-time.Duration(overrideDays) * 24 * time.Hour),
			End:    now,
			Reason: ReasonOverride,
		}
	case lastSyncAt != nil:
		return Window{
			Start:  lastSyncAt.Add(-overlapMargin),
			End:    now,
			Reason: ReasonDelta,
		}
	default:
		return Window{
			Start:  now.Add(-defaultLookback),
			End:    now,
			Reason: ReasonDefault,
		}
	}
}
