package reporting

import "time"

// Range is a dashboard range token.
type Range string

const (
	RangeToday  Range = "today"
	Range7Days  Range = "7d"
	Range30Days Range = "30d"
)

// Resolve turns the token into a concrete [from, to) window ending at now.
func (r Range) Resolve(now time.Time) (from, to time.Time, ok bool) {
	now = now.UTC()
	switch r {
	case RangeToday:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case Range7Days:
		from = now.AddDate(0, 0, -7)
	case Range30Days:
		from = now.AddDate(0, 0, -30)
	default:
		return time.Time{}, time.Time{}, false
	}
	return from, now, true
}

// Summary carries the dashboard headline numbers for one range.
type Summary struct {
	Range Range `json:"range"`

	TotalIncoming int `json:"total_incoming"`
	TotalMissed   int `json:"total_missed"`
	TotalOutgoing int `json:"total_outgoing"`

	TotalDurationSeconds int `json:"total_duration_seconds"`

	// TotalLast7Days is always the trailing seven days, independent of the
	// requested range, so the headline card stays stable while the rest of
	// the dashboard is re-ranged.
	TotalLast7Days int `json:"total_last_7_days"`
}

// TimeseriesPoint is one daily bucket.
type TimeseriesPoint struct {
	Date   string `json:"date"`
	Total  int    `json:"total"`
	Missed int    `json:"missed"`
}

type Timeseries struct {
	Range  Range             `json:"range"`
	Points []TimeseriesPoint `json:"points"`
}
