package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"callboard/internal/calls"
)

// Provider payloads are semi-structured: field presence depends on the
// provider's API version and the consumption type. Each logical field is an
// ordered list of candidate names consulted in priority order, so schema
// drift is a one-line change here.
var (
	idFields        = []string{"id", "consumptionId"}
	startedAtFields = []string{"creationDatetime", "startDate"}
	directionFields = []string{"direction", "way"}
	statusFields    = []string{"status", "nature", "callStatus", "callType", "type"}
)

// timeLayouts are tried in order when parsing a start timestamp.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ErrMissingIdentifier marks a payload no candidate field nor the listing
// reference could identify. The worker treats it as an item failure.
var ErrMissingIdentifier = errors.New("ingest: payload carries no usable identifier")

// MapPayload normalizes one raw provider payload into a CallRecord. The raw
// bytes are retained verbatim on the record. fallbackID is the
// listing-supplied reference, used when the payload itself has no id.
func MapPayload(raw json.RawMessage, fallbackID string) (calls.CallRecord, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return calls.CallRecord{}, fmt.Errorf("decode payload: %w", err)
	}

	id := firstString(payload, idFields)
	if id == "" {
		id = strings.TrimSpace(fallbackID)
	}
	if id == "" {
		return calls.CallRecord{}, ErrMissingIdentifier
	}

	startedAt, err := parseStartedAt(firstString(payload, startedAtFields))
	if err != nil {
		return calls.CallRecord{}, err
	}

	status := firstString(payload, statusFields)
	duration := intValue(payload["duration"])

	return calls.CallRecord{
		ExternalID:      id,
		StartedAt:       startedAt,
		Direction:       inferDirection(payload),
		CallingNumber:   asString(payload["calling"]),
		CalledNumber:    asString(payload["called"]),
		DurationSeconds: duration,
		Status:          status,
		IsMissed:        inferMissed(status, duration),
		RawPayload:      raw,
	}, nil
}

func inferDirection(payload map[string]any) calls.Direction {
	v := firstString(payload, directionFields)
	if v == "" {
		v = "IN"
	}
	if strings.HasPrefix(strings.ToLower(v), "out") {
		return calls.DirectionOutbound
	}
	return calls.DirectionInbound
}

// inferMissed is a total function of status and duration: an explicit
// missed/unanswered status wins regardless of duration; otherwise a
// zero-duration call counts as missed.
func inferMissed(status string, duration int) bool {
	low := strings.ToLower(status)
	if strings.Contains(low, "missed") || strings.Contains(low, "unanswered") {
		return true
	}
	return duration == 0
}

func parseStartedAt(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, errors.New("ingest: payload carries no start timestamp")
	}
	// A bare trailing UTC marker is normalized to an explicit offset first.
	if strings.HasSuffix(v, "Z") {
		v = strings.TrimSuffix(v, "Z") + "+00:00"
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("ingest: unparseable start timestamp %q", value)
}

// firstString returns the first candidate field with a non-empty scalar
// value, stringified.
func firstString(payload map[string]any, fields []string) string {
	for _, f := range fields {
		if v, ok := payload[f]; ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func intValue(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil && n > 0 {
			return int(n)
		}
		if f, err := t.Float64(); err == nil && f > 0 {
			return int(f)
		}
		return 0
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil && n > 0 {
			return n
		}
		return 0
	default:
		return 0
	}
}
