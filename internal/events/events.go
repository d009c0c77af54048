package events

import "context"

// Kind enumerates every event the sync pipeline can emit. The set is closed:
// consumers switch on Kind exhaustively instead of probing optional keys.
type Kind string

const (
	// KindNewCall fires once per freshly ingested call record.
	KindNewCall Kind = "new_call"
	// KindSyncComplete fires at the end of every run, failures included.
	KindSyncComplete Kind = "sync_complete"
	// KindSyncError fires when listing fails and the whole run aborts.
	KindSyncError Kind = "sync_error"
	// KindSyncItemError fires per failed item while the run continues.
	KindSyncItemError Kind = "sync_item_error"
	// KindSummaryChanged fires after runs that ingested at least one record.
	KindSummaryChanged Kind = "summary_changed"
)

// Event is the envelope sent to observers. Payload is the kind-specific
// struct below (nil for summary_changed).
type Event struct {
	Kind    Kind `json:"type"`
	Payload any  `json:"payload,omitempty"`
}

type NewCallPayload struct {
	RecordID   int64  `json:"id"`
	ExternalID string `json:"external_id"`
}

type SyncCompletePayload struct {
	NewCount   int `json:"new_count"`
	ErrorCount int `json:"error_count"`
}

type SyncErrorPayload struct {
	Message string `json:"message"`
}

type SyncItemErrorPayload struct {
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
}

func NewCall(recordID int64, externalID string) Event {
	return Event{Kind: KindNewCall, Payload: NewCallPayload{RecordID: recordID, ExternalID: externalID}}
}

func SyncComplete(newCount, errorCount int) Event {
	return Event{Kind: KindSyncComplete, Payload: SyncCompletePayload{NewCount: newCount, ErrorCount: errorCount}}
}

func SyncError(message string) Event {
	return Event{Kind: KindSyncError, Payload: SyncErrorPayload{Message: message}}
}

func SyncItemError(externalID, message string) Event {
	return Event{Kind: KindSyncItemError, Payload: SyncItemErrorPayload{ExternalID: externalID, Message: message}}
}

func SummaryChanged() Event {
	return Event{Kind: KindSummaryChanged}
}

// Publisher fans an event out to observers. Publishing is fire-and-forget:
// implementations must absorb their own failures, because a publish must
// never fail a sync run.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Multi publishes to several sinks in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		p.Publish(ctx, e)
	}
}
