package provider

import (
	"context"
	"encoding/json"
	"time"
)

// Client is the provider-agnostic telephony consumption API used by the
// ingestion worker.
//
// Rules:
// - No provider SDK details outside this package.
// - Identifiers are opaque strings; detail payloads are returned verbatim so
//   the store can retain them untouched.
type Client interface {
	// ListServices enumerates billable telephony lines on the account.
	ListServices(ctx context.Context) ([]string, error)

	// ListConsumptions returns the consumption ids for one service within an
	// optional time window.
	ListConsumptions(ctx context.Context, service string, from, to *time.Time) ([]string, error)

	// GetDetail fetches one consumption's detail payload verbatim.
	GetDetail(ctx context.Context, service, consumptionID string) (json.RawMessage, error)

	// Test verifies the credentials can reach the account at all.
	Test(ctx context.Context) error
}
