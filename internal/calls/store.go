package calls

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("calls: not found")

	// ErrDuplicate is returned when an insert collides on external_id.
	ErrDuplicate = errors.New("calls: duplicate external id")
)

// ListFilter narrows the call listing read path.
// Zero Page/PageSize are replaced with defaults by implementations.
type ListFilter struct {
	From      *time.Time
	To        *time.Time
	Missed    *bool
	Direction Direction // empty means both

	Page     int
	PageSize int
}

func (f ListFilter) withDefaults() ListFilter {
	out := f
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.PageSize <= 0 {
		out.PageSize = 20
	}
	if out.PageSize > 200 {
		out.PageSize = 200
	}
	return out
}

// Store is the persistence contract for call records and the provider
// settings aggregate.
//
// Rules:
// - Insert is the only write to call_records; no Update/Delete by design.
// - Deduplication is a store lookup (FindByExternalID), not an in-memory set,
//   so it survives restarts.
type Store interface {
	// GetSettings returns the settings singleton; the zero value (not an
	// error) when no row exists yet.
	GetSettings(ctx context.Context) (ProviderSettings, error)

	// SaveSettings creates or replaces the settings singleton. The cursor
	// fields are not overwritten by settings edits.
	SaveSettings(ctx context.Context, s ProviderSettings) error

	// UpdateCursor mutates the sync cursor. A nil lastSyncAt keeps the
	// existing value; lastError is always assigned (nil clears it), because
	// last_error reflects only the most recent run.
	UpdateCursor(ctx context.Context, lastSyncAt *time.Time, lastError *string) error

	// FindByExternalID returns ErrNotFound when the id was never ingested.
	FindByExternalID(ctx context.Context, externalID string) (CallRecord, error)

	// Insert appends one record, assigning ID and CreatedAt. Returns
	// ErrDuplicate on an external_id collision.
	Insert(ctx context.Context, rec *CallRecord) error

	// List returns one page ordered by started_at descending, plus the total
	// matching count.
	List(ctx context.Context, f ListFilter) ([]CallRecord, int, error)

	// ListBetween returns all records with started_at in [from, to), ordered
	// ascending. Used by reporting aggregates and CSV export.
	ListBetween(ctx context.Context, from, to time.Time) ([]CallRecord, error)
}
