package calls

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_InsertRejectsDuplicateExternalID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := CallRecord{ExternalID: "c1", StartedAt: time.Unix(1700000000, 0).UTC(), Direction: DirectionInbound}
	if err := s.Insert(ctx, &rec); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	dup := CallRecord{ExternalID: "c1", StartedAt: time.Unix(1700000100, 0).UTC(), Direction: DirectionInbound}
	if err := s.Insert(ctx, &dup); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemoryStore_UpdateCursorKeepsLastSyncAtWhenNil(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := time.Unix(1700000000, 0).UTC()
	if err := s.UpdateCursor(ctx, &first, nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	msg := "listing failed"
	if err := s.UpdateCursor(ctx, nil, &msg); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	got, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.LastSyncAt == nil || !got.LastSyncAt.Equal(first) {
		t.Fatalf("expected last_sync_at untouched at %v, got %v", first, got.LastSyncAt)
	}
	if got.LastError == nil || *got.LastError != msg {
		t.Fatalf("expected last_error %q, got %v", msg, got.LastError)
	}

	// A clean run clears last_error.
	second := first.Add(time.Minute)
	if err := s.UpdateCursor(ctx, &second, nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, _ = s.GetSettings(ctx)
	if got.LastError != nil {
		t.Fatalf("expected cleared last_error, got %v", *got.LastError)
	}
	if got.LastSyncAt == nil || !got.LastSyncAt.Equal(second) {
		t.Fatalf("expected last_sync_at %v, got %v", second, got.LastSyncAt)
	}
}

func TestMemoryStore_ListFiltersAndPaginates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	for i, missed := range []bool{true, false, true, false, true} {
		rec := CallRecord{
			ExternalID: string(rune('a' + i)),
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			Direction:  DirectionInbound,
			IsMissed:   missed,
		}
		if err := s.Insert(ctx, &rec); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	missed := true
	items, total, err := s.List(ctx, ListFilter{Missed: &missed, Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 missed, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected page of 2, got %d", len(items))
	}
	if items[0].StartedAt.Before(items[1].StartedAt) {
		t.Fatalf("expected newest first")
	}
}

func TestMemoryStore_SaveSettingsKeepsCursor(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	at := time.Unix(1700000000, 0).UTC()
	if err := s.UpdateCursor(ctx, &at, nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := s.SaveSettings(ctx, ProviderSettings{BillingAccount: "ba-1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, _ := s.GetSettings(ctx)
	if got.BillingAccount != "ba-1" {
		t.Fatalf("expected saved billing account, got %q", got.BillingAccount)
	}
	if got.LastSyncAt == nil || !got.LastSyncAt.Equal(at) {
		t.Fatalf("expected cursor to survive settings edit")
	}
}
