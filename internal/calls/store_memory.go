package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and early development.
// It mirrors the Postgres implementation's semantics, including append-only
// inserts and partial cursor updates.
type MemoryStore struct {
	mu sync.Mutex

	records []CallRecord
	byExtID map[string]int // index into records

	settings    ProviderSettings
	settingsSet bool

	nextID int64
	clock  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byExtID: map[string]int{},
		nextID:  1,
		clock:   time.Now,
	}
}

// SetClock overrides the timestamp source; tests use a fixed clock.
func (s *MemoryStore) SetClock(clock func() time.Time) { s.clock = clock }

func (s *MemoryStore) GetSettings(ctx context.Context) (ProviderSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *MemoryStore) SaveSettings(ctx context.Context, in ProviderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Cursor fields survive settings edits.
	in.LastSyncAt = s.settings.LastSyncAt
	in.LastError = s.settings.LastError
	s.settings = in
	s.settingsSet = true
	return nil
}

func (s *MemoryStore) UpdateCursor(ctx context.Context, lastSyncAt *time.Time, lastError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lastSyncAt != nil {
		v := *lastSyncAt
		s.settings.LastSyncAt = &v
	}
	if lastError != nil {
		v := *lastError
		s.settings.LastError = &v
	} else {
		s.settings.LastError = nil
	}
	return nil
}

func (s *MemoryStore) FindByExternalID(ctx context.Context, externalID string) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byExtID[externalID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return s.records[idx], nil
}

func (s *MemoryStore) Insert(ctx context.Context, rec *CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byExtID[rec.ExternalID]; ok {
		return ErrDuplicate
	}
	rec.ID = s.nextID
	s.nextID++
	rec.CreatedAt = s.clock().UTC()
	s.records = append(s.records, *rec)
	s.byExtID[rec.ExternalID] = len(s.records) - 1
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f ListFilter) ([]CallRecord, int, error) {
	f = f.withDefaults()
	s.mu.Lock()
	matched := make([]CallRecord, 0, len(s.records))
	for _, r := range s.records {
		if !matches(r, f) {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return []CallRecord{}, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) ListBetween(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	s.mu.Lock()
	out := make([]CallRecord, 0)
	for _, r := range s.records {
		if r.StartedAt.Before(from) || !r.StartedAt.Before(to) {
			continue
		}
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func matches(r CallRecord, f ListFilter) bool {
	if f.From != nil && r.StartedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !r.StartedAt.Before(*f.To) {
		return false
	}
	if f.Missed != nil && r.IsMissed != *f.Missed {
		return false
	}
	if f.Direction != "" && r.Direction != f.Direction {
		return false
	}
	return true
}
