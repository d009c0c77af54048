package teams

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory roster store for tests.
type MemoryStore struct {
	mu sync.Mutex

	leads      map[int64]TeamLead
	categories []TeamLeadCategory
	nextID     int64
	clock      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:  map[int64]TeamLead{},
		nextID: 1,
		clock:  time.Now,
		// Seeded the same way the schema seeds availability buckets.
		categories: []TeamLeadCategory{
			{ID: 1, Name: "Disponible", Position: 1},
			{ID: 2, Name: "En intervention", Position: 2},
			{ID: 3, Name: "Indisponible", Position: 3},
		},
	}
}

func (s *MemoryStore) ListTeamLeads(ctx context.Context) ([]TeamLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TeamLead, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetTeamLead(ctx context.Context, id int64) (TeamLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return TeamLead{}, ErrNotFound
	}
	return l, nil
}

func (s *MemoryStore) CreateTeamLead(ctx context.Context, lead *TeamLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead.ID = s.nextID
	s.nextID++
	now := s.clock().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	s.leads[lead.ID] = *lead
	return nil
}

func (s *MemoryStore) UpdateTeamLead(ctx context.Context, lead TeamLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.leads[lead.ID]
	if !ok {
		return ErrNotFound
	}
	lead.CreatedAt = existing.CreatedAt
	lead.UpdatedAt = s.clock().UTC()
	s.leads[lead.ID] = lead
	return nil
}

func (s *MemoryStore) DeleteTeamLead(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[id]; !ok {
		return ErrNotFound
	}
	delete(s.leads, id)
	return nil
}

func (s *MemoryStore) ListCategories(ctx context.Context) ([]TeamLeadCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TeamLeadCategory, len(s.categories))
	copy(out, s.categories)
	return out, nil
}
