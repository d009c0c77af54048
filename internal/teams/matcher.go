package teams

import (
	"context"
	"sort"
	"strings"
)

// Phone numbers arrive in mixed local and international encodings
// ("0612345678", "+33 6 12 34 56 78", "0033612345678" are one number). The
// matcher reconciles them by expanding every number to its variant set
// instead of storing multiple formats.

// Normalize strips every non-digit character from raw.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// Variants returns the local/international digit-string encodings of one
// number, deduplicated and ordered longest first so the most specific form
// takes lookup priority. An empty digit string yields no variants.
func Variants(raw string) []string {
	d := Normalize(raw)
	if d == "" {
		return nil
	}

	seen := map[string]struct{}{}
	var out []string
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	add(d)

	if t := strings.TrimLeft(d, "0"); t != "" {
		add(t)
		add("33" + t)
		add("0033" + t)
	}
	if strings.HasPrefix(d, "33") && !strings.HasPrefix(d, "0033") && len(d) > 2 {
		r := d[2:]
		add("0" + r)
		add("0033" + r)
	}
	if strings.HasPrefix(d, "0033") && len(d) > 4 {
		r := d[4:]
		add("0" + r)
		add("33" + r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i]) > len(out[j])
	})
	return out
}

// Index maps every variant of every roster phone to its entry.
type Index struct {
	byVariant  map[string]TeamLead
	categories map[int64]string
}

// BuildIndex registers roster entries in ascending id order; on a variant
// collision the earliest-registered entry wins, which makes the tie-break a
// deterministic lowest-id rule rather than an iteration-order accident.
// Collisions are expected (shared switchboard numbers) and are not errors.
func BuildIndex(roster []TeamLead, categories []TeamLeadCategory) *Index {
	ix := &Index{
		byVariant:  map[string]TeamLead{},
		categories: map[int64]string{},
	}
	for _, c := range categories {
		ix.categories[c.ID] = c.Name
	}

	ordered := make([]TeamLead, len(roster))
	copy(ordered, roster)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, lead := range ordered {
		if strings.TrimSpace(lead.Phone) == "" {
			continue
		}
		for _, v := range Variants(lead.Phone) {
			if _, ok := ix.byVariant[v]; ok {
				continue
			}
			ix.byVariant[v] = lead
		}
	}
	return ix
}

// Match resolves a raw number against the index, trying the query's variants
// most specific first. The second return is false when nothing matches.
func (ix *Index) Match(number string) (TeamIdentity, bool) {
	for _, v := range Variants(number) {
		if lead, ok := ix.byVariant[v]; ok {
			return TeamIdentity{
				TeamLeadID:      lead.ID,
				TeamName:        lead.TeamName,
				LeaderFirstName: lead.LeaderFirstName,
				LeaderLastName:  lead.LeaderLastName,
				CategoryName:    ix.categories[lead.CategoryID],
			}, true
		}
	}
	return TeamIdentity{}, false
}

// Matcher resolves raw numbers to team identities at read time.
//
// It is stateless and parallel-safe: every Snapshot rebuilds the index from
// the current roster, so a call's resolved identity can legitimately change
// as the roster changes. Raw call data is never retouched.
type Matcher struct {
	store Store
}

func NewMatcher(store Store) *Matcher { return &Matcher{store: store} }

// Snapshot builds a one-request index from the current roster. Read paths
// that enrich many rows should take one snapshot per request.
func (m *Matcher) Snapshot(ctx context.Context) (*Index, error) {
	roster, err := m.store.ListTeamLeads(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := m.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return BuildIndex(roster, categories), nil
}

// Match resolves a single number against a fresh snapshot.
func (m *Matcher) Match(ctx context.Context, number string) (*TeamIdentity, error) {
	ix, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if id, ok := ix.Match(number); ok {
		return &id, nil
	}
	return nil, nil
}
