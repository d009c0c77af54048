package teams

import (
	"context"
	"testing"
)

func TestNormalize_StripsNonDigits(t *testing.T) {
	cases := map[string]string{
		"+33 6 12 34 56 78": "33612345678",
		"06.12.34.56.78":    "0612345678",
		"(0033) 612-345-678": "0033612345678",
		"":     "",
		"abc":  "",
		"+ - ": "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVariants_InternationalNumber(t *testing.T) {
	got := Variants("+33 6 12 34 56 78")
	want := []string{"33612345678", "0612345678", "0033612345678"}
	set := map[string]bool{}
	for _, v := range got {
		set[v] = true
	}
	for _, w := range want {
		if !set[w] {
			t.Fatalf("expected variant set %v to contain %q", got, w)
		}
	}
}

func TestVariants_OrderedLongestFirst(t *testing.T) {
	got := Variants("0612345678")
	for i := 1; i < len(got); i++ {
		if len(got[i]) > len(got[i-1]) {
			t.Fatalf("variants not ordered longest first: %v", got)
		}
	}
}

func TestVariants_EmptyInput(t *testing.T) {
	if got := Variants("no digits here"); got != nil {
		t.Fatalf("expected no variants, got %v", got)
	}
}

func TestIndex_MatchesAcrossEncodings(t *testing.T) {
	roster := []TeamLead{
		{ID: 1, TeamName: "Alpha", LeaderFirstName: "Ana", LeaderLastName: "Durand", Phone: "0612345678", CategoryID: 1},
	}
	ix := BuildIndex(roster, []TeamLeadCategory{{ID: 1, Name: "Disponible", Position: 1}})

	for _, q := range []string{"+33612345678", "0033612345678", "0612345678", "06 12 34 56 78"} {
		id, ok := ix.Match(q)
		if !ok {
			t.Fatalf("expected %q to match", q)
		}
		if id.TeamLeadID != 1 || id.TeamName != "Alpha" {
			t.Fatalf("unexpected identity for %q: %+v", q, id)
		}
		if id.CategoryName != "Disponible" {
			t.Fatalf("expected category name, got %+v", id)
		}
	}

	if _, ok := ix.Match("0788888888"); ok {
		t.Fatalf("expected no match for unknown number")
	}
}

func TestIndex_CollisionLowestIDWins(t *testing.T) {
	roster := []TeamLead{
		{ID: 7, TeamName: "Bravo", Phone: "0612345678"},
		{ID: 2, TeamName: "Alpha", Phone: "+33612345678"},
	}
	ix := BuildIndex(roster, nil)

	id, ok := ix.Match("0612345678")
	if !ok {
		t.Fatalf("expected a match")
	}
	if id.TeamLeadID != 2 {
		t.Fatalf("expected lowest id to win the collision, got %d", id.TeamLeadID)
	}
}

func TestIndex_SkipsEntriesWithoutPhone(t *testing.T) {
	ix := BuildIndex([]TeamLead{{ID: 1, TeamName: "Alpha", Phone: "  "}}, nil)
	if _, ok := ix.Match("0612345678"); ok {
		t.Fatalf("expected no match from phoneless roster")
	}
}

func TestMatcher_RebuildsFromCurrentRoster(t *testing.T) {
	store := NewMemoryStore()
	m := NewMatcher(store)
	ctx := context.Background()

	id, err := m.Match(ctx, "0612345678")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id != nil {
		t.Fatalf("expected no match on empty roster")
	}

	lead := TeamLead{TeamName: "Alpha", LeaderFirstName: "Ana", LeaderLastName: "Durand", Phone: "0612345678", CategoryID: 1}
	if err := store.CreateTeamLead(ctx, &lead); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	id, err = m.Match(ctx, "+33612345678")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id == nil || id.TeamName != "Alpha" {
		t.Fatalf("expected roster change to be visible immediately, got %+v", id)
	}
}
