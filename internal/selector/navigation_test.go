package selector_test

import (
	"context"
	"slices"
	"testing"

	"nemfreview/internal/records"
	"nemfreview/internal/selector"
)

func TestHistoryMostRecentFirstAndCapped(t *testing.T) {
	h := selector.NewHistory(3)
	for _, key := range []string{"a", "b", "c", "a", "d"} {
		h.Visit("alice", key)
	}
	if got := h.Entries("alice"); !slices.Equal(got, []string{"d", "a", "c"}) {
		t.Fatalf("history = %v", got)
	}
	if got := h.Entries("bob"); len(got) != 0 {
		t.Fatalf("bob history = %v", got)
	}
	h.Forget("alice")
	if got := h.Entries("alice"); len(got) != 0 {
		t.Fatalf("history after forget = %v", got)
	}
}

func TestPositionOf(t *testing.T) {
	ordered := []*records.Record{{Key: "b"}, {Key: "a"}, {Key: "c"}}
	pos := selector.PositionOf(ordered, "a")
	if pos != (selector.Position{Index: 1, Total: 3, Prev: "b", Next: "c"}) {
		t.Fatalf("position = %#v", pos)
	}
	first := selector.PositionOf(ordered, "b")
	if first.Prev != "" || first.Next != "a" {
		t.Fatalf("first position = %#v", first)
	}
}

func TestAdjacent(t *testing.T) {
	all := []string{"07", "01", "03", "02", "05", "04", "06"}
	if got := selector.Adjacent(all, "04", 2); !slices.Equal(got, []string{"02", "03", "04", "05", "06"}) {
		t.Fatalf("Adjacent = %v", got)
	}
	if got := selector.Adjacent(all, "01", 2); !slices.Equal(got, []string{"01", "02", "03"}) {
		t.Fatalf("Adjacent at start = %v", got)
	}
	if got := selector.Adjacent(all, "99", 2); got != nil {
		t.Fatalf("Adjacent unknown = %v", got)
	}
}

func TestNavigatePrefersHistory(t *testing.T) {
	resolved := rec("b.jpg", 0, 1, false)
	resolved.Review.Status = records.StatusExcluded
	source := &staticSource{records: []*records.Record{
		rec("a.jpg", 0, 1, false),
		resolved,
		rec("c.jpg", 1, 1, false),
		rec("d.jpg", 2, 1, false),
	}}
	history := selector.NewHistory(10)
	sel := selector.New(source, newClaims(), history, nil)
	ctx := context.Background()

	// Visited a, then c, then b; now looking back at a.
	for _, key := range []string{"a.jpg", "c.jpg", "b.jpg"} {
		history.Visit("alice", key)
	}
	nav, err := sel.Navigate(ctx, "alice", "a.jpg")
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if nav.CurrentIndex != 2 || nav.HistoryLength != 3 || nav.CanGoBack || !nav.CanGoForward {
		t.Fatalf("nav = %#v", nav)
	}
	if nav.ForwardTarget != "c.jpg" || nav.NextUnreviewed != "c.jpg" || nav.NextMode != selector.NextFromHistory {
		t.Fatalf("forward nav = %#v", nav)
	}

	nav, err = sel.Navigate(ctx, "alice", "b.jpg")
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if !nav.CanGoBack || nav.BackTarget != "c.jpg" || nav.CanGoForward {
		t.Fatalf("nav at head = %#v", nav)
	}
	if nav.NextMode != selector.NextFromPriority || nav.NextUnreviewed != "c.jpg" {
		t.Fatalf("priority fallback = %#v", nav)
	}
	if nav.AllResolved {
		t.Fatal("backlog is not resolved")
	}
}
