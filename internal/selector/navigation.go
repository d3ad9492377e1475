package selector

import (
	"context"
	"slices"
	"strings"

	"nemfreview/internal/records"
)

// Position locates a record in priority order.
type Position struct {
	Index int    `json:"current_index"`
	Total int    `json:"total"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

// PositionOf returns key's place in ordered. Unknown keys report index 0.
func PositionOf(ordered []*records.Record, key string) Position {
	pos := Position{Total: len(ordered)}
	idx := slices.IndexFunc(ordered, func(r *records.Record) bool { return r.Key == key })
	if idx < 0 {
		idx = 0
	}
	pos.Index = idx
	if idx > 0 && idx < len(ordered) {
		pos.Prev = ordered[idx-1].Key
	}
	if idx+1 < len(ordered) {
		pos.Next = ordered[idx+1].Key
	}
	return pos
}

// Adjacent returns up to window keys on each side of key in key order,
// including key itself. Unknown keys yield nil.
func Adjacent(keys []string, key string, window int) []string {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	idx, found := slices.BinarySearch(sorted, key)
	if !found {
		return nil
	}
	start := max(0, idx-window)
	end := min(len(sorted), idx+window+1)
	return sorted[start:end]
}

// Navigation describes back/forward movement through a holder's history
// and where the next unreviewed record is.
type Navigation struct {
	CurrentIndex   int    `json:"current_index"`
	HistoryLength  int    `json:"history_length"`
	CanGoBack      bool   `json:"can_go_back"`
	CanGoForward   bool   `json:"can_go_forward"`
	BackTarget     string `json:"back_target,omitempty"`
	ForwardTarget  string `json:"forward_target,omitempty"`
	NextUnreviewed string `json:"next_unreviewed,omitempty"`
	NextMode       string `json:"next_unreviewed_mode"`
	AllResolved    bool   `json:"all_resolved"`
}

// Navigation modes for the next unreviewed target.
const (
	NextFromHistory  = "history"
	NextFromPriority = "priority"
)

// Navigate computes history navigation for holder positioned at current.
// An unresolved record ahead in history wins over the next one in priority
// order. Nothing is claimed.
func (s *Selector) Navigate(ctx context.Context, holder, current string) (Navigation, error) {
	holder = strings.TrimSpace(holder)
	history := s.history.Entries(holder)
	ordered, err := s.Ordered(ctx)
	if err != nil {
		return Navigation{}, err
	}
	byKey := make(map[string]*records.Record, len(ordered))
	allResolved := true
	for _, record := range ordered {
		byKey[record.Key] = record
		if !record.Resolved() {
			allResolved = false
		}
	}

	nav := Navigation{
		CurrentIndex:  slices.Index(history, current),
		HistoryLength: len(history),
		NextMode:      NextFromPriority,
		AllResolved:   allResolved,
	}
	if nav.CurrentIndex >= 0 && nav.CurrentIndex < len(history)-1 {
		nav.CanGoBack = true
		nav.BackTarget = history[nav.CurrentIndex+1]
	}
	if nav.CurrentIndex > 0 {
		nav.CanGoForward = true
		nav.ForwardTarget = history[nav.CurrentIndex-1]
		for i := nav.CurrentIndex - 1; i >= 0; i-- {
			if record, ok := byKey[history[i]]; ok && !record.Resolved() {
				nav.NextUnreviewed = record.Key
				nav.NextMode = NextFromHistory
				break
			}
		}
	}
	if nav.NextUnreviewed == "" {
		next, err := s.Preview(ctx, holder, Options{After: current})
		if err != nil {
			return Navigation{}, err
		}
		if next != nil {
			nav.NextUnreviewed = next.Key
		}
	}
	return nav, nil
}
