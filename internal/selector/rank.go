package selector

import (
	"cmp"
	"slices"

	"nemfreview/internal/records"
)

// Rank is the ordering tuple of a record.
type Rank struct {
	Class        int
	LocationTier int
	HasIssues    bool
}

// RankOf extracts the ordering tuple from r.
func RankOf(r *records.Record) Rank {
	return Rank{
		Class:        r.Priority.Class,
		LocationTier: r.Priority.LocationTier,
		HasIssues:    r.Priority.HasIssues(),
	}
}

// Compare orders records by class, then location tier, then records with
// issues before those without, then key. It is a total order over distinct
// keys.
func Compare(a, b *records.Record) int {
	ra, rb := RankOf(a), RankOf(b)
	if c := cmp.Compare(ra.Class, rb.Class); c != 0 {
		return c
	}
	if c := cmp.Compare(ra.LocationTier, rb.LocationTier); c != 0 {
		return c
	}
	if ra.HasIssues != rb.HasIssues {
		if ra.HasIssues {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Key, b.Key)
}

// Sort orders recs in place by Compare.
func Sort(recs []*records.Record) {
	slices.SortFunc(recs, Compare)
}
