// Package selector orders the review backlog and hands out the next record.
//
// Ordering is a single tuple comparator: priority class ascending, location
// tier ascending, records with issue flags first, then key. Next walks the
// ordered unresolved records and claims the first one it can through the
// same atomic acquire used by explicit claims, so a caller never receives a
// record it does not hold. History and navigation helpers are read-only.
package selector
