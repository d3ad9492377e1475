// Package review is the application contract reviewers drive: fetching the
// next record, peeking without claiming, explicit claim control, linking
// records into groups and submitting review decisions.
//
// Service composes the claim manager, priority selector, link group manager
// and field-slip reconciler over one record store. Submissions validate
// first, then take the claim, then propagate fields across the link group in
// one transaction before any external call. Uploads run at most one external
// mutation sequence per call and record outcomes for the whole group only
// after every external step succeeded.
package review
