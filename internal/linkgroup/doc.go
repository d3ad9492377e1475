// Package linkgroup maintains equivalence classes of records that show the
// same specimen.
//
// Membership is an explicit disjoint-set forest kept in memory and mirrored
// into the record store's link_group column. Linking merges two classes,
// unlinking returns one record to a singleton, and propagation writes review
// fields across a class in a single store transaction.
package linkgroup
