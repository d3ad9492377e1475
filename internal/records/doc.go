// Package records provides the durable Record Store backed by SQLite.
//
// It owns the schema, typed models (records, review fields, statuses,
// priority attributes, link-group membership, external outcomes), and the
// transactional writes the coordinator relies on: a whole link group receives
// its review fields in one transaction, and resolved members are detected
// inside that same transaction so they are never overwritten.
//
// The store holds no review policy. Claims live in memory elsewhere; which
// statuses siblings receive and who may write is decided by callers. The
// package also converts the legacy review_data.json document (import and
// export) and classifies extracted data into review priorities.
package records
