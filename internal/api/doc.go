// Package api defines wire-format types and converters for the HTTP API.
// It translates records, claims, and submission results into transport
// DTOs that the review front end can render without coupling to internal
// types.
//
// # Key Types
//
// Record: a reviewable image with its extracted values, review state,
// priority, outcome, and link group.
//
// Claim: lease state with remaining seconds computed at response time.
//
// SubmitRequest/SubmitResponse: one reviewer decision and what it did,
// including the reconciliation details when confirmation is required.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Statuses, actions,
// and reconciliation decisions are exposed as their lowercase string
// values. Timestamps use RFC3339 with milliseconds in UTC.
package api
