// Package preflight provides readiness checks for the filesystem paths and
// external services the review coordinator depends on.
//
// These checks run in two contexts:
//   - "nemfreview serve" calls RunAll before opening the record store and
//     refuses to start when a required check fails.
//   - "nemfreview status" prints every result, optional ones included.
//
// Optional checks cover features that degrade rather than break: a missing
// catalog export only empties lookups, and a missing API key only disables
// uploads.
package preflight
