// Package services defines shared utilities consumed by the review
// coordination packages and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp record keys, reviewer identities, submit
//     actions, and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the review error taxonomy (claim conflict, not found, validation,
//     external failure).
//   - StepError, which records which external step failed so callers can
//     decide whether to retry an upload.
//
// Use these helpers when wiring new review logic so error handling and
// observability stay uniform across the coordinator and its transports.
package services
