// Package daemon runs the long-lived review coordinator process.
//
// It wires the record store and review service into a single lifecycle with
// flock-based locking to prevent multiple instances, runs the claim sweeper,
// and serves the HTTP API through a gorilla/mux router. Every API request
// carries a correlation id and, when acting on behalf of a reviewer, the
// X-Reviewer header naming the claim holder. Service error markers map onto
// HTTP status codes in one place (statusForError).
//
// Keep review semantics in internal/review: handlers here only decode,
// delegate, and encode.
package daemon
