// Package claims implements the in-memory lease table that gives reviewers
// exclusive, time-limited ownership of a record.
//
// A single mutex guards the table so every operation is linearizable. Leases
// expire lazily: an entry past its expiry is treated as absent by every
// operation, and the optional sweeper only reclaims memory. Time comes from
// an injectable clock so tests can advance it deterministically.
package claims
