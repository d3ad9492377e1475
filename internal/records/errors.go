package records

import "errors"

var (
	// ErrRecordNotFound is returned when a write names a key that is not stored.
	ErrRecordNotFound = errors.New("record not found")
	// ErrResolved is returned when a write targets a record that is already resolved.
	ErrResolved = errors.New("record already resolved")
)
