package claims

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nemfreview/internal/services"
)

// DefaultLease is the claim lifetime when none is configured.
const DefaultLease = 5 * time.Minute

// Claim is a live lease on one record key.
type Claim struct {
	Key        string    `json:"key"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at now.
func (c Claim) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Remaining returns the lease time left at now, never negative.
func (c Claim) Remaining(now time.Time) time.Duration {
	if c.Expired(now) {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// State is a read-only view of a key's claim.
type State struct {
	Held       bool      `json:"held"`
	Holder     string    `json:"holder,omitempty"`
	AcquiredAt time.Time `json:"acquired_at,omitzero"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
}

// ConflictError reports that another holder owns the live claim on Key.
type ConflictError struct {
	Key       string
	Holder    string
	ExpiresAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s is claimed by %s until %s", services.ErrClaimConflict, e.Key, e.Holder, e.ExpiresAt.Format(time.RFC3339))
}

// Is lets errors.Is match services.ErrClaimConflict.
func (e *ConflictError) Is(target error) bool {
	return target == services.ErrClaimConflict
}

// ErrHolderRequired is returned when an operation names no holder.
var ErrHolderRequired = fmt.Errorf("%w: claim holder is required", services.ErrValidation)

// AsConflict extracts the ConflictError from err.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

func normalize(key, holder string) (string, string, error) {
	key = strings.TrimSpace(key)
	holder = strings.TrimSpace(holder)
	if key == "" {
		return "", "", fmt.Errorf("%w: record key is required", services.ErrValidation)
	}
	if holder == "" {
		return "", "", ErrHolderRequired
	}
	return key, holder, nil
}
