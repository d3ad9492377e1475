package reconcile

import (
	"context"
	"fmt"

	"nemfreview/internal/records"
)

// CreateNew is the target used when the upload will create a new observation.
const CreateNew int64 = 0

// Candidate describes the record about to be uploaded.
type Candidate struct {
	Name         string
	Date         string
	Coordinates  *records.Coordinates
	LocationName string
}

// Observation is the external observation an existing linkage points at.
type Observation struct {
	ID           int64
	Name         string
	Date         string
	Coordinates  *records.Coordinates
	LocationName string
}

// Lookup reads field-slip linkages and observations from the external system.
type Lookup interface {
	// FieldSlipByCode returns the observation ids already linked to code.
	FieldSlipByCode(ctx context.Context, code string) ([]int64, error)
	// Observation returns one observation. Missing ids match services.ErrNotFound.
	Observation(ctx context.Context, id int64) (Observation, error)
}

// Kind enumerates reconciliation outcomes.
type Kind string

const (
	// KindCreate means no linkage exists; the field slip should be created.
	KindCreate Kind = "create"
	// KindSilentLink means the upload may proceed without touching the slip.
	KindSilentLink Kind = "silent_link"
	// KindFlag means the reviewer must confirm before the upload proceeds.
	KindFlag Kind = "flag_for_confirmation"
)

// Reasons reported with KindFlag.
const (
	ReasonDifferentSpecies    = "different species"
	ReasonDifferentDate       = "different date"
	ReasonDifferentLocation   = "different location"
	ReasonExistingUnavailable = "existing observation unavailable"
)

const reasonLinkedElsewhere = "field slip already linked to observation %d"

// Decision is the outcome of reconciling one upload.
type Decision struct {
	Kind     Kind
	Code     string
	Target   int64
	Existing int64
	// Observation is the existing observation compared against, when fetched.
	Observation *Observation
	Reasons     []string
}

// RequiresConfirmation reports whether the reviewer must confirm.
func (d Decision) RequiresConfirmation() bool {
	return d.Kind == KindFlag
}

// CreatesFieldSlip reports whether the upload should create the linkage.
func (d Decision) CreatesFieldSlip() bool {
	return d.Kind == KindCreate
}

func (d Decision) String() string {
	switch d.Kind {
	case KindCreate:
		return fmt.Sprintf("create field slip %s", d.Code)
	case KindSilentLink:
		return fmt.Sprintf("field slip %s already linked to %d", d.Code, d.Existing)
	default:
		return fmt.Sprintf("field slip %s linked to %d needs confirmation: %v", d.Code, d.Existing, d.Reasons)
	}
}
