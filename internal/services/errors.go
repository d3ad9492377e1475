package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrClaimConflict          = errors.New("claim conflict")
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation error")
	ErrExternal               = errors.New("external failure")
	ErrConfiguration          = errors.New("configuration error")
	ErrReconciliationRequired = errors.New("reconciliation required")
	ErrTransient              = errors.New("transient failure")
)

// Error kinds reported by Kind. Transports map these onto status codes.
const (
	KindClaimConflict          = "claim_conflict"
	KindNotFound               = "not_found"
	KindValidation             = "validation"
	KindExternal               = "external"
	KindConfiguration          = "configuration"
	KindReconciliationRequired = "reconciliation_required"
	KindInternal               = "internal"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind classifies err into one of the Kind constants.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrClaimConflict):
		return KindClaimConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrReconciliationRequired):
		return KindReconciliationRequired
	case errors.Is(err, ErrExternal):
		return KindExternal
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindInternal
	}
}

// StepError records the external step that failed during a multi-call
// workflow such as an upload. It always matches ErrExternal.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", ErrExternal, e.Step)
	}
	return fmt.Sprintf("%s: %s: %v", ErrExternal, e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{ErrExternal}
	}
	return []error{ErrExternal, e.Err}
}

// ExternalStep wraps err as a StepError for step. A nil err yields nil.
func ExternalStep(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: strings.TrimSpace(step), Err: err}
}

// FailedStep returns the step name recorded on err, if any.
func FailedStep(err error) (string, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Step != "" {
		return stepErr.Step, true
	}
	return "", false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
