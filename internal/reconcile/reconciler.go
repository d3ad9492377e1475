package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"nemfreview/internal/logging"
	"nemfreview/internal/metrics"
	"nemfreview/internal/services"
)

// Reconciler applies a Policy to field-slip linkages found through a Lookup.
type Reconciler struct {
	lookup Lookup
	policy Policy
	logger *slog.Logger
}

// New builds a Reconciler. A nil policy selects DefaultPermissive.
func New(lookup Lookup, policy Policy, logger *slog.Logger) *Reconciler {
	if policy == nil {
		policy = DefaultPermissive()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		lookup: lookup,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Policy returns the active policy.
func (r *Reconciler) Policy() Policy {
	return r.policy
}

// Reconcile runs a fresh Attempt and returns its decision.
func (r *Reconciler) Reconcile(ctx context.Context, code string, target int64, candidate Candidate) (Decision, error) {
	return r.Run(ctx, NewAttempt(), code, target, candidate)
}

// Run drives attempt from start to a decision.
func (r *Reconciler) Run(ctx context.Context, attempt *Attempt, code string, target int64, candidate Candidate) (Decision, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Decision{}, fmt.Errorf("%w: field slip code is required", services.ErrValidation)
	}
	if err := attempt.Advance(StateLookup); err != nil {
		return Decision{}, err
	}
	linked, err := r.lookup.FieldSlipByCode(ctx, code)
	if err != nil {
		return Decision{}, services.ExternalStep("look up field slip", err)
	}

	decision := Decision{Code: code, Target: target}
	if len(linked) == 0 {
		decision.Kind = KindCreate
		if err := attempt.decide(StateCreate, decision); err != nil {
			return Decision{}, err
		}
		r.log(ctx, decision, "no existing linkage")
		return decision, nil
	}

	if err := attempt.Advance(StateCompare); err != nil {
		return Decision{}, err
	}
	decision.Existing = linked[0]
	if target != CreateNew && slices.Contains(linked, target) {
		decision.Existing = target
		decision.Kind = KindSilentLink
		if err := attempt.decide(StateSilentLink, decision); err != nil {
			return Decision{}, err
		}
		r.log(ctx, decision, "already linked to target")
		return decision, nil
	}

	existing, err := r.lookup.Observation(ctx, decision.Existing)
	switch {
	case errors.Is(err, services.ErrNotFound):
		decision.Kind = KindFlag
		decision.Reasons = []string{ReasonExistingUnavailable}
	case err != nil:
		return Decision{}, services.ExternalStep("fetch linked observation", err)
	default:
		decision.Observation = &existing
		decision.Reasons = r.policy.Compare(existing, target, candidate)
		decision.Kind = KindSilentLink
		if len(decision.Reasons) > 0 {
			decision.Kind = KindFlag
		}
	}

	next := StateSilentLink
	if decision.Kind == KindFlag {
		next = StateFlagged
	}
	if err := attempt.decide(next, decision); err != nil {
		return Decision{}, err
	}
	reason := "likely duplicate of existing observation"
	if len(decision.Reasons) > 0 {
		reason = strings.Join(decision.Reasons, ", ")
	}
	r.log(ctx, decision, reason)
	return decision, nil
}

func (r *Reconciler) log(ctx context.Context, decision Decision, reason string) {
	metrics.RecordReconcileDecision(string(decision.Kind))
	attrs := append(logging.DecisionAttrs("field_slip_reconciliation", string(decision.Kind), reason),
		logging.String("field_code", decision.Code),
		logging.Int64("target", decision.Target),
		logging.Int64("existing", decision.Existing),
		logging.String("policy", r.policy.Name()),
	)
	logger := logging.WithContext(ctx, r.logger)
	if decision.Kind == KindFlag {
		logger.Info("field slip needs confirmation", logging.Args(attrs...)...)
		return
	}
	logger.Debug("field slip reconciled", logging.Args(attrs...)...)
}
