package selector

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"nemfreview/internal/claims"
	"nemfreview/internal/logging"
	"nemfreview/internal/records"
	"nemfreview/internal/services"
)

// Source lists records from the store.
type Source interface {
	List(ctx context.Context, opts records.ListOptions) ([]*records.Record, error)
}

// ClaimTable is the subset of the claim manager used for selection.
type ClaimTable interface {
	Acquire(key, holder string) (claims.Claim, error)
	Snapshot() map[string]claims.Claim
}

// Options narrows the candidate set. Neither option changes ordering.
type Options struct {
	// After starts the search just past this key in priority order and wraps
	// around. The key itself is never returned.
	After string
	// Exclude skips these keys, for example the holder's recent history.
	Exclude []string
}

// Selector hands out the next record to review.
type Selector struct {
	source  Source
	claims  ClaimTable
	history *History
	logger  *slog.Logger
}

// New builds a Selector.
func New(source Source, claimTable ClaimTable, history *History, logger *slog.Logger) *Selector {
	if history == nil {
		history = NewHistory(DefaultHistoryLimit)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Selector{
		source:  source,
		claims:  claimTable,
		history: history,
		logger:  logging.NewComponentLogger(logger, "selector"),
	}
}

// History exposes the per-holder view history.
func (s *Selector) History() *History {
	return s.history
}

// Ordered returns every record sorted by Compare.
func (s *Selector) Ordered(ctx context.Context) ([]*records.Record, error) {
	all, err := s.source.List(ctx, records.ListOptions{})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "selector", "list", "load records", err)
	}
	Sort(all)
	return all, nil
}

// candidates returns unresolved records eligible for holder in search order.
func (s *Selector) candidates(ctx context.Context, holder string, opts Options) ([]*records.Record, error) {
	ordered, err := s.Ordered(ctx)
	if err != nil {
		return nil, err
	}
	if after := strings.TrimSpace(opts.After); after != "" {
		if idx := slices.IndexFunc(ordered, func(r *records.Record) bool { return r.Key == after }); idx >= 0 {
			rotated := make([]*records.Record, 0, len(ordered)-1)
			rotated = append(rotated, ordered[idx+1:]...)
			rotated = append(rotated, ordered[:idx]...)
			ordered = rotated
		}
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, key := range opts.Exclude {
		exclude[key] = struct{}{}
	}
	snapshot := s.claims.Snapshot()

	var eligible []*records.Record
	for _, record := range ordered {
		if record.Resolved() {
			continue
		}
		if _, skip := exclude[record.Key]; skip {
			continue
		}
		if claim, held := snapshot[record.Key]; held && claim.Holder != holder {
			continue
		}
		eligible = append(eligible, record)
	}
	return eligible, nil
}

// Next claims and returns the highest-priority unresolved record that is
// unclaimed or already held by holder. A candidate lost to a concurrent
// holder between snapshot and acquire is skipped. It returns nil with a zero
// claim when nothing is eligible.
func (s *Selector) Next(ctx context.Context, holder string, opts Options) (*records.Record, claims.Claim, error) {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return nil, claims.Claim{}, claims.ErrHolderRequired
	}
	candidates, err := s.candidates(ctx, holder, opts)
	if err != nil {
		return nil, claims.Claim{}, err
	}
	lost := 0
	for _, record := range candidates {
		claim, err := s.claims.Acquire(record.Key, holder)
		if err != nil {
			if errors.Is(err, services.ErrClaimConflict) {
				lost++
				continue
			}
			return nil, claims.Claim{}, err
		}
		s.history.Visit(holder, record.Key)
		s.logger.Debug("next record selected",
			logging.Args(append(logging.DecisionAttrs("selection", "claimed", "highest priority eligible"),
				logging.RecordKey(record.Key),
				logging.Holder(holder),
				logging.Int("class", record.Priority.Class),
				logging.Int("location_tier", record.Priority.LocationTier),
				logging.Int("lost_races", lost),
			)...)...,
		)
		return record, claim, nil
	}
	s.logger.Debug("no eligible record",
		logging.Args(append(logging.DecisionAttrs("selection", "empty", "backlog exhausted or claimed"),
			logging.Holder(holder),
			logging.Int("lost_races", lost),
		)...)...,
	)
	return nil, claims.Claim{}, nil
}

// Preview returns the record Next would try first without claiming it.
func (s *Selector) Preview(ctx context.Context, holder string, opts Options) (*records.Record, error) {
	candidates, err := s.candidates(ctx, strings.TrimSpace(holder), opts)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}
