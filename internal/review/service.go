package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"nemfreview/internal/catalog"
	"nemfreview/internal/claims"
	"nemfreview/internal/config"
	"nemfreview/internal/linkgroup"
	"nemfreview/internal/logging"
	"nemfreview/internal/records"
	"nemfreview/internal/reconcile"
	"nemfreview/internal/selector"
	"nemfreview/internal/services"
)

// Service coordinates concurrent reviewers over one record store.
type Service struct {
	cfg        *config.Config
	store      *records.Store
	claims     *claims.Manager
	links      *linkgroup.Manager
	selector   *selector.Selector
	lookup     *reconcile.CachedLookup
	reconciler *reconcile.Reconciler
	policy     reconcile.Policy
	external   ExternalFactory
	catalog    *catalog.Catalog
	logger     *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClaims supplies a preconfigured claim manager.
func WithClaims(manager *claims.Manager) Option {
	return func(s *Service) {
		if manager != nil {
			s.claims = manager
		}
	}
}

// WithLookup sets the external lookup used for field-slip reconciliation.
func WithLookup(lookup reconcile.Lookup) Option {
	return func(s *Service) {
		if lookup != nil {
			s.lookup = reconcile.NewCachedLookup(lookup, s.cfg.LookupCacheTTL())
		}
	}
}

// WithPolicy overrides the reconciliation policy chosen by configuration.
func WithPolicy(policy reconcile.Policy) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithExternal sets the factory for per-reviewer external clients.
func WithExternal(factory ExternalFactory) Option {
	return func(s *Service) {
		s.external = factory
	}
}

// WithCatalog sets the catalog used to fill coordinates from locations.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Service over store and loads persisted link groups.
func New(ctx context.Context, cfg *config.Config, store *records.Store, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "review", "init", "config is required", nil)
	}
	if store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "review", "init", "record store is required", nil)
	}
	svc := &Service{
		cfg:    cfg,
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.claims == nil {
		svc.claims = claims.NewManager(claims.WithLease(cfg.LeaseDuration()), claims.WithLogger(svc.logger))
	}
	if svc.policy == nil {
		svc.policy = reconcile.PolicyFromConfig(cfg)
	}
	if svc.lookup != nil {
		svc.reconciler = reconcile.New(svc.lookup, svc.policy, svc.logger)
	}
	if svc.catalog == nil {
		svc.catalog = catalog.New(nil, nil, nil)
	}
	svc.links = linkgroup.NewManager(store, svc.claims, svc.logger)
	if err := svc.links.Load(ctx); err != nil {
		return nil, fmt.Errorf("load link groups: %w", err)
	}
	svc.selector = selector.New(store, svc.claims, selector.NewHistory(cfg.Review.HistoryLimit), svc.logger)
	svc.logger = logging.NewComponentLogger(svc.logger, "review")
	return svc, nil
}

// Claims exposes the claim manager, for the sweeper and status views.
func (s *Service) Claims() *claims.Manager {
	return s.claims
}

// Catalog exposes the loaded catalog for lookups.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Policy returns the active reconciliation policy.
func (s *Service) Policy() reconcile.Policy {
	return s.policy
}

// Assignment is a record handed to a reviewer along with its claim.
type Assignment struct {
	Record   *records.Record
	Claim    claims.Claim
	Siblings []string
}

// View is a read-only look at one record.
type View struct {
	Record   *records.Record
	Claim    claims.State
	Siblings []string
}

// GetNext claims and returns the highest-priority eligible record for
// holder. It returns nil when nothing is eligible.
func (s *Service) GetNext(ctx context.Context, holder string, opts selector.Options) (*Assignment, error) {
	holder, err := requireHolder(holder)
	if err != nil {
		return nil, err
	}
	record, claim, err := s.selector.Next(ctx, holder, opts)
	if err != nil || record == nil {
		return nil, err
	}
	return &Assignment{Record: record, Claim: claim, Siblings: s.links.Siblings(record.Key)}, nil
}

// Peek returns key with its claim state without claiming it.
func (s *Service) Peek(ctx context.Context, key string) (*View, error) {
	record, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return &View{Record: record, Claim: s.claims.Peek(record.Key), Siblings: s.links.Siblings(record.Key)}, nil
}

// View peeks at key and records it in holder's history.
func (s *Service) View(ctx context.Context, holder, key string) (*View, error) {
	view, err := s.Peek(ctx, key)
	if err != nil {
		return nil, err
	}
	if holder = strings.TrimSpace(holder); holder != "" {
		s.selector.History().Visit(holder, view.Record.Key)
	}
	return view, nil
}

// AcquireClaim claims key for holder.
func (s *Service) AcquireClaim(ctx context.Context, key, holder string) (claims.Claim, error) {
	if _, err := s.load(ctx, key); err != nil {
		return claims.Claim{}, err
	}
	return s.claims.Acquire(key, holder)
}

// RenewClaim extends holder's live claim on key.
func (s *Service) RenewClaim(_ context.Context, key, holder string) (claims.Claim, error) {
	return s.claims.Renew(key, holder)
}

// ReleaseClaim drops holder's claim on key. Releasing nothing succeeds.
func (s *Service) ReleaseClaim(_ context.Context, key, holder string) error {
	return s.claims.Release(key, holder)
}

// ReleaseAll drops every claim held by holder and returns the released keys.
func (s *Service) ReleaseAll(holder string) []string {
	return s.claims.ReleaseHolder(holder)
}

// Link joins b into a's link group. The link manager itself only checks the
// claim on a, but here holder must be able to claim both so neither record
// is edited by someone else while they are grouped. A claim taken here on a
// is given back if b cannot be claimed.
func (s *Service) Link(ctx context.Context, holder, a, b string) ([]string, error) {
	holder, err := requireHolder(holder)
	if err != nil {
		return nil, err
	}
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if b == "" {
		return nil, services.Wrap(services.ErrValidation, "review", "link", "target key is required", nil)
	}
	if _, err := s.load(ctx, a); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, b); err != nil {
		return nil, err
	}

	heldBefore := s.claims.HeldBy(a, holder)
	if _, err := s.claims.Acquire(a, holder); err != nil {
		return nil, err
	}
	if _, err := s.claims.Acquire(b, holder); err != nil {
		if !heldBefore {
			_ = s.claims.Release(a, holder)
		}
		return nil, err
	}
	if err := s.links.Link(ctx, holder, a, b); err != nil {
		return nil, err
	}
	return s.links.GroupOf(a), nil
}

// Unlink removes a from its link group. holder must hold a's claim.
func (s *Service) Unlink(ctx context.Context, holder, a string) error {
	holder, err := requireHolder(holder)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, a); err != nil {
		return err
	}
	return s.links.Unlink(ctx, holder, strings.TrimSpace(a))
}

// Group returns the members of key's link group, key included.
func (s *Service) Group(key string) []string {
	return s.links.GroupOf(strings.TrimSpace(key))
}

// Navigation returns history navigation for holder positioned at current.
func (s *Service) Navigation(ctx context.Context, holder, current string) (selector.Navigation, error) {
	return s.selector.Navigate(ctx, holder, strings.TrimSpace(current))
}

// Position locates key in priority order.
func (s *Service) Position(ctx context.Context, key string) (selector.Position, error) {
	ordered, err := s.selector.Ordered(ctx)
	if err != nil {
		return selector.Position{}, err
	}
	return selector.PositionOf(ordered, strings.TrimSpace(key)), nil
}

// Adjacent returns the records within the configured window of key in key
// order, key included.
func (s *Service) Adjacent(ctx context.Context, key string) ([]*records.Record, error) {
	key = strings.TrimSpace(key)
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "review", "adjacent", "list keys", err)
	}
	window := s.cfg.Review.AdjacentWindow
	if window <= 0 {
		window = 5
	}
	nearby := selector.Adjacent(keys, key, window)
	if nearby == nil {
		return nil, notFound("adjacent", key)
	}
	found, err := s.store.GetMany(ctx, nearby)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "review", "adjacent", "load records", err)
	}
	result := make([]*records.Record, 0, len(nearby))
	for _, k := range nearby {
		if record, ok := found[k]; ok {
			result = append(result, record)
		}
	}
	return result, nil
}

// Summary returns review progress counts.
func (s *Service) Summary(ctx context.Context) (records.Summary, error) {
	return s.store.Summary(ctx)
}

// ExistingObservation is an external observation already recorded for
// records sharing a field code.
type ExistingObservation struct {
	ObservationID int64
	Status        records.Status
	Keys          []string
}

// ExistingObservations lists the distinct observation ids recorded on
// records whose reviewed or extracted field code equals code.
func (s *Service) ExistingObservations(ctx context.Context, code string) ([]ExistingObservation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	all, err := s.store.List(ctx, records.ListOptions{})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "review", "existing observations", "list records", err)
	}
	byID := make(map[int64]*ExistingObservation)
	var order []int64
	for _, record := range all {
		if record.Outcome.ObservationID <= 0 {
			continue
		}
		if !strings.EqualFold(record.Review.FieldCode, code) && !strings.EqualFold(record.Extracted.FieldCode, code) {
			continue
		}
		existing, ok := byID[record.Outcome.ObservationID]
		if !ok {
			existing = &ExistingObservation{ObservationID: record.Outcome.ObservationID, Status: record.Review.Status}
			byID[record.Outcome.ObservationID] = existing
			order = append(order, record.Outcome.ObservationID)
		}
		existing.Keys = append(existing.Keys, record.Key)
	}
	slices.Sort(order)
	result := make([]ExistingObservation, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	return result, nil
}

// FieldSlipObservations returns the observation ids the external system has
// linked to code.
func (s *Service) FieldSlipObservations(ctx context.Context, code string) ([]int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, services.Wrap(services.ErrValidation, "review", "field slip lookup", "code is required", nil)
	}
	if s.lookup == nil {
		return nil, services.Wrap(services.ErrConfiguration, "review", "field slip lookup", "external lookup not configured", nil)
	}
	ids, err := s.lookup.FieldSlipByCode(ctx, code)
	if err != nil {
		return nil, services.ExternalStep("look up field slip", err)
	}
	return ids, nil
}

// VerifyObservation reports whether an external observation exists, using
// holder's credentials.
func (s *Service) VerifyObservation(ctx context.Context, holder string, id int64) (bool, error) {
	if id <= 0 {
		return false, services.Wrap(services.ErrValidation, "review", "verify observation", "observation id must be positive", nil)
	}
	client, err := s.externalFor(holder)
	if err != nil {
		return false, err
	}
	exists, err := client.VerifyObservation(ctx, id)
	if err != nil {
		return false, services.ExternalStep("verify observation", err)
	}
	return exists, nil
}

func (s *Service) externalFor(holder string) (External, error) {
	if s.external == nil {
		return nil, services.Wrap(services.ErrConfiguration, "review", "external", "external client not configured", nil)
	}
	return s.external(strings.TrimSpace(holder))
}

func (s *Service) load(ctx context.Context, key string) (*records.Record, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, "review", "load", "record key is required", nil)
	}
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "review", "load", key, err)
	}
	if record == nil {
		return nil, notFound("load", key)
	}
	return record, nil
}

func requireHolder(holder string) (string, error) {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return "", services.Wrap(services.ErrValidation, "review", "", "holder is required", claims.ErrHolderRequired)
	}
	return holder, nil
}

func notFound(op, key string) error {
	return services.Wrap(services.ErrNotFound, "review", op, fmt.Sprintf("record %q", key), nil)
}

// storeError maps record store write failures onto service markers.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, records.ErrResolved):
		return services.Wrap(services.ErrValidation, "review", op, "record already resolved", err)
	case errors.Is(err, records.ErrRecordNotFound):
		return services.Wrap(services.ErrNotFound, "review", op, "", err)
	default:
		return services.Wrap(services.ErrTransient, "review", op, "", err)
	}
}
