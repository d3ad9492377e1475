package linkgroup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"nemfreview/internal/logging"
	"nemfreview/internal/records"
	"nemfreview/internal/services"
)

// Store is the subset of the record store used for link membership.
type Store interface {
	GetMany(ctx context.Context, keys []string) (map[string]*records.Record, error)
	LinkGroups(ctx context.Context) (map[string]string, error)
	SetLinkGroups(ctx context.Context, groups map[string]string) error
	ApplyGroupReview(ctx context.Context, w records.GroupWrite) (records.GroupResult, error)
}

// ClaimChecker verifies that holder owns the live claim on key.
type ClaimChecker interface {
	Check(key, holder string) error
}

// Manager coordinates the in-memory forest with persisted membership.
type Manager struct {
	mu     sync.Mutex
	forest *Forest
	ids    map[string]string // key -> persisted group id
	store  Store
	claims ClaimChecker
	logger *slog.Logger
	newID  func() string
}

// NewManager constructs a Manager. Call Load before use.
func NewManager(store Store, claims ClaimChecker, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		forest: NewForest(),
		ids:    make(map[string]string),
		store:  store,
		claims: claims,
		logger: logging.NewComponentLogger(logger, "linkgroup"),
		newID:  uuid.NewString,
	}
}

// Load rebuilds the forest from persisted link_group values.
func (m *Manager) Load(ctx context.Context) error {
	groups, err := m.store.LinkGroups(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "linkgroup", "load", "read link groups", err)
	}
	forest := NewForest()
	firstByGroup := make(map[string]string)
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		id := groups[key]
		if first, ok := firstByGroup[id]; ok {
			forest.Union(first, key)
			continue
		}
		firstByGroup[id] = key
	}

	m.mu.Lock()
	m.forest = forest
	m.ids = groups
	m.mu.Unlock()
	m.logger.Debug("link groups loaded", logging.Int("groups", len(firstByGroup)), logging.Int("members", len(groups)))
	return nil
}

// GroupOf returns key's class sorted ascending. A singleton yields just key.
func (m *Manager) GroupOf(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forest.Members(key)
}

// Siblings returns the other members of key's class.
func (m *Manager) Siblings(key string) []string {
	members := m.GroupOf(key)
	return slices.DeleteFunc(members, func(member string) bool { return member == key })
}

func (m *Manager) requireClaim(key, holder string) error {
	if m.claims == nil {
		return nil
	}
	return m.claims.Check(key, holder)
}

func (m *Manager) requireRecords(ctx context.Context, keys ...string) error {
	found, err := m.store.GetMany(ctx, keys)
	if err != nil {
		return services.Wrap(services.ErrTransient, "linkgroup", "lookup", "load records", err)
	}
	for _, key := range keys {
		if _, ok := found[key]; !ok {
			return fmt.Errorf("%w: record %s", services.ErrNotFound, key)
		}
	}
	return nil
}

// Link merges the classes of a and b. The caller must hold a live claim on
// a; b need not be claimed. Linking records already grouped is a no-op.
func (m *Manager) Link(ctx context.Context, holder, a, b string) error {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return fmt.Errorf("%w: both record keys are required", services.ErrValidation)
	}
	if a == b {
		return fmt.Errorf("%w: cannot link %s to itself", services.ErrValidation, a)
	}
	if err := m.requireClaim(a, holder); err != nil {
		return err
	}
	if err := m.requireRecords(ctx, a, b); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forest.Connected(a, b) {
		return nil
	}
	classA := m.forest.Members(a)
	classB := m.forest.Members(b)
	id := m.ids[a]
	if len(classB) > len(classA) || id == "" {
		if other := m.ids[b]; other != "" {
			id = other
		}
	}
	if id == "" {
		id = m.newID()
	}

	updates := make(map[string]string, len(classA)+len(classB))
	for _, key := range append(classA, classB...) {
		updates[key] = id
	}
	if err := m.store.SetLinkGroups(ctx, updates); err != nil {
		return services.Wrap(services.ErrTransient, "linkgroup", "link", "persist membership", err)
	}
	for key, group := range updates {
		m.ids[key] = group
	}
	m.forest.Union(a, b)

	m.logger.Info("records linked",
		logging.RecordKey(a),
		logging.String("linked_to", b),
		logging.Holder(holder),
		logging.Int("group_size", len(updates)),
	)
	return nil
}

// Unlink returns a to a singleton. The remaining members keep their group.
// The caller must hold a live claim on a.
func (m *Manager) Unlink(ctx context.Context, holder, a string) error {
	a = strings.TrimSpace(a)
	if a == "" {
		return fmt.Errorf("%w: record key is required", services.ErrValidation)
	}
	if err := m.requireClaim(a, holder); err != nil {
		return err
	}
	if err := m.requireRecords(ctx, a); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	class := m.forest.Members(a)
	if len(class) <= 1 {
		return nil
	}
	updates := map[string]string{a: ""}
	rest := slices.DeleteFunc(slices.Clone(class), func(key string) bool { return key == a })
	if len(rest) == 1 {
		updates[rest[0]] = ""
	}
	if err := m.store.SetLinkGroups(ctx, updates); err != nil {
		return services.Wrap(services.ErrTransient, "linkgroup", "unlink", "persist membership", err)
	}
	for key := range updates {
		delete(m.ids, key)
	}
	m.forest.Split(a)

	m.logger.Info("record unlinked",
		logging.RecordKey(a),
		logging.Holder(holder),
		logging.Int("remaining", len(rest)),
	)
	return nil
}

// Propagate applies w to its source and every unresolved member of the
// source's class in one transaction. w.Members is filled from the forest.
// w.Status is applied to the source and, mapped by records.SiblingStatus, to
// siblings; an empty status writes fields only. The returned result lists
// updated keys with source first.
func (m *Manager) Propagate(ctx context.Context, w records.GroupWrite) (records.GroupResult, error) {
	w.Members = m.GroupOf(w.Source)
	result, err := m.store.ApplyGroupReview(ctx, w)
	if err != nil {
		return records.GroupResult{}, err
	}
	if len(result.Skipped) > 0 {
		m.logger.Debug("resolved members left untouched",
			logging.RecordKey(w.Source),
			logging.Any("skipped", result.Skipped),
		)
	}
	return result, nil
}
