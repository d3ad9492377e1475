package claims

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nemfreview/internal/logging"
	"nemfreview/internal/metrics"
	"nemfreview/internal/services"
)

// Manager owns the claim table.
type Manager struct {
	mu     sync.Mutex
	claims map[string]Claim
	lease  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLease sets the lease duration applied on acquire and renew.
func WithLease(lease time.Duration) Option {
	return func(m *Manager) {
		if lease > 0 {
			m.lease = lease
		}
	}
}

// WithLogger attaches a logger for claim lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs an empty claim table.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		claims: make(map[string]Claim),
		lease:  DefaultLease,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "claims")
	return m
}

// Lease returns the configured lease duration.
func (m *Manager) Lease() time.Duration {
	return m.lease
}

// live returns the unexpired claim on key. Caller holds mu.
func (m *Manager) live(key string, now time.Time) (Claim, bool) {
	claim, ok := m.claims[key]
	if !ok {
		return Claim{}, false
	}
	if claim.Expired(now) {
		return Claim{}, false
	}
	return claim, true
}

// Acquire grants holder the claim on key when it is free, expired, or
// already held by holder. Re-acquiring extends the expiry.
func (m *Manager) Acquire(key, holder string) (Claim, error) {
	key, holder, err := normalize(key, holder)
	if err != nil {
		return Claim{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current, held := m.live(key, now)
	if held && current.Holder != holder {
		metrics.RecordClaimConflict("acquire")
		return Claim{}, &ConflictError{Key: key, Holder: current.Holder, ExpiresAt: current.ExpiresAt}
	}
	claim := Claim{Key: key, Holder: holder, AcquiredAt: now, ExpiresAt: now.Add(m.lease)}
	if held {
		claim.AcquiredAt = current.AcquiredAt
	} else {
		m.logger.Debug("claim acquired",
			logging.RecordKey(key),
			logging.Holder(holder),
		)
	}
	m.claims[key] = claim
	m.publishLive(now)
	return claim, nil
}

// Renew extends holder's live claim on key by one lease from now. An
// expired or absent claim must be re-acquired.
func (m *Manager) Renew(key, holder string) (Claim, error) {
	key, holder, err := normalize(key, holder)
	if err != nil {
		return Claim{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current, held := m.live(key, now)
	if !held {
		return Claim{}, fmt.Errorf("%w: no live claim on %s", services.ErrNotFound, key)
	}
	if current.Holder != holder {
		metrics.RecordClaimConflict("renew")
		return Claim{}, &ConflictError{Key: key, Holder: current.Holder, ExpiresAt: current.ExpiresAt}
	}
	current.ExpiresAt = now.Add(m.lease)
	m.claims[key] = current
	return current, nil
}

// Release drops holder's claim on key. Releasing an absent or expired claim
// succeeds; releasing another holder's live claim is a conflict.
func (m *Manager) Release(key, holder string) error {
	key, holder, err := normalize(key, holder)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current, held := m.live(key, now)
	if held && current.Holder != holder {
		metrics.RecordClaimConflict("release")
		return &ConflictError{Key: key, Holder: current.Holder, ExpiresAt: current.ExpiresAt}
	}
	if _, ok := m.claims[key]; ok {
		delete(m.claims, key)
		m.publishLive(now)
		if held {
			m.logger.Debug("claim released",
				logging.RecordKey(key),
				logging.Holder(holder),
			)
		}
	}
	return nil
}

// ReleaseHolder drops every live claim owned by holder and returns the keys.
func (m *Manager) ReleaseHolder(holder string) []string {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var released []string
	for key, claim := range m.claims {
		if claim.Holder == holder && !claim.Expired(now) {
			delete(m.claims, key)
			released = append(released, key)
		}
	}
	m.publishLive(now)
	return released
}

// Peek returns the claim state of key without changing it.
func (m *Manager) Peek(key string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, held := m.live(strings.TrimSpace(key), m.now())
	if !held {
		return State{}
	}
	return State{Held: true, Holder: claim.Holder, AcquiredAt: claim.AcquiredAt, ExpiresAt: claim.ExpiresAt}
}

// HeldBy reports whether holder owns the live claim on key.
func (m *Manager) HeldBy(key, holder string) bool {
	state := m.Peek(key)
	return state.Held && state.Holder == strings.TrimSpace(holder)
}

// Check returns nil when holder owns the live claim on key, a ConflictError
// when someone else does, and ErrNotFound when nobody does.
func (m *Manager) Check(key, holder string) error {
	key, holder, err := normalize(key, holder)
	if err != nil {
		return err
	}
	state := m.Peek(key)
	switch {
	case !state.Held:
		return fmt.Errorf("%w: no live claim on %s", services.ErrNotFound, key)
	case state.Holder != holder:
		return &ConflictError{Key: key, Holder: state.Holder, ExpiresAt: state.ExpiresAt}
	default:
		return nil
	}
}

// Snapshot returns a copy of every live claim keyed by record key.
func (m *Manager) Snapshot() map[string]Claim {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make(map[string]Claim, len(m.claims))
	for key, claim := range m.claims {
		if !claim.Expired(now) {
			out[key] = claim
		}
	}
	metrics.SetLiveClaims(len(out))
	return out
}

// publishLive updates the live claims gauge. Callers hold m.mu.
func (m *Manager) publishLive(now time.Time) {
	live := 0
	for _, claim := range m.claims {
		if !claim.Expired(now) {
			live++
		}
	}
	metrics.SetLiveClaims(live)
}

// Sweep deletes expired entries and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, claim := range m.claims {
		if claim.Expired(now) {
			delete(m.claims, key)
			removed++
		}
	}
	m.publishLive(now)
	metrics.RecordExpiredClaims(removed)
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled. The
// returned channel closes once the sweeper goroutine exits.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := m.Sweep(); removed > 0 {
					m.logger.Debug("expired claims swept", logging.Int("removed", removed))
				}
			}
		}
	}()
	return done
}
