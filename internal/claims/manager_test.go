package claims_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"nemfreview/internal/claims"
	"nemfreview/internal/metrics"
	"nemfreview/internal/services"
	"nemfreview/internal/testsupport"
)

func newManager(t *testing.T) (*claims.Manager, *testsupport.FakeClock) {
	t.Helper()
	clock := testsupport.NewFakeClock(time.Date(2024, 9, 15, 9, 0, 0, 0, time.UTC))
	return claims.NewManager(claims.WithClock(clock.Now), claims.WithLease(5*time.Minute)), clock
}

func TestAcquireMutualExclusion(t *testing.T) {
	m, _ := newManager(t)

	if _, err := m.Acquire("a.jpg", "alice"); err != nil {
		t.Fatalf("alice acquire: %v", err)
	}
	_, err := m.Acquire("a.jpg", "bob")
	if !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	conflict, ok := claims.AsConflict(err)
	if !ok || conflict.Holder != "alice" || conflict.Key != "a.jpg" {
		t.Fatalf("conflict detail = %#v", conflict)
	}
	if !m.HeldBy("a.jpg", "alice") || m.HeldBy("a.jpg", "bob") {
		t.Fatal("claim ownership changed after conflict")
	}
}

func TestAcquireIsIdempotentForHolder(t *testing.T) {
	m, clock := newManager(t)

	first, err := m.Acquire("a.jpg", "alice")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	clock.Advance(2 * time.Minute)
	second, err := m.Acquire("a.jpg", "alice")
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if !second.AcquiredAt.Equal(first.AcquiredAt) {
		t.Fatalf("acquired at changed: %v -> %v", first.AcquiredAt, second.AcquiredAt)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Fatalf("expiry not extended: %v -> %v", first.ExpiresAt, second.ExpiresAt)
	}
}

func TestLeaseExpiry(t *testing.T) {
	m, clock := newManager(t)

	if _, err := m.Acquire("a.jpg", "alice"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	clock.Advance(5*time.Minute - time.Second)
	if _, err := m.Acquire("a.jpg", "bob"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("expected conflict before expiry, got %v", err)
	}

	clock.Advance(time.Second)
	if m.Peek("a.jpg").Held {
		t.Fatal("expired claim reported as held")
	}
	if _, ok := m.Snapshot()["a.jpg"]; ok {
		t.Fatal("expired claim present in snapshot")
	}
	claim, err := m.Acquire("a.jpg", "bob")
	if err != nil {
		t.Fatalf("bob acquire after expiry: %v", err)
	}
	if claim.Holder != "bob" {
		t.Fatalf("holder = %s", claim.Holder)
	}
	if _, err := m.Renew("a.jpg", "alice"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("alice renew after losing claim: %v", err)
	}
}

func TestRenew(t *testing.T) {
	m, clock := newManager(t)

	if _, err := m.Renew("a.jpg", "alice"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("renew without claim: %v", err)
	}
	if _, err := m.Acquire("a.jpg", "alice"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	clock.Advance(4 * time.Minute)
	renewed, err := m.Renew("a.jpg", "alice")
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if want := clock.Now().Add(5 * time.Minute); !renewed.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", renewed.ExpiresAt, want)
	}
	if _, err := m.Renew("a.jpg", "bob"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("bob renew: %v", err)
	}

	clock.Advance(6 * time.Minute)
	if _, err := m.Renew("a.jpg", "alice"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("renew after expiry should require re-acquire, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m, clock := newManager(t)

	if err := m.Release("a.jpg", "alice"); err != nil {
		t.Fatalf("release absent: %v", err)
	}
	if _, err := m.Acquire("a.jpg", "alice"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.Release("a.jpg", "bob"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("bob release: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := m.Release("a.jpg", "alice"); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}
	if m.Peek("a.jpg").Held {
		t.Fatal("claim still held after release")
	}

	if _, err := m.Acquire("b.jpg", "bob"); err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	clock.Advance(10 * time.Minute)
	if err := m.Release("b.jpg", "alice"); err != nil {
		t.Fatalf("release of expired claim by other holder: %v", err)
	}
}

func TestCheck(t *testing.T) {
	m, _ := newManager(t)
	if err := m.Check("a.jpg", "alice"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("check without claim: %v", err)
	}
	if _, err := m.Acquire("a.jpg", "alice"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := m.Check("a.jpg", "alice"); err != nil {
		t.Fatalf("check holder: %v", err)
	}
	if err := m.Check("a.jpg", "bob"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("check other: %v", err)
	}
	if _, err := m.Acquire("a.jpg", " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("blank holder: %v", err)
	}
}

func TestReleaseHolder(t *testing.T) {
	m, _ := newManager(t)
	for _, key := range []string{"a.jpg", "b.jpg"} {
		if _, err := m.Acquire(key, "alice"); err != nil {
			t.Fatalf("acquire %s: %v", key, err)
		}
	}
	if _, err := m.Acquire("c.jpg", "bob"); err != nil {
		t.Fatalf("acquire c: %v", err)
	}
	released := m.ReleaseHolder("alice")
	if len(released) != 2 {
		t.Fatalf("released = %v", released)
	}
	if snapshot := m.Snapshot(); len(snapshot) != 1 || snapshot["c.jpg"].Holder != "bob" {
		t.Fatalf("snapshot = %v", snapshot)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	m, clock := newManager(t)
	if _, err := m.Acquire("a.jpg", "alice"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	clock.Advance(3 * time.Minute)
	if _, err := m.Acquire("b.jpg", "bob"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	clock.Advance(3 * time.Minute)
	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if !m.HeldBy("b.jpg", "bob") {
		t.Fatal("sweep removed live claim")
	}
}

func TestStartSweeperStopsOnCancel(t *testing.T) {
	m, _ := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := m.StartSweeper(ctx, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestConcurrentAcquireHasSingleWinner(t *testing.T) {
	m, _ := newManager(t)

	const holders = 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := m.Acquire("a.jpg", fmt.Sprintf("holder-%d", i)); err == nil {
				winners.Add(1)
			} else if !errors.Is(err, services.ErrClaimConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if got := winners.Load(); got != 1 {
		t.Fatalf("winners = %d, want 1", got)
	}
}

func liveClaimsGauge(t *testing.T) float64 {
	t.Helper()
	var out dto.Metric
	if err := metrics.LiveClaims.Write(&out); err != nil {
		t.Fatalf("read gauge: %v", err)
	}
	return out.GetGauge().GetValue()
}

func TestLiveClaimsGaugeIgnoresExpiredEntries(t *testing.T) {
	m, clock := newManager(t)

	for _, key := range []string{"a.jpg", "b.jpg"} {
		if _, err := m.Acquire(key, "alice"); err != nil {
			t.Fatalf("acquire %s: %v", key, err)
		}
	}
	if got := liveClaimsGauge(t); got != 2 {
		t.Fatalf("live claims = %v, want 2", got)
	}

	clock.Advance(6 * time.Minute)
	if _, err := m.Acquire("c.jpg", "bob"); err != nil {
		t.Fatalf("acquire c.jpg: %v", err)
	}
	if got := liveClaimsGauge(t); got != 1 {
		t.Fatalf("live claims with two unswept expired entries = %v, want 1", got)
	}

	clock.Advance(6 * time.Minute)
	if snapshot := m.Snapshot(); len(snapshot) != 0 {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
	if got := liveClaimsGauge(t); got != 0 {
		t.Fatalf("live claims after expiry = %v, want 0", got)
	}
}
