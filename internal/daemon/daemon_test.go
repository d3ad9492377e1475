package daemon_test

import (
	"context"
	"net/http"
	"testing"

	"nemfreview/internal/config"
	"nemfreview/internal/daemon"
	"nemfreview/internal/records"
	"nemfreview/internal/review"
	"nemfreview/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *records.Store) {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	svc, err := review.New(context.Background(), cfg, store)
	if err != nil {
		t.Fatalf("review.New: %v", err)
	}
	d, err := daemon.New(cfg, store, svc, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := newDaemon(t, cfg)
	testsupport.SeedRecords(t, store, testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita"))
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || status.Summary.Total != 1 || status.Policy != config.PolicyPermissive {
		t.Fatalf("unexpected status %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	resp, err := http.Get("http://" + d.Address() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	t.Cleanup(first.Stop)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	secondCfg := *cfg
	second, _ := newDaemon(t, &secondCfg)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected the instance lock to refuse a second daemon")
	}
}
