package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"nemfreview/internal/api"
	"nemfreview/internal/config"
	"nemfreview/internal/logging"
	"nemfreview/internal/records"
	"nemfreview/internal/review"
)

// Daemon owns the review service lifecycle: the instance lock, the claim
// sweeper, and the HTTP API.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *records.Store
	service *review.Service
	urlFor  api.URLFunc

	lockPath string
	lock     *flock.Flock

	api      *apiServer
	running  atomic.Bool
	cancel   context.CancelFunc
	sweeping <-chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Policy       string
	ActiveClaims int
	Summary      records.Summary
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithObservationURL sets how external observation links are rendered.
func WithObservationURL(fn api.URLFunc) Option {
	return func(d *Daemon) {
		d.urlFor = fn
	}
}

// New constructs a daemon around an opened store and review service.
func New(cfg *config.Config, store *records.Store, service *review.Service, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || service == nil {
		return nil, errors.New("daemon requires config, store, and review service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		service:  service,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, starts the claim sweeper, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another nemfreview instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.sweeping = d.service.Claims().StartSweeper(runCtx, d.cfg.SweepInterval())
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("review daemon started",
		logging.Args(
			logging.String("lock", d.lockPath),
			logging.String("address", d.api.address()),
			logging.String("policy", d.service.Policy().Name()),
			logging.Duration("lease", d.service.Claims().Lease()),
		)...,
	)
	return nil
}

// Stop shuts down the API and sweeper and releases the instance lock.
// Claims are in-memory and are dropped with the process.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.sweeping != nil {
		<-d.sweeping
		d.sweeping = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Args(logging.Error(err))...)
	}
	d.running.Store(false)
	d.logger.Info("review daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the API listen address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Policy:       d.service.Policy().Name(),
		ActiveClaims: len(d.service.Claims().Snapshot()),
	}
	summary, err := d.service.Summary(ctx)
	if err != nil {
		d.logger.Warn("summary unavailable", logging.Args(logging.Error(err))...)
	} else {
		status.Summary = summary
	}
	return status
}
